package kfetch

import (
	"sync"
	"sync/atomic"
	"time"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/logger"

	"github.com/google/uuid"
)

// Session - период эксклюзивного доступа к устройству
type Session struct {
	ID       string
	OpenedAt time.Time

	mu           sync.RWMutex
	lastActivity time.Time
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:           uuid.New().String(),
		OpenedAt:     now,
		lastActivity: now,
	}
}

// Touch отмечает активность сессии
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// LastActivity время последнего Touch
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Gate допускает не более одной открытой сессии
type Gate struct {
	current atomic.Pointer[Session]
	now     func() time.Time
}

// NewGate создает закрытый шлюз; nil clock означает time.Now
func NewGate(clock func() time.Time) *Gate {
	if clock == nil {
		clock = time.Now
	}
	return &Gate{now: clock}
}

// Open захватывает устройство. Конкурирующие вызовы решаются одним
// compare-and-swap; проигравшие получают ErrBusy и ничего не меняют.
func (g *Gate) Open() (*Session, error) {
	session := newSession(g.now())
	if !g.current.CompareAndSwap(nil, session) {
		return nil, kerrors.ErrBusy
	}

	sessionLogger := logger.GetSessionLogger(session.ID)
	sessionLogger.Info().Msg("Session opened")
	return session, nil
}

// Close освобождает сессию с указанным ID. Закрытие чужой или уже
// закрытой сессии ничего не делает и возвращает false.
func (g *Gate) Close(sessionID string) bool {
	sessionLogger := logger.GetSessionLogger(sessionID)

	current := g.current.Load()
	if current == nil || current.ID != sessionID {
		sessionLogger.Debug().Msg("Close ignored, session not open")
		return false
	}
	if !g.current.CompareAndSwap(current, nil) {
		return false
	}

	sessionLogger.Info().
		Dur("held", g.now().Sub(current.OpenedAt)).
		Msg("Session closed")
	return true
}

// Lookup возвращает открытую сессию с этим ID и отмечает активность
func (g *Gate) Lookup(sessionID string) (*Session, error) {
	current := g.current.Load()
	if current == nil || current.ID != sessionID {
		return nil, kerrors.ErrNotOpen
	}
	current.Touch(g.now())
	return current, nil
}

// Current открытая сессия или nil
func (g *Gate) Current() *Session {
	return g.current.Load()
}

// ReapIdle закрывает открытую сессию, если она простаивает дольше maxIdle.
// Закрывается только проверенная сессия, но не открытая после нее.
func (g *Gate) ReapIdle(maxIdle time.Duration) (*Session, bool) {
	current := g.current.Load()
	if current == nil || maxIdle <= 0 {
		return nil, false
	}

	idle := g.now().Sub(current.LastActivity())
	if idle <= maxIdle {
		return nil, false
	}
	if !g.current.CompareAndSwap(current, nil) {
		return nil, false
	}

	sessionLogger := logger.GetSessionLogger(current.ID)
	sessionLogger.Warn().
		Dur("idle", idle).
		Dur("max_idle", maxIdle).
		Msg("Idle session reaped")
	return current, true
}
