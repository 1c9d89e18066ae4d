package kfetch

import (
	"sync"

	"kfetch/internal/logger"
)

// Store хранит общую маску видимости. Любой доступ идет под блокировкой,
// поэтому читатели не видят частично примененных изменений.
type Store struct {
	mu   sync.RWMutex
	mask VisibilityMask
}

// NewStore создает хранилище с начальной маской
func NewStore(initial VisibilityMask) *Store {
	return &Store{mask: initial & AllFields}
}

// Get возвращает снимок текущей маски
func (s *Store) Get() VisibilityMask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mask
}

// Set заменяет маску значением из протокола. Биты выше шестого
// отбрасываются.
func (s *Store) Set(raw uint64) VisibilityMask {
	next := MaskFromRaw(raw)

	s.mu.Lock()
	previous := s.mask
	s.mask = next
	s.mu.Unlock()

	logger.Config.Debug().
		Uint64("raw", raw).
		Str("previous", previous.String()).
		Str("mask", next.String()).
		Msg("Visibility mask updated")

	return next
}
