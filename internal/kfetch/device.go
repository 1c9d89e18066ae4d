package kfetch

import (
	"context"
	"fmt"
	"time"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/logger"
)

// Options параметры Device
type Options struct {
	// Provider источник метрик, обязателен
	Provider Provider

	// InitialMask маска видимости при старте
	InitialMask VisibilityMask

	// GenerationTimeout ограничивает сбор метрик одного отчета; 0 - без ограничения
	GenerationTimeout time.Duration

	// Clock заменяет time.Now в тестах
	Clock func() time.Time
}

// Device - единственный ресурс отчета: шлюз сессий, хранилище маски
// и генератор отчета. Один экземпляр разделяют HTTP, MCP и FUSE.
type Device struct {
	gate      *Gate
	store     *Store
	generator *Generator
	now       func() time.Time
}

// Status - снимок состояния устройства
type Status struct {
	Open        bool           `json:"open"`
	SessionAge  time.Duration  `json:"session_age,omitempty"`
	IdleFor     time.Duration  `json:"idle_for,omitempty"`
	Mask        VisibilityMask `json:"-"`
	RawMask     uint32         `json:"mask"`
	EnabledList []string       `json:"enabled"`
}

// New создает закрытое устройство
func New(opts Options) (*Device, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("metric provider is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Device{
		gate:      NewGate(clock),
		store:     NewStore(opts.InitialMask),
		generator: NewGenerator(opts.Provider, opts.GenerationTimeout),
		now:       clock,
	}, nil
}

// Open открывает эксклюзивную сессию; ErrBusy, пока открыта другая
func (d *Device) Open() (*Session, error) {
	return d.gate.Open()
}

// Close завершает сессию; неизвестные и закрытые сессии игнорируются
func (d *Device) Close(sessionID string) {
	d.gate.Close(sessionID)
}

// Read формирует отчет для открытой сессии: строки, каждая с переводом строки.
// Результат не длиннее length байт; больший отчет отклоняется с
// ErrBufferTooSmall без частичного вывода.
func (d *Device) Read(ctx context.Context, sessionID string, length int) ([]byte, error) {
	if _, err := d.gate.Lookup(sessionID); err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, kerrors.New(kerrors.CodeInvalidArgument,
			fmt.Sprintf("negative read length %d", length))
	}

	mask := d.store.Get()
	report := d.generator.Generate(ctx, mask)

	size := report.Size()
	if size > length {
		logger.Device.Debug().
			Str("session_id", sessionID).
			Int("size", size).
			Int("length", length).
			Msg("Read buffer too small")
		return nil, kerrors.Wrapf(kerrors.ErrBufferTooSmall, kerrors.CodeBufferTooSmall,
			"report needs %d bytes, caller allows %d", size, length)
	}

	return report.AppendTo(make([]byte, 0, size)), nil
}

// Write заменяет маску видимости. Данные - ровно MaskWidth байт,
// целое в нативном порядке байтов.
func (d *Device) Write(sessionID string, payload []byte) error {
	if _, err := d.gate.Lookup(sessionID); err != nil {
		return err
	}

	raw, err := DecodeMask(payload)
	if err != nil {
		return err
	}

	mask := d.store.Set(uint64(raw))
	logger.Device.Info().
		Str("session_id", sessionID).
		Uint32("raw", raw).
		Str("mask", mask.String()).
		Msg("Mask written")
	return nil
}

// SetMask применяет маску вне сессии, при перезагрузке конфигурации
func (d *Device) SetMask(raw uint32) VisibilityMask {
	return d.store.Set(uint64(raw))
}

// Mask текущая маска видимости
func (d *Device) Mask() VisibilityMask {
	return d.store.Get()
}

// ReapIdle закрывает сессию, простаивающую дольше maxIdle
func (d *Device) ReapIdle(maxIdle time.Duration) bool {
	_, reaped := d.gate.ReapIdle(maxIdle)
	return reaped
}

// Status сообщает, открыта ли сессия, и текущую маску
func (d *Device) Status() Status {
	mask := d.store.Get()
	status := Status{
		Mask:        mask,
		RawMask:     mask.Raw(),
		EnabledList: make([]string, 0, numFields),
	}
	for _, f := range mask.Enabled() {
		status.EnabledList = append(status.EnabledList, f.String())
	}

	if session := d.gate.Current(); session != nil {
		now := d.now()
		status.Open = true
		status.SessionAge = now.Sub(session.OpenedAt)
		status.IdleFor = now.Sub(session.LastActivity())
	}
	return status
}
