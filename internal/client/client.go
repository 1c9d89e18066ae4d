// Package client работает с устройством kfetch через HTTP API kfetchd
// или через файл устройства в FUSE. Порядок одинаков: open, write, read, close.
package client

import (
	"context"
	"errors"
	"fmt"
)

// Conn - открытая сессия устройства
type Conn interface {
	// SetMask записывает маску. Биты: 0 release, 1 CPU count,
	// 2 CPU model, 3 memory, 4 uptime, 5 processes.
	SetMask(ctx context.Context, raw uint32) error
	// Read возвращает отчет; ошибка, если он длиннее length байт
	Read(ctx context.Context, length int) ([]byte, error)
	// Close завершает сессию; повторный вызов ничего не делает
	Close(ctx context.Context) error
}

// Opener открывает сессии устройства
type Opener interface {
	Open(ctx context.Context) (Conn, error)
}

// DefaultReadLength достаточен для отчета со строками обычной длины
const DefaultReadLength = 4096

// Fetch открывает сессию, при необходимости задает маску, читает отчет
// и закрывает сессию
func Fetch(ctx context.Context, opener Opener, mask *uint32, length int) (report []byte, err error) {
	conn, err := opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening device: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing device: %w", closeErr))
		}
	}()

	if mask != nil {
		if err := conn.SetMask(ctx, *mask); err != nil {
			return nil, fmt.Errorf("writing mask: %w", err)
		}
	}

	report, err = conn.Read(ctx, length)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return report, nil
}
