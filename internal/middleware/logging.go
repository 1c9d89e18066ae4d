package middleware

import (
	"time"

	"kfetch/internal/handlers"
	"kfetch/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// LoggingConfig конфигурация для логгирования
type LoggingConfig struct {
	// SkipPaths пути, запросы к которым не логгируются
	SkipPaths []string
	// LogSlowRequests повышать уровень для медленных запросов
	LogSlowRequests bool
	// SlowRequestThreshold порог медленного запроса; по умолчанию 2s
	SlowRequestThreshold time.Duration
}

// RequestLoggingMiddleware логгирует запросы к устройству; /healthz пропускается
func RequestLoggingMiddleware() fiber.Handler {
	return CustomLoggingMiddleware(LoggingConfig{
		SkipPaths:       []string{"/healthz"},
		LogSlowRequests: true,
	})
}

// CustomLoggingMiddleware создает настраиваемый middleware для логгирования.
// Каждая запись содержит сессию устройства и код ошибки устройства, если
// обработчик его вернул.
func CustomLoggingMiddleware(config LoggingConfig) fiber.Handler {
	if config.SlowRequestThreshold == 0 {
		config.SlowRequestThreshold = 2 * time.Second
	}
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}

		started := time.Now()
		sessionID := c.Get(handlers.SessionHeader, "none")
		requestLogger := logger.GetHTTPLogger(c.Method(), c.Path(), sessionID)

		err := c.Next()

		elapsed := time.Since(started)
		status := c.Response().StatusCode()
		slow := config.LogSlowRequests && elapsed > config.SlowRequestThreshold

		event := requestLogger.WithLevel(requestLevel(status, err, slow))
		if err != nil {
			event = event.Err(err)
		}
		if code, ok := c.Locals(handlers.ErrorCodeLocal).(string); ok {
			event = event.Str("device_error", code)
		}
		if length := c.Query("length"); length != "" {
			event = event.Str("read_length", length)
		}

		event.
			Str("remote_ip", c.IP()).
			Int("status", status).
			Dur("duration", elapsed).
			Bool("slow", slow).
			Int("bytes", len(c.Response().Body())).
			Msg("Request handled")
		return err
	}
}

// requestLevel: ошибки сервера - Error, ошибки клиента и медленные запросы - Warn
func requestLevel(status int, err error, slow bool) zerolog.Level {
	switch {
	case err != nil || status >= fiber.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= fiber.StatusBadRequest || slow:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
