package logger

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Глобальные логгеры для разных компонентов.
	// До вызова InitLogger все они отбрасывают сообщения.
	Main    = zerolog.Nop()
	HTTP    = zerolog.Nop()
	Device  = zerolog.Nop()
	Session = zerolog.Nop()
	Config  = zerolog.Nop()
	Report  = zerolog.Nop()
	SysInfo = zerolog.Nop()
	MCP     = zerolog.Nop()
	Tools   = zerolog.Nop()
	FUSE    = zerolog.Nop()
)

// InitLogger инициализирует логгеры на основе переменных окружения
func InitLogger() {
	Init(os.Getenv("LOG_LEVEL"), environmentFromEnv())
}

// Init инициализирует логгеры с явно заданными уровнем и окружением.
// Может вызываться повторно, например после загрузки конфигурации.
func Init(levelStr, environment string) {
	// Настраиваем глобальные параметры zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return file + ":" + strconv.Itoa(line)
	}

	level := ParseLevel(levelStr)
	zerolog.SetGlobalLevel(level)

	// Настраиваем вывод в зависимости от окружения.
	// stdout занят протоколом MCP в stdio-режиме, поэтому пишем в stderr.
	development := isDevelopment(environment)
	if development {
		writer := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
		writer.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(i.(string))
		}
		log.Logger = zerolog.New(writer).With().Timestamp().Caller().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
	}

	Main = log.Logger.With().Str("component", "main").Logger()
	HTTP = log.Logger.With().Str("component", "http").Logger()
	Device = log.Logger.With().Str("component", "device").Logger()
	Session = log.Logger.With().Str("component", "session").Logger()
	Config = log.Logger.With().Str("component", "config").Logger()
	Report = log.Logger.With().Str("component", "report").Logger()
	SysInfo = log.Logger.With().Str("component", "sysinfo").Logger()
	MCP = log.Logger.With().Str("component", "mcp").Logger()
	Tools = log.Logger.With().Str("component", "tools").Logger()
	FUSE = log.Logger.With().Str("component", "fuse").Logger()

	Main.Info().
		Str("level", level.String()).
		Bool("development", development).
		Msg("Logger initialized")
}

// SetLevel меняет глобальный уровень логгирования во время работы
func SetLevel(levelStr string) zerolog.Level {
	level := ParseLevel(levelStr)
	if zerolog.GlobalLevel() != level {
		zerolog.SetGlobalLevel(level)
		Main.Info().Str("level", level.String()).Msg("Log level changed")
	}
	return level
}

// ParseLevel определяет уровень логгирования по строке
func ParseLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func environmentFromEnv() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return os.Getenv("ENV")
}

// isDevelopment проверяет режим разработки; пустое окружение - тоже разработка
func isDevelopment(environment string) bool {
	env := strings.ToLower(strings.TrimSpace(environment))
	return env == "development" || env == "dev" || env == ""
}

// GetHTTPLogger создает логгер для HTTP запросов с контекстными полями
func GetHTTPLogger(method, path, sessionID string) zerolog.Logger {
	return HTTP.With().
		Str("method", method).
		Str("path", path).
		Str("session_id", sessionID).
		Logger()
}

// GetSessionLogger создает логгер для сессий устройства
func GetSessionLogger(sessionID string) zerolog.Logger {
	return Session.With().
		Str("session_id", sessionID).
		Logger()
}

// GetMCPLogger создает логгер для MCP операций
func GetMCPLogger(method string) zerolog.Logger {
	return MCP.With().
		Str("method", method).
		Logger()
}
