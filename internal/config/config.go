package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"kfetch/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix префикс переменных окружения
	EnvPrefix = "KFETCH"
	// DefaultMask - все шесть метрик включены
	DefaultMask = 0b111111
)

// Config конфигурация демона kfetchd
type Config struct {
	// Port HTTP порт; 0 - режим MCP через stdio
	Port int
	// LogLevel уровень логгирования zerolog
	LogLevel string
	// Environment окружение (dev/production)
	Environment string
	// APIKey ключ для HTTP API; пустой - авторизация отключена
	APIKey string
	// Mask начальная маска видимости в порядке битов протокола
	Mask uint32
	// GenerationTimeout ограничение времени сбора метрик для одного отчета
	GenerationTimeout time.Duration
	// SessionIdleTimeout время простоя, после которого сессия закрывается принудительно
	SessionIdleTimeout time.Duration
	// FUSE настройки файловой точки доступа
	FUSE FUSEConfig

	path string
	v    *viper.Viper
}

// FUSEConfig настройки монтирования устройства через FUSE
type FUSEConfig struct {
	Mountpoint string
	AllowOther bool
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("port", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "")
	v.SetDefault("api_key", "")
	v.SetDefault("mask", DefaultMask)
	v.SetDefault("generation_timeout", "0s")
	v.SetDefault("session_idle_timeout", "0s")
	v.SetDefault("fuse.mountpoint", "")
	v.SetDefault("fuse.allow_other", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Переменные окружения в стиле прежних версий без префикса
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv("log_level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("environment", EnvPrefix+"_ENVIRONMENT", "ENVIRONMENT", "ENV")

	return v
}

// Load читает конфигурацию: значения по умолчанию, затем файл (если указан),
// затем переменные окружения
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		logger.Config.Info().Str("path", path).Msg("Config file loaded")
	}

	cfg := fromViper(v, path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper, path string) *Config {
	return &Config{
		Port:               v.GetInt("port"),
		LogLevel:           v.GetString("log_level"),
		Environment:        v.GetString("environment"),
		APIKey:             v.GetString("api_key"),
		Mask:               v.GetUint32("mask"),
		GenerationTimeout:  v.GetDuration("generation_timeout"),
		SessionIdleTimeout: v.GetDuration("session_idle_timeout"),
		FUSE: FUSEConfig{
			Mountpoint: v.GetString("fuse.mountpoint"),
			AllowOther: v.GetBool("fuse.allow_other"),
		},
		path: path,
		v:    v,
	}
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 0 and 65535", c.Port)
	}
	if c.GenerationTimeout < 0 {
		return fmt.Errorf("invalid generation_timeout %s: must not be negative", c.GenerationTimeout)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("invalid session_idle_timeout %s: must not be negative", c.SessionIdleTimeout)
	}
	if c.FUSE.AllowOther && c.FUSE.Mountpoint == "" {
		return fmt.Errorf("fuse.allow_other requires fuse.mountpoint")
	}
	return nil
}

// HTTPMode сообщает, должен ли демон запускать HTTP сервер
func (c *Config) HTTPMode() bool {
	return c.Port > 0
}

// Path путь к файлу конфигурации, если он был указан
func (c *Config) Path() string {
	return c.path
}

// Watch следит за файлом конфигурации и вызывает onChange с новой
// конфигурацией после каждого изменения. Некорректные изменения логгируются
// и пропускаются.
func (c *Config) Watch(onChange func(*Config)) {
	if c.path == "" || c.v == nil {
		return
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		next := fromViper(c.v, c.path)
		if err := next.Validate(); err != nil {
			logger.Config.Error().
				Err(err).
				Str("path", e.Name).
				Msg("Ignoring invalid config change")
			return
		}

		logger.Config.Info().
			Str("path", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed")
		onChange(next)
	})
	c.v.WatchConfig()
}
