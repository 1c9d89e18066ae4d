package middleware

import (
	"crypto/subtle"

	"kfetch/internal/logger"

	"github.com/gofiber/fiber/v2"
)

// APIKeyHeader заголовок с API ключом
const APIKeyHeader = "X-API-Key"

// AuthConfig конфигурация для middleware авторизации
type AuthConfig struct {
	// APIKey API ключ для доступа к устройству и MCP
	APIKey string
	// SkipPaths пути которые нужно пропустить при проверке авторизации
	SkipPaths []string
}

// AuthMiddleware создает middleware авторизации с ключом из конфигурации
func AuthMiddleware(apiKey string) fiber.Handler {
	return AuthMiddlewareWithConfig(AuthConfig{
		APIKey:    apiKey,
		SkipPaths: []string{"/healthz"},
	})
}

// AuthMiddlewareWithConfig создает middleware для авторизации с настраиваемой конфигурацией
func AuthMiddlewareWithConfig(config AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()

		for _, skipPath := range config.SkipPaths {
			if path == skipPath {
				return c.Next()
			}
		}

		apiKey := c.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(config.APIKey)) != 1 {
			logger.HTTP.Warn().
				Str("method", c.Method()).
				Str("path", path).
				Str("remote_ip", c.IP()).
				Str("provided_api_key", maskAPIKey(apiKey)).
				Msg("Request with invalid API key")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "UNAUTHORIZED",
				"message": "API key required",
			})
		}

		return c.Next()
	}
}

// maskAPIKey маскирует API ключ для безопасного логгирования
func maskAPIKey(key string) string {
	if key == "" {
		return "empty"
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "***" + key[len(key)-4:]
}
