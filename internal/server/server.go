package server

import (
	"kfetch/internal/handlers"
	"kfetch/internal/kfetch"
	"kfetch/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Options параметры HTTP приложения
type Options struct {
	// APIKey ключ доступа; пустой ключ отключает авторизацию
	APIKey string
	// MCPServer сервер инструментов; nil отключает маршрут /mcp
	MCPServer *mcpserver.MCPServer
}

// New собирает fiber приложение: middleware, маршруты устройства и MCP
func New(device *kfetch.Device, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "kfetch device server",
	})

	app.Use(middleware.RequestLoggingMiddleware())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Content-Type," + handlers.SessionHeader + "," + middleware.APIKeyHeader,
		ExposeHeaders:    handlers.SessionHeader,
		AllowCredentials: false,
	}))

	if opts.APIKey != "" {
		app.Use(middleware.AuthMiddleware(opts.APIKey))
	}

	handlers.NewDeviceHandler(device).RegisterRoutes(app)
	if opts.MCPServer != nil {
		handlers.NewFiberMCPHandler(opts.MCPServer).RegisterRoutes(app)
	}

	return app
}
