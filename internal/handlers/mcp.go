package handlers

import (
	"kfetch/internal/kfetch"
	"kfetch/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "kfetch"
	ServerVersion = "1.0.0"
)

// NewMCPServer создает MCP сервер с инструментами устройства
func NewMCPServer(device *kfetch.Device) *server.MCPServer {
	tools := NewToolHandlers(device)

	mcpServer := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	mcpServer.AddTool(KfetchTool(), tools.HandleKfetch)
	mcpServer.AddTool(StatusTool(), tools.HandleStatus)

	return mcpServer
}

// FiberMCPHandler принимает JSON-RPC сообщения MCP через HTTP POST
type FiberMCPHandler struct {
	server *server.MCPServer
}

// NewFiberMCPHandler создает HTTP обработчик для MCP сервера
func NewFiberMCPHandler(mcpServer *server.MCPServer) *FiberMCPHandler {
	return &FiberMCPHandler{server: mcpServer}
}

// RegisterRoutes регистрирует маршрут MCP
func (h *FiberMCPHandler) RegisterRoutes(app fiber.Router) {
	app.Post("/mcp", h.HandlePost)
}

// HandlePost передает сообщение MCP серверу и возвращает ответ.
// Уведомления не имеют ответа и подтверждаются статусом 202.
func (h *FiberMCPHandler) HandlePost(c *fiber.Ctx) error {
	// Тело запроса fiber переиспользует после возврата из обработчика
	body := append([]byte(nil), c.Body()...)

	mcpLogger := logger.GetMCPLogger("post")
	mcpLogger.Debug().
		Bytes("request_body", body).
		Msg("Processing JSON-RPC message")

	response := h.server.HandleMessage(c.UserContext(), body)
	if response == nil {
		return c.SendStatus(fiber.StatusAccepted)
	}
	return c.JSON(response)
}
