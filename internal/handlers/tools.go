package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/kfetch"
	"kfetch/internal/logger"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolHandlers - обработчики MCP инструментов поверх устройства
type ToolHandlers struct {
	device *kfetch.Device
}

// NewToolHandlers создает обработчики инструментов
func NewToolHandlers(device *kfetch.Device) *ToolHandlers {
	return &ToolHandlers{device: device}
}

// KfetchTool описание инструмента kfetch
func KfetchTool() mcp.Tool {
	return mcp.NewTool("kfetch",
		mcp.WithDescription("Reads the kfetch system report: an ASCII logo with kernel, CPU, memory, process and uptime lines"),
		mcp.WithNumber("mask",
			mcp.Description("Optional visibility mask: bit 0 release, 1 CPU count, 2 CPU model, 3 memory, 4 uptime, 5 processes"),
		),
	)
}

// StatusTool описание инструмента kfetch_status
func StatusTool() mcp.Tool {
	return mcp.NewTool("kfetch_status",
		mcp.WithDescription("Shows whether the kfetch device is held by a session and which metrics are enabled"),
	)
}

// HandleKfetch открывает сессию, при необходимости записывает маску,
// читает отчет и закрывает сессию
func (h *ToolHandlers) HandleKfetch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, hasMask, err := maskArgument(request.GetArguments())
	if err != nil {
		logger.Tools.Warn().Err(err).Msg("Invalid kfetch arguments")
		return mcp.NewToolResultError(err.Error()), nil
	}

	session, err := h.device.Open()
	if err != nil {
		logger.Tools.Info().Err(err).Msg("kfetch tool could not open device")
		return mcp.NewToolResultError(fmt.Sprintf("Error opening device: %v", err)), nil
	}
	defer h.device.Close(session.ID)

	if hasMask {
		if err := h.device.Write(session.ID, kfetch.EncodeMask(raw)); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error writing mask: %v", err)), nil
		}
	}

	data, err := h.device.Read(ctx, session.ID, DefaultReadLength)
	if err != nil {
		logger.Tools.Error().
			Err(err).
			Str("session_id", session.ID).
			Msg("Failed to read report")
		return mcp.NewToolResultError(fmt.Sprintf("Error reading report: %v", err)), nil
	}

	logger.Tools.Debug().
		Str("session_id", session.ID).
		Bool("mask_written", hasMask).
		Int("size", len(data)).
		Msg("Report retrieved successfully")

	return mcp.NewToolResultText(string(data)), nil
}

// HandleStatus возвращает состояние устройства в виде JSON
func (h *ToolHandlers) HandleStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(h.device.Status(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError("Error encoding status: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// maskArgument извлекает необязательный аргумент mask
func maskArgument(args map[string]any) (uint32, bool, error) {
	value, ok := args["mask"]
	if !ok || value == nil {
		return 0, false, nil
	}

	var number float64
	switch v := value.(type) {
	case float64:
		number = v
	case int:
		number = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false, kerrors.Wrap(err, kerrors.CodeInvalidArgument, "mask must be a number")
		}
		number = parsed
	default:
		return 0, false, kerrors.New(kerrors.CodeInvalidArgument, "mask must be a number")
	}

	if number < 0 || number > math.MaxUint32 || number != math.Trunc(number) {
		return 0, false, kerrors.New(kerrors.CodeInvalidArgument,
			fmt.Sprintf("mask must be a non-negative 32-bit integer, got %v", number))
	}
	return uint32(number), true, nil
}
