package handlers

import (
	"strconv"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/kfetch"
	"kfetch/internal/logger"

	"github.com/gofiber/fiber/v2"
)

const (
	// SessionHeader заголовок с идентификатором сессии устройства
	SessionHeader = "Kfetch-Session"
	// DefaultReadLength размер буфера чтения, если клиент его не указал
	DefaultReadLength = 1024
	// ErrorCodeLocal ключ fiber Locals с кодом ошибки устройства для логгирования
	ErrorCodeLocal = "kfetch_error_code"
)

// DeviceHandler предоставляет устройство kfetch по HTTP
type DeviceHandler struct {
	device *kfetch.Device
}

// NewDeviceHandler создает HTTP обработчик устройства
func NewDeviceHandler(device *kfetch.Device) *DeviceHandler {
	return &DeviceHandler{device: device}
}

// RegisterRoutes регистрирует маршруты устройства
func (h *DeviceHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/healthz", h.HandleStatus)

	app.Post("/device/session", h.HandleOpen)
	app.Delete("/device/session", h.HandleClose)
	app.Get("/device", h.HandleRead)
	app.Put("/device/mask", h.HandleWrite)
}

// HandleOpen открывает эксклюзивную сессию
func (h *DeviceHandler) HandleOpen(c *fiber.Ctx) error {
	session, err := h.device.Open()
	if err != nil {
		logger.HTTP.Info().
			Str("remote_ip", c.IP()).
			Msg("Open rejected, device busy")
		return sendError(c, err)
	}

	c.Set(SessionHeader, session.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session":    session.ID,
		"mask_width": kfetch.MaskWidth,
	})
}

// HandleClose закрывает сессию; повторное закрытие не является ошибкой
func (h *DeviceHandler) HandleClose(c *fiber.Ctx) error {
	sessionID := c.Get(SessionHeader)
	if sessionID != "" {
		h.device.Close(sessionID)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleRead возвращает отчет, не превышающий length байт
func (h *DeviceHandler) HandleRead(c *fiber.Ctx) error {
	length := DefaultReadLength
	if raw := c.Query("length"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return sendError(c, kerrors.Wrap(err, kerrors.CodeInvalidArgument, "invalid length"))
		}
		length = parsed
	}

	data, err := h.device.Read(c.UserContext(), c.Get(SessionHeader), length)
	if err != nil {
		return sendError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Send(data)
}

// HandleWrite принимает маску фиксированной ширины в теле запроса
func (h *DeviceHandler) HandleWrite(c *fiber.Ctx) error {
	if err := h.device.Write(c.Get(SessionHeader), c.Body()); err != nil {
		return sendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleStatus возвращает состояние устройства
func (h *DeviceHandler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "ok",
		"device":     h.device.Status(),
		"mask_width": kfetch.MaskWidth,
		"endpoints": fiber.Map{
			"device": "/device",
			"mcp":    "/mcp",
		},
	})
}

// StatusFor сопоставляет код ошибки устройства с HTTP статусом
func StatusFor(err error) int {
	switch kerrors.CodeOf(err) {
	case kerrors.CodeBusy:
		return fiber.StatusConflict
	case kerrors.CodeNotOpen:
		return fiber.StatusPreconditionRequired
	case kerrors.CodeInvalidArgument:
		return fiber.StatusBadRequest
	case kerrors.CodeBufferTooSmall:
		return fiber.StatusRequestedRangeNotSatisfiable
	case kerrors.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	code := kerrors.CodeOf(err)
	if code == "" {
		code = "INTERNAL"
	}
	c.Locals(ErrorCodeLocal, code)
	return c.Status(StatusFor(err)).JSON(fiber.Map{
		"error":   code,
		"message": err.Error(),
	})
}
