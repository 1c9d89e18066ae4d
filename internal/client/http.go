package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/kfetch"

	"github.com/gofiber/fiber/v2"
)

// Заголовки, общие с сервером
const (
	SessionHeader = "Kfetch-Session"
	APIKeyHeader  = "X-API-Key"
)

// HTTPConfig параметры HTTP клиента
type HTTPConfig struct {
	// BaseURL адрес kfetchd, например "http://localhost:8080"
	BaseURL string
	// APIKey передается в X-API-Key, если не пуст
	APIKey string
	// Timeout ограничение на запрос; 0 - 10 секунд
	Timeout time.Duration
}

// HTTPClient открывает сессии через HTTP API kfetchd
type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewHTTPClient проверяет параметры и создает клиента
func NewHTTPClient(config HTTPConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("client: base URL must be http or https (got %q)", config.BaseURL)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		timeout: timeout,
	}, nil
}

// DeviceStatus - раздел device ответа GET /healthz
type DeviceStatus struct {
	Open       bool          `json:"open"`
	SessionAge time.Duration `json:"session_age"`
	IdleFor    time.Duration `json:"idle_for"`
	Mask       uint32        `json:"mask"`
	Enabled    []string      `json:"enabled"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *HTTPClient) agent(ctx context.Context, a *fiber.Agent) *fiber.Agent {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	a.Timeout(timeout)
	if c.apiKey != "" {
		a.Set(APIKeyHeader, c.apiKey)
	}
	return a
}

// do выполняет запрос и превращает ответы с ошибкой в ошибки с кодом
func (c *HTTPClient) do(ctx context.Context, a *fiber.Agent, wantStatus int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.agent(ctx, a).Parse(); err != nil {
		return nil, fmt.Errorf("client: preparing request: %w", err)
	}

	status, body, errs := a.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("client: request failed: %w", errors.Join(errs...))
	}
	if status == wantStatus {
		return body, nil
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return nil, kerrors.New(parsed.Error, parsed.Message)
	}
	return nil, fmt.Errorf("client: unexpected status %d: %s", status, strings.TrimSpace(string(body)))
}

// Open захватывает сессию устройства
func (c *HTTPClient) Open(ctx context.Context) (Conn, error) {
	body, err := c.do(ctx, fiber.Post(c.baseURL+"/device/session"), fiber.StatusCreated)
	if err != nil {
		return nil, err
	}

	var opened struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal(body, &opened); err != nil {
		return nil, fmt.Errorf("client: decoding session: %w", err)
	}
	if opened.Session == "" {
		return nil, fmt.Errorf("client: server returned no session")
	}
	return &httpConn{client: c, session: opened.Session}, nil
}

// Status читает состояние устройства без открытия сессии
func (c *HTTPClient) Status(ctx context.Context) (DeviceStatus, error) {
	body, err := c.do(ctx, fiber.Get(c.baseURL+"/healthz"), fiber.StatusOK)
	if err != nil {
		return DeviceStatus{}, err
	}

	var health struct {
		Device DeviceStatus `json:"device"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return DeviceStatus{}, fmt.Errorf("client: decoding status: %w", err)
	}
	return health.Device, nil
}

type httpConn struct {
	client  *HTTPClient
	session string

	closeOnce sync.Once
	closeErr  error
}

func (c *httpConn) SetMask(ctx context.Context, raw uint32) error {
	a := fiber.Put(c.client.baseURL + "/device/mask").
		Set(SessionHeader, c.session).
		ContentType(fiber.MIMEOctetStream).
		Body(kfetch.EncodeMask(raw))
	_, err := c.client.do(ctx, a, fiber.StatusNoContent)
	return err
}

func (c *httpConn) Read(ctx context.Context, length int) ([]byte, error) {
	a := fiber.Get(c.client.baseURL+"/device").
		Set(SessionHeader, c.session).
		QueryString("length=" + strconv.Itoa(length))
	return c.client.do(ctx, a, fiber.StatusOK)
}

func (c *httpConn) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		a := fiber.Delete(c.client.baseURL+"/device/session").Set(SessionHeader, c.session)
		_, c.closeErr = c.client.do(ctx, a, fiber.StatusNoContent)
	})
	return c.closeErr
}
