package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/kfetch"
	"kfetch/internal/kfetch/kfetchtest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	NewDeviceHandler(kfetchtest.NewDevice(t)).RegisterRoutes(app)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, sessionID string, body []byte) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func openSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doRequest(t, app, fiber.MethodPost, "/device/session", "", nil)
	require.Equal(t, fiber.StatusCreated, status, string(body))

	var opened struct {
		Session   string `json:"session"`
		MaskWidth int    `json:"mask_width"`
	}
	require.NoError(t, json.Unmarshal(body, &opened))
	require.NotEmpty(t, opened.Session)
	assert.Equal(t, kfetch.MaskWidth, opened.MaskWidth)
	return opened.Session
}

func TestDeviceLifecycle(t *testing.T) {
	app := newTestApp(t)
	session := openSession(t, app)

	status, _ := doRequest(t, app, fiber.MethodPut, "/device/mask", session, kfetch.EncodeMask(0b000001))
	require.Equal(t, fiber.StatusNoContent, status)

	status, body := doRequest(t, app, fiber.MethodGet, "/device", session, nil)
	require.Equal(t, fiber.StatusOK, status)

	lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
	require.Len(t, lines, kfetch.ReportLines)
	logo := kfetch.Logo()
	assert.Equal(t, logo[2]+"Kernel:    6.1.0-test", lines[2])
	assert.Equal(t, logo[3], lines[3])

	status, _ = doRequest(t, app, fiber.MethodDelete, "/device/session", session, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _ = doRequest(t, app, fiber.MethodGet, "/device", session, nil)
	assert.Equal(t, fiber.StatusPreconditionRequired, status)
}

func TestOpenWhileBusy(t *testing.T) {
	app := newTestApp(t)
	first := openSession(t, app)

	status, body := doRequest(t, app, fiber.MethodPost, "/device/session", "", nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, string(body), kerrors.CodeBusy)

	doRequest(t, app, fiber.MethodDelete, "/device/session", first, nil)
	openSession(t, app)
}

func TestReadErrors(t *testing.T) {
	app := newTestApp(t)
	session := openSession(t, app)

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{name: "too small", target: "/device?length=16", status: fiber.StatusRequestedRangeNotSatisfiable, code: kerrors.CodeBufferTooSmall},
		{name: "not a number", target: "/device?length=abc", status: fiber.StatusBadRequest, code: kerrors.CodeInvalidArgument},
		{name: "negative", target: "/device?length=-5", status: fiber.StatusBadRequest, code: kerrors.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, fiber.MethodGet, tt.target, session, nil)
			assert.Equal(t, tt.status, status)
			assert.Contains(t, string(body), tt.code)
		})
	}
}

func TestWriteRejectsWrongWidth(t *testing.T) {
	app := newTestApp(t)
	session := openSession(t, app)

	status, body := doRequest(t, app, fiber.MethodPut, "/device/mask", session, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, string(body), kerrors.CodeInvalidArgument)
}

func TestWriteWithoutSession(t *testing.T) {
	app := newTestApp(t)

	status, _ := doRequest(t, app, fiber.MethodPut, "/device/mask", "", kfetch.EncodeMask(1))
	assert.Equal(t, fiber.StatusPreconditionRequired, status)
}

func TestCloseWithoutSessionIsNoop(t *testing.T) {
	app := newTestApp(t)

	status, _ := doRequest(t, app, fiber.MethodDelete, "/device/session", "", nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = doRequest(t, app, fiber.MethodDelete, "/device/session", "stale", nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestStatusEndpoint(t *testing.T) {
	app := newTestApp(t)
	openSession(t, app)

	status, body := doRequest(t, app, fiber.MethodGet, "/healthz", "", nil)
	require.Equal(t, fiber.StatusOK, status)

	var payload struct {
		Status string `json:"status"`
		Device struct {
			Open    bool     `json:"open"`
			Mask    uint32   `json:"mask"`
			Enabled []string `json:"enabled"`
		} `json:"device"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "ok", payload.Status)
	assert.True(t, payload.Device.Open)
	assert.Equal(t, uint32(63), payload.Device.Mask)
	assert.Len(t, payload.Device.Enabled, 6)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusConflict, StatusFor(kerrors.ErrBusy))
	assert.Equal(t, fiber.StatusPreconditionRequired, StatusFor(kerrors.ErrNotOpen))
	assert.Equal(t, fiber.StatusBadRequest, StatusFor(kerrors.ErrInvalidArgument))
	assert.Equal(t, fiber.StatusRequestedRangeNotSatisfiable, StatusFor(kerrors.ErrBufferTooSmall))
	assert.Equal(t, fiber.StatusServiceUnavailable, StatusFor(kerrors.ErrUnavailable))
	assert.Equal(t, fiber.StatusInternalServerError, StatusFor(io.EOF))
}
