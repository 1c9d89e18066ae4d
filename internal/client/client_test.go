package client

import (
	"context"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/handlers"
	"kfetch/internal/kfetch"
	"kfetch/internal/kfetch/kfetchtest"
	"kfetch/internal/middleware"
	"kfetch/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "client-test-key-42"

func startServer(t *testing.T, device *kfetch.Device, apiKey string) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := server.New(device, server.Options{APIKey: apiKey})
	go func() {
		_ = app.Listener(listener)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})
	return "http://" + listener.Addr().String()
}

func newClient(t *testing.T, baseURL, apiKey string) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(HTTPConfig{BaseURL: baseURL, APIKey: apiKey})
	require.NoError(t, err)
	return c
}

func reportLines(report []byte) []string {
	return strings.Split(strings.TrimSuffix(string(report), "\n"), "\n")
}

func TestHeadersMatchServer(t *testing.T) {
	assert.Equal(t, handlers.SessionHeader, SessionHeader)
	assert.Equal(t, middleware.APIKeyHeader, APIKeyHeader)
}

func TestNewHTTPClientRejectsBadURL(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{BaseURL: "localhost:8080"})
	assert.Error(t, err)
}

func TestHTTPFetch(t *testing.T) {
	device := kfetchtest.NewDevice(t)
	c := newClient(t, startServer(t, device, testAPIKey), testAPIKey)
	ctx := context.Background()

	mask := uint32(0b000001)
	report, err := Fetch(ctx, c, &mask, DefaultReadLength)
	require.NoError(t, err)

	lines := reportLines(report)
	require.Len(t, lines, kfetch.ReportLines)
	assert.True(t, strings.HasSuffix(lines[0], "testhost"))
	assert.True(t, strings.HasSuffix(lines[2], "Kernel:    6.1.0-test"))
	assert.Equal(t, kfetch.Logo()[3], lines[3])

	assert.False(t, device.Status().Open, "Fetch must close its session")
	assert.Equal(t, kfetch.MaskFromRaw(1), device.Mask())

	// Маска сохраняется для следующего читателя
	report, err = Fetch(ctx, c, nil, DefaultReadLength)
	require.NoError(t, err)
	assert.Equal(t, kfetch.Logo()[3], reportLines(report)[3])
}

func TestHTTPBusyAndErrors(t *testing.T) {
	device := kfetchtest.NewDevice(t)
	c := newClient(t, startServer(t, device, ""), "")
	ctx := context.Background()

	conn, err := c.Open(ctx)
	require.NoError(t, err)

	_, err = c.Open(ctx)
	assert.ErrorIs(t, err, kerrors.ErrBusy)

	_, err = conn.Read(ctx, 8)
	assert.ErrorIs(t, err, kerrors.ErrBufferTooSmall)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Open)
	assert.Equal(t, uint32(63), status.Mask)
	assert.Len(t, status.Enabled, 6)

	require.NoError(t, conn.Close(ctx))
	require.NoError(t, conn.Close(ctx), "second close is a no-op")

	_, err = conn.Read(ctx, DefaultReadLength)
	assert.ErrorIs(t, err, kerrors.ErrNotOpen)
}

func TestHTTPRequiresAPIKey(t *testing.T) {
	device := kfetchtest.NewDevice(t)
	baseURL := startServer(t, device, testAPIKey)

	_, err := newClient(t, baseURL, "wrong").Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", kerrors.CodeOf(err))
	assert.False(t, device.Status().Open)
}

func TestFromErrno(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{&os.PathError{Op: "open", Path: "kfetch", Err: syscall.EBUSY}, kerrors.ErrBusy},
		{&os.PathError{Op: "read", Path: "kfetch", Err: syscall.EBADF}, kerrors.ErrNotOpen},
		{&os.PathError{Op: "write", Path: "kfetch", Err: syscall.EINVAL}, kerrors.ErrInvalidArgument},
		{&os.PathError{Op: "read", Path: "kfetch", Err: syscall.EOVERFLOW}, kerrors.ErrBufferTooSmall},
	}
	for _, tt := range tests {
		got := fromErrno(tt.err)
		assert.ErrorIs(t, got, tt.want)
		assert.ErrorIs(t, got, tt.err, "cause must be kept")
	}

	plain := os.ErrNotExist
	assert.Equal(t, plain, fromErrno(plain))
}

func TestFileClientMissingDevice(t *testing.T) {
	_, err := NewFileClient("/nonexistent/kfetch").Open(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
