package kfetch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	kerrors "kfetch/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readLength = 4096

func newTestDevice(t *testing.T) (*Device, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	device, err := New(Options{
		Provider:    newFakeProvider(),
		InitialMask: AllFields,
		Clock:       clock.Now,
	})
	require.NoError(t, err)
	return device, clock
}

func readLines(t *testing.T, device *Device, sessionID string) []string {
	t.Helper()
	data, err := device.Read(context.Background(), sessionID, readLength)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(data), "\n"))
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestDeviceReadWriteRequireSession(t *testing.T) {
	device, _ := newTestDevice(t)

	_, err := device.Read(context.Background(), "nobody", readLength)
	assert.ErrorIs(t, err, kerrors.ErrNotOpen)

	err = device.Write("nobody", EncodeMask(0))
	assert.ErrorIs(t, err, kerrors.ErrNotOpen)
	assert.Equal(t, AllFields, device.Mask(), "rejected write must not change the mask")
}

func TestDeviceReleaseOnlyScenario(t *testing.T) {
	device, _ := newTestDevice(t)

	session, err := device.Open()
	require.NoError(t, err)
	defer device.Close(session.ID)

	require.NoError(t, device.Write(session.ID, EncodeMask(0b000001)))

	lines := readLines(t, device, session.ID)
	require.Len(t, lines, ReportLines)
	assert.Equal(t, logo[2]+metricLineText[FieldRelease], lines[2])
	for i := 3; i < ReportLines; i++ {
		assert.Equal(t, logo[i], lines[i])
	}
}

func TestDeviceWriteThenReadRoundTrip(t *testing.T) {
	device, _ := newTestDevice(t)

	session, err := device.Open()
	require.NoError(t, err)
	defer device.Close(session.ID)

	for raw := uint32(0); raw < 64; raw++ {
		require.NoError(t, device.Write(session.ID, EncodeMask(raw)))
		first := readLines(t, device, session.ID)

		require.NoError(t, device.Write(session.ID, EncodeMask(raw)))
		second := readLines(t, device, session.ID)
		assert.Equal(t, first, second, "same mask must yield the same report")

		metricLines := 0
		for i := headerLines; i < ReportLines; i++ {
			if first[i] != logo[i] {
				metricLines++
			}
		}
		assert.Equal(t, MaskFromRaw(uint64(raw)).Count(), metricLines, "raw %06b", raw)
	}
}

func TestDeviceWriteRejectsWrongWidth(t *testing.T) {
	device, _ := newTestDevice(t)

	session, err := device.Open()
	require.NoError(t, err)
	defer device.Close(session.ID)

	err = device.Write(session.ID, []byte{1, 0})
	assert.ErrorIs(t, err, kerrors.ErrInvalidArgument)
	assert.Equal(t, AllFields, device.Mask())
}

func TestDeviceWriteIgnoresHighBits(t *testing.T) {
	device, _ := newTestDevice(t)

	session, err := device.Open()
	require.NoError(t, err)
	defer device.Close(session.ID)

	require.NoError(t, device.Write(session.ID, EncodeMask(0xFFFFFF00)))
	assert.Equal(t, VisibilityMask(0), device.Mask())
}

func TestDeviceReadBufferTooSmall(t *testing.T) {
	device, _ := newTestDevice(t)

	session, err := device.Open()
	require.NoError(t, err)
	defer device.Close(session.ID)

	full, err := device.Read(context.Background(), session.ID, readLength)
	require.NoError(t, err)

	data, err := device.Read(context.Background(), session.ID, len(full)-1)
	assert.ErrorIs(t, err, kerrors.ErrBufferTooSmall)
	assert.Nil(t, data, "no partial output")

	exact, err := device.Read(context.Background(), session.ID, len(full))
	require.NoError(t, err)
	assert.Equal(t, full, exact)

	_, err = device.Read(context.Background(), session.ID, -1)
	assert.ErrorIs(t, err, kerrors.ErrInvalidArgument)
}

func TestDeviceOpenRace(t *testing.T) {
	device, _ := newTestDevice(t)

	results := make(chan error, 2)
	sessions := make(chan *Session, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := device.Open()
			if err == nil {
				sessions <- s
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)
	close(sessions)

	var busy int
	for err := range results {
		if err != nil {
			assert.ErrorIs(t, err, kerrors.ErrBusy)
			busy++
		}
	}
	assert.Equal(t, 1, busy)

	winner := <-sessions
	require.NotNil(t, winner)
	device.Close(winner.ID)

	third, err := device.Open()
	require.NoError(t, err)
	device.Close(third.ID)
}

func TestDeviceMaskSharedAcrossSessions(t *testing.T) {
	device, _ := newTestDevice(t)

	first, err := device.Open()
	require.NoError(t, err)
	require.NoError(t, device.Write(first.ID, EncodeMask(0b010000)))
	device.Close(first.ID)

	second, err := device.Open()
	require.NoError(t, err)
	defer device.Close(second.ID)

	lines := readLines(t, device, second.ID)
	assert.Equal(t, logo[2]+metricLineText[FieldUptime], lines[2])
	assert.Equal(t, logo[3], lines[3])
}

func TestDeviceClosedSessionCannotRead(t *testing.T) {
	device, _ := newTestDevice(t)

	session, err := device.Open()
	require.NoError(t, err)
	device.Close(session.ID)
	device.Close(session.ID)

	_, err = device.Read(context.Background(), session.ID, readLength)
	assert.ErrorIs(t, err, kerrors.ErrNotOpen)
}

func TestDeviceStatusAndReap(t *testing.T) {
	device, clock := newTestDevice(t)

	status := device.Status()
	assert.False(t, status.Open)
	assert.Equal(t, uint32(63), status.RawMask)
	assert.Len(t, status.EnabledList, 6)

	session, err := device.Open()
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	status = device.Status()
	assert.True(t, status.Open)
	assert.Equal(t, 2*time.Minute, status.SessionAge)
	assert.Equal(t, 2*time.Minute, status.IdleFor)

	assert.True(t, device.ReapIdle(time.Minute))
	_, err = device.Read(context.Background(), session.ID, readLength)
	assert.ErrorIs(t, err, kerrors.ErrNotOpen)
}

// Писатель и читатель работают одновременно: каждый отчет соответствует
// одной из двух записываемых масок, но не их смеси.
func TestDeviceConcurrentWriteRead(t *testing.T) {
	device, _ := newTestDevice(t)

	session, err := device.Open()
	require.NoError(t, err)
	defer device.Close(session.ID)

	const rawA, rawB = 0b000111, 0b111000
	gen := NewGenerator(newFakeProvider(), 0)
	reportA := gen.Generate(context.Background(), MaskFromRaw(rawA)).String()
	reportB := gen.Generate(context.Background(), MaskFromRaw(rawB)).String()

	// Начальная маска AllFields не входит в проверяемую пару
	require.NoError(t, device.Write(session.ID, EncodeMask(rawA)))
	first, err := device.Read(context.Background(), session.ID, readLength)
	require.NoError(t, err)
	require.Equal(t, reportA, string(first))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			raw := uint32(rawA)
			if i%2 == 1 {
				raw = rawB
			}
			assert.NoError(t, device.Write(session.ID, EncodeMask(raw)))
		}
	}()

	for i := 0; i < 500; i++ {
		data, err := device.Read(context.Background(), session.ID, readLength)
		require.NoError(t, err)
		assert.Contains(t, []string{reportA, reportB}, string(data))
	}
	close(stop)
	wg.Wait()
}
