package kfetch

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errFakeUnavailable = errors.New("fake: unavailable")

// fakeProvider возвращает фиксированные значения; метрики из failing возвращают ошибку
type fakeProvider struct {
	hostname string
	failing  map[MetricField]bool
	hostFail bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		hostname: "testhost",
		failing:  make(map[MetricField]bool),
	}
}

func (p *fakeProvider) fail(f MetricField) error {
	if p.failing[f] {
		return errFakeUnavailable
	}
	return nil
}

func (p *fakeProvider) Hostname(context.Context) (string, error) {
	if p.hostFail {
		return "", errFakeUnavailable
	}
	return p.hostname, nil
}

func (p *fakeProvider) Release(context.Context) (string, error) {
	return "6.1.0-test", p.fail(FieldRelease)
}

func (p *fakeProvider) CPUModel(context.Context) (string, error) {
	return "Test CPU @ 3.00GHz", p.fail(FieldCPUModel)
}

func (p *fakeProvider) CPUCount(context.Context) (int, int, error) {
	return 4, 8, p.fail(FieldCPUCount)
}

func (p *fakeProvider) Memory(context.Context) (uint64, uint64, error) {
	return 1024, 16384, p.fail(FieldMemory)
}

func (p *fakeProvider) ProcessCount(context.Context) (int, error) {
	return 321, p.fail(FieldProcessCount)
}

func (p *fakeProvider) Uptime(context.Context) (uint64, error) {
	return 42, p.fail(FieldUptime)
}

// fakeClock - часы, которые двигаются вручную
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1735689600, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
