// Package kfetchtest - детерминированный источник метрик и конструктор
// устройства для тестов пакетов, построенных на kfetch.
package kfetchtest

import (
	"context"
	"errors"
	"testing"

	"kfetch/internal/kfetch"
)

// ErrUnavailable возвращают методы, перечисленные в Provider.Failing
var ErrUnavailable = errors.New("kfetchtest: metric unavailable")

// Provider возвращает фиксированные значения метрик
type Provider struct {
	Host    string
	Failing map[kfetch.MetricField]bool
}

// NewProvider создает источник с именем хоста "testhost"
func NewProvider() *Provider {
	return &Provider{
		Host:    "testhost",
		Failing: make(map[kfetch.MetricField]bool),
	}
}

func (p *Provider) err(f kfetch.MetricField) error {
	if p.Failing[f] {
		return ErrUnavailable
	}
	return nil
}

func (p *Provider) Hostname(context.Context) (string, error) { return p.Host, nil }

func (p *Provider) Release(context.Context) (string, error) {
	return "6.1.0-test", p.err(kfetch.FieldRelease)
}

func (p *Provider) CPUModel(context.Context) (string, error) {
	return "Test CPU @ 3.00GHz", p.err(kfetch.FieldCPUModel)
}

func (p *Provider) CPUCount(context.Context) (int, int, error) {
	return 4, 8, p.err(kfetch.FieldCPUCount)
}

func (p *Provider) Memory(context.Context) (uint64, uint64, error) {
	return 1024, 16384, p.err(kfetch.FieldMemory)
}

func (p *Provider) ProcessCount(context.Context) (int, error) {
	return 321, p.err(kfetch.FieldProcessCount)
}

func (p *Provider) Uptime(context.Context) (uint64, error) {
	return 42, p.err(kfetch.FieldUptime)
}

// NewDevice создает устройство со всеми метриками на новом Provider
func NewDevice(t testing.TB) *kfetch.Device {
	t.Helper()
	device, err := kfetch.New(kfetch.Options{
		Provider:    NewProvider(),
		InitialMask: kfetch.AllFields,
	})
	if err != nil {
		t.Fatalf("kfetch.New: %v", err)
	}
	return device
}
