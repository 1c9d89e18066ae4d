package sysinfo

import (
	"context"
	"os"
	"time"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/logger"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/tklauser/numcpus"
)

const bytesPerMB = 1024 * 1024

// Collector читает текущие метрики хоста. Если платформа не может дать
// значение, метод возвращает ошибку UNAVAILABLE.
type Collector struct{}

// NewCollector создает сборщик метрик хоста
func NewCollector() *Collector {
	return &Collector{}
}

func unavailable(err error, what string) error {
	logger.SysInfo.Debug().
		Err(err).
		Str("metric", what).
		Msg("Metric unavailable")
	return kerrors.Wrap(err, kerrors.CodeUnavailable, "failed to get "+what)
}

// Hostname имя узла для заголовка отчета
func (c *Collector) Hostname(_ context.Context) (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", unavailable(err, "hostname")
	}
	return name, nil
}

// Release версия ядра, например "6.1.0-13-amd64"
func (c *Collector) Release(ctx context.Context) (string, error) {
	release, err := host.KernelVersionWithContext(ctx)
	if err != nil {
		return "", unavailable(err, "kernel release")
	}
	logger.SysInfo.Debug().Str("release", release).Msg("Got kernel release")
	return release, nil
}

// CPUModel модель первого логического процессора
func (c *Collector) CPUModel(ctx context.Context) (string, error) {
	cpuInfo, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", unavailable(err, "CPU information")
	}
	if len(cpuInfo) == 0 || cpuInfo[0].ModelName == "" {
		logger.SysInfo.Warn().Msg("No CPU information available")
		return "", kerrors.New(kerrors.CodeUnavailable, "no CPU model reported")
	}

	logger.SysInfo.Debug().
		Int("cpu_info_count", len(cpuInfo)).
		Str("model_name", cpuInfo[0].ModelName).
		Msg("Got CPU model information")
	return cpuInfo[0].ModelName, nil
}

// CPUCount число активных и всех возможных процессоров
func (c *Collector) CPUCount(_ context.Context) (int, int, error) {
	online, err := numcpus.GetOnline()
	if err != nil {
		return 0, 0, unavailable(err, "online CPU count")
	}
	possible, err := numcpus.GetPossible()
	if err != nil {
		return 0, 0, unavailable(err, "possible CPU count")
	}
	return online, possible, nil
}

// Memory свободная и общая память в целых мегабайтах
func (c *Collector) Memory(ctx context.Context) (uint64, uint64, error) {
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, unavailable(err, "memory information")
	}

	logger.SysInfo.Debug().
		Uint64("memory_total", memInfo.Total).
		Uint64("memory_free", memInfo.Free).
		Msg("Got memory information")
	return memInfo.Free / bytesPerMB, memInfo.Total / bytesPerMB, nil
}

// ProcessCount число запущенных процессов
func (c *Collector) ProcessCount(ctx context.Context) (int, error) {
	start := time.Now()
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return 0, unavailable(err, "process list")
	}

	logger.SysInfo.Debug().
		Int("processes", len(pids)).
		Dur("duration", time.Since(start)).
		Msg("Counted processes")
	return len(pids), nil
}

// Uptime целые минуты с момента загрузки
func (c *Collector) Uptime(ctx context.Context) (uint64, error) {
	seconds, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, unavailable(err, "uptime")
	}
	return seconds / 60, nil
}
