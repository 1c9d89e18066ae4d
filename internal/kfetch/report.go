package kfetch

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"kfetch/internal/logger"
)

const (
	// ReportLines число строк любого отчета
	ReportLines = LogoLines

	// MaxLineWidth предельная длина строки в байтах
	MaxLineWidth = 1024

	// labelWidth ширина колонки подписей
	labelWidth = 11

	// headerLines - строки имени хоста и разделителя перед метриками
	headerLines = 2
)

// Provider поставляет текущие метрики. Любой метод может вернуть ошибку,
// тогда строка пропускается, а отчет формируется дальше.
type Provider interface {
	Hostname(ctx context.Context) (string, error)
	Release(ctx context.Context) (string, error)
	CPUModel(ctx context.Context) (string, error)
	CPUCount(ctx context.Context) (online, total int, err error)
	// Memory свободная и общая память в целых мегабайтах
	Memory(ctx context.Context) (freeMB, totalMB uint64, err error)
	ProcessCount(ctx context.Context) (int, error)
	// Uptime целые минуты с момента загрузки
	Uptime(ctx context.Context) (minutes uint64, err error)
}

// Report - готовый отчет, всегда ровно ReportLines строк
type Report [ReportLines]string

// Size размер сериализованного отчета с переводом строки после каждой строки
func (r Report) Size() int {
	size := 0
	for _, line := range r {
		size += len(line) + 1
	}
	return size
}

// AppendTo дописывает строки отчета в buf
func (r Report) AppendTo(buf []byte) []byte {
	for _, line := range r {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return buf
}

func (r Report) String() string {
	return string(r.AppendTo(make([]byte, 0, r.Size())))
}

// Generator строит отчеты по данным Provider
type Generator struct {
	provider Provider
	timeout  time.Duration
}

// NewGenerator создает генератор. Положительный timeout ограничивает сбор
// метрик одного отчета; не успевшие метрики пропускаются.
func NewGenerator(provider Provider, timeout time.Duration) *Generator {
	return &Generator{
		provider: provider,
		timeout:  timeout,
	}
}

// Generate строит отчет по маске и никогда не завершается ошибкой:
// недоступные метрики пропускаются, оставшиеся строки содержат только логотип.
func (g *Generator) Generate(ctx context.Context, mask VisibilityMask) Report {
	start := time.Now()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	hostname, err := g.provider.Hostname(ctx)
	if err != nil {
		logger.Report.Warn().Err(err).Msg("Host name unavailable")
		hostname = ""
	}

	var report Report
	report[0] = composeLine(logo[0], hostname)
	report[1] = composeLine(logo[1], strings.Repeat("-", utf8.RuneCountInString(hostname)))

	line := headerLines
	omitted := 0
	for _, field := range mask.Enabled() {
		value, err := g.value(ctx, field)
		if err == nil {
			// Значение, полученное после дедлайна, считается недоступным
			err = ctx.Err()
		}
		if err != nil {
			omitted++
			logger.Report.Warn().
				Err(err).
				Str("field", field.String()).
				Msg("Metric unavailable, omitting line")
			continue
		}
		report[line] = composeLine(logo[line], fmt.Sprintf("%-*s%s", labelWidth, field.Label(), value))
		line++
	}

	for ; line < ReportLines; line++ {
		report[line] = logo[line]
	}

	logger.Report.Debug().
		Str("mask", mask.String()).
		Int("omitted", omitted).
		Dur("duration", time.Since(start)).
		Msg("Report generated")

	return report
}

// value форматирует текст одной метрики
func (g *Generator) value(ctx context.Context, field MetricField) (string, error) {
	switch field {
	case FieldRelease:
		return g.provider.Release(ctx)
	case FieldCPUModel:
		return g.provider.CPUModel(ctx)
	case FieldCPUCount:
		online, total, err := g.provider.CPUCount(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d / %d", online, total), nil
	case FieldMemory:
		free, total, err := g.provider.Memory(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d MB / %d MB", free, total), nil
	case FieldProcessCount:
		count, err := g.provider.ProcessCount(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d", count), nil
	case FieldUptime:
		minutes, err := g.provider.Uptime(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d mins", minutes), nil
	default:
		return "", fmt.Errorf("unknown metric field %d", int(field))
	}
}

// composeLine склеивает сегмент логотипа и текст, обрезая до MaxLineWidth
// по границе руны. Переводы строк в тексте заменяются пробелами.
func composeLine(segment, text string) string {
	line := segment + strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, text)
	if len(line) <= MaxLineWidth {
		return line
	}
	cut := MaxLineWidth
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}
