// Package kfetch - устройство системного отчета с эксклюзивным доступом.
// Одновременно открыта только одна сессия; она читает отчет из восьми строк
// (ASCII логотип и текущие метрики системы) и может менять набор метрик в отчете.
package kfetch

// MetricField - одна метрика отчета. Порядок объявления совпадает
// с порядком строк в отчете.
type MetricField int

const (
	FieldRelease MetricField = iota
	FieldCPUModel
	FieldCPUCount
	FieldMemory
	FieldProcessCount
	FieldUptime

	numFields
)

// Fields - все метрики в порядке вывода
var Fields = [numFields]MetricField{
	FieldRelease,
	FieldCPUModel,
	FieldCPUCount,
	FieldMemory,
	FieldProcessCount,
	FieldUptime,
}

// wireBits - номер бита каждой метрики в маске, которую пишут клиенты.
// Порядок битов задан протоколом и отличается от Fields.
var wireBits = [numFields]uint{
	FieldRelease:      0,
	FieldCPUCount:     1,
	FieldCPUModel:     2,
	FieldMemory:       3,
	FieldUptime:       4,
	FieldProcessCount: 5,
}

var fieldNames = [numFields]string{
	FieldRelease:      "release",
	FieldCPUModel:     "cpu_model",
	FieldCPUCount:     "cpu_count",
	FieldMemory:       "memory",
	FieldProcessCount: "process_count",
	FieldUptime:       "uptime",
}

// fieldLabels подписи строк, при выводе дополняются до labelWidth
var fieldLabels = [numFields]string{
	FieldRelease:      "Kernel:",
	FieldCPUModel:     "CPU:",
	FieldCPUCount:     "CPUs:",
	FieldMemory:       "Mem:",
	FieldProcessCount: "Procs:",
	FieldUptime:       "Uptime:",
}

func (f MetricField) valid() bool {
	return f >= 0 && f < numFields
}

func (f MetricField) String() string {
	if !f.valid() {
		return "unknown"
	}
	return fieldNames[f]
}

// Label возвращает подпись строки отчета, например "Kernel:"
func (f MetricField) Label() string {
	if !f.valid() {
		return ""
	}
	return fieldLabels[f]
}

// WireBit номер бита метрики в маске протокола
func (f MetricField) WireBit() uint {
	return wireBits[f]
}

// ParseField ищет метрику по имени, которое возвращает String
func ParseField(name string) (MetricField, bool) {
	for _, f := range Fields {
		if fieldNames[f] == name {
			return f, true
		}
	}
	return 0, false
}
