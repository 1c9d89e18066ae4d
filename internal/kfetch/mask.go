package kfetch

import (
	"encoding/binary"
	"fmt"
	"strings"

	kerrors "kfetch/internal/errors"
)

// MaskWidth - точный размер маски в байтах для Write.
// Значение - 32-битное целое в нативном порядке байтов.
const MaskWidth = 4

// VisibilityMask - набор метрик, включенных в отчет.
// Это обычное значение, копии независимы.
type VisibilityMask uint8

// AllFields включает все метрики, значение по умолчанию
const AllFields VisibilityMask = 1<<numFields - 1

// MaskOf строит маску ровно из указанных метрик
func MaskOf(fields ...MetricField) VisibilityMask {
	var m VisibilityMask
	for _, f := range fields {
		if f.valid() {
			m |= 1 << f
		}
	}
	return m
}

// MaskFromRaw разбирает младшие шесть бит raw в порядке протокола.
// Старшие биты игнорируются.
func MaskFromRaw(raw uint64) VisibilityMask {
	var m VisibilityMask
	for _, f := range Fields {
		if raw>>f.WireBit()&1 == 1 {
			m |= 1 << f
		}
	}
	return m
}

// Raw кодирует маску в число протокола, обратно MaskFromRaw
func (m VisibilityMask) Raw() uint32 {
	var raw uint32
	for _, f := range Fields {
		if m.Has(f) {
			raw |= 1 << f.WireBit()
		}
	}
	return raw
}

// Has сообщает, включена ли метрика f
func (m VisibilityMask) Has(f MetricField) bool {
	return f.valid() && m&(1<<f) != 0
}

// Enabled возвращает включенные метрики в порядке вывода
func (m VisibilityMask) Enabled() []MetricField {
	enabled := make([]MetricField, 0, numFields)
	for _, f := range Fields {
		if m.Has(f) {
			enabled = append(enabled, f)
		}
	}
	return enabled
}

// Count количество включенных метрик
func (m VisibilityMask) Count() int {
	return len(m.Enabled())
}

func (m VisibilityMask) String() string {
	enabled := m.Enabled()
	if len(enabled) == 0 {
		return "none"
	}
	names := make([]string, len(enabled))
	for i, f := range enabled {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}

// EncodeMask формирует данные фиксированной ширины для Write
func EncodeMask(raw uint32) []byte {
	payload := make([]byte, MaskWidth)
	binary.NativeEndian.PutUint32(payload, raw)
	return payload
}

// DecodeMask разбирает данные Write; длина должна быть ровно MaskWidth байт
func DecodeMask(payload []byte) (uint32, error) {
	if len(payload) != MaskWidth {
		return 0, kerrors.New(kerrors.CodeInvalidArgument,
			fmt.Sprintf("mask payload must be %d bytes, got %d", MaskWidth, len(payload)))
	}
	return binary.NativeEndian.Uint32(payload), nil
}
