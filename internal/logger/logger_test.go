package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestSetLevel(t *testing.T) {
	previous := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })

	assert.Equal(t, zerolog.ErrorLevel, SetLevel("error"))
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())

	assert.Equal(t, zerolog.DebugLevel, SetLevel("debug"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestLoggersAreSafeBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Device.Info().Msg("not written")
		l := GetSessionLogger("abc")
		l.Debug().Msg("not written")
	})
}

func TestIsDevelopment(t *testing.T) {
	for env, want := range map[string]bool{
		"":            true,
		"dev":         true,
		"Development": true,
		"production":  false,
		"staging":     false,
	} {
		assert.Equal(t, want, isDevelopment(env), "environment %q", env)
	}
}
