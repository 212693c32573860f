package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantLevel zapcore.Level
	}{
		{"defaults", Options{}, zapcore.InfoLevel},
		{"debug console", Options{Level: "debug", Format: "console"}, zapcore.DebugLevel},
		{"warn json uppercase", Options{Level: "WARN", Format: "json"}, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.opts)
			require.NoError(t, err)
			defer func() { _ = logger.Sync() }()

			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
		})
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(Options{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = NewLogger(Options{Format: "xml"})
	assert.ErrorContains(t, err, "invalid log format")
}
