package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		wantErr bool
	}{
		{level: "debug", enabled: zapcore.DebugLevel},
		{level: "info", enabled: zapcore.InfoLevel},
		{level: "warn", enabled: zapcore.WarnLevel},
		{level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(tt.level)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.enabled))
			assert.False(t, l.Core().Enabled(tt.enabled-1))
		})
	}
}

func TestInitialize(t *testing.T) {
	require.NoError(t, Initialize("error"))
	assert.False(t, Logger.Core().Enabled(zapcore.InfoLevel))
	Sync()

	require.Error(t, Initialize("nope"))
}
