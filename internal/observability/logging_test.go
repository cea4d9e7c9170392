package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "defaults", cfg: LogConfig{}},
		{name: "json debug", cfg: LogConfig{Level: "debug", Format: "json"}},
		{name: "console warn", cfg: LogConfig{Level: "warn", Format: "console"}},
		{name: "stderr output", cfg: LogConfig{Output: "stderr"}},
		{name: "invalid level", cfg: LogConfig{Level: "verbose"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)

			logger.Info("test message", String("key", "value"))
			child := logger.With(String("component", "test"))
			child.Debug("child message", Int("n", 1))
		})
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Debug("msg")
	logger.Info("msg", String("k", "v"))
	logger.Warn("msg")
	logger.Error("msg", Error(assert.AnError))
	assert.NoError(t, logger.Sync())
	assert.NotNil(t, logger.With(String("k", "v")))
}

func TestGlobalLogger(t *testing.T) {
	original := GlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(original) })

	logger, err := NewLogger(LogConfig{})
	require.NoError(t, err)

	SetGlobalLogger(logger)
	assert.Equal(t, logger, GlobalLogger())
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}
