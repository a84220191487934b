package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

func TestZapLoggerAdapter_ConvertsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Info("order processed",
		ports.String("order_code", "ORD-1"),
		ports.Int("lines", 2),
		ports.Duration("elapsed", time.Second),
		ports.Err(errors.New("boom")))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "order processed", entry.Message)

	ctx := entry.ContextMap()
	assert.Equal(t, "ORD-1", ctx["order_code"])
	assert.EqualValues(t, 2, ctx["lines"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapLoggerAdapter_With(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core)).With(ports.String("job_id", "42"))

	logger.Warn("retrying")
	logger.Debug("detail")

	require.Equal(t, 2, logs.Len())
	for _, entry := range logs.All() {
		assert.Equal(t, "42", entry.ContextMap()["job_id"])
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(false, "loud")
	assert.Error(t, err)
}

func TestNew_Levels(t *testing.T) {
	logger, err := New(true, "debug")
	require.NoError(t, err)
	assert.True(t, logger.Zap().Core().Enabled(zap.DebugLevel))

	logger, err = New(false, "warn")
	require.NoError(t, err)
	assert.False(t, logger.Zap().Core().Enabled(zap.InfoLevel))
}
