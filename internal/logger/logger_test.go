package logger

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func roundFields(t *testing.T, logs *observer.ObservedLogs) map[string]interface{} {
	t.Helper()
	entries := logs.TakeAll()
	require.Len(t, entries, 1)
	return entries[0].ContextMap()
}

func TestWithRoundAttachesCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithRound(base, 42).Info("round started")
	fields := roundFields(t, logs)

	assert.EqualValues(t, 42, fields["auction_id"])
	correlation, ok := fields["correlation_id"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(correlation)
	assert.NoError(t, err, "the correlation id must be a valid uuid")
}

func TestWithRoundIssuesFreshCorrelationIDs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithRound(base, 1).Info("first")
	first := roundFields(t, logs)["correlation_id"]
	WithRound(base, 1).Info("second")
	second := roundFields(t, logs)["correlation_id"]

	assert.NotEqual(t, first, second, "each round gets its own correlation id")
}

func TestNewRespectsDevelopmentLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "test.log")

	production, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, production.Core().Enabled(zapcore.DebugLevel))

	cfg.Development = true
	development, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, development.Core().Enabled(zapcore.DebugLevel))
}
