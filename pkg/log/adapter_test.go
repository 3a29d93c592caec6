package log

import (
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedAdapter(level zapcore.Level) (log.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewKratosAdapter(zap.New(core)), logs
}

// TestAdapter_ConvertsKeyvalsToFields verifies keyval pairs become zap
// fields at the matching level.
func TestAdapter_ConvertsKeyvalsToFields(t *testing.T) {
	adapter, logs := newObservedAdapter(zapcore.DebugLevel)

	err := adapter.Log(log.LevelWarn, "breaker", "mysql", "failure_count", 3)

	assert.NoError(t, err)
	assert.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "mysql", fields["breaker"])
	assert.Equal(t, int64(3), fields["failure_count"])
}

// TestAdapter_SanitizesSensitiveValues verifies secrets are masked before
// reaching any sink.
func TestAdapter_SanitizesSensitiveValues(t *testing.T) {
	adapter, logs := newObservedAdapter(zapcore.DebugLevel)

	err := adapter.Log(log.LevelInfo,
		"source", "labsentry:hunter2@tcp(127.0.0.1:3306)/labsentry",
		"addr", "127.0.0.1:6379")

	assert.NoError(t, err)
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "labsentry:****@tcp(127.0.0.1:3306)/labsentry", fields["source"])
	assert.Equal(t, "127.0.0.1:6379", fields["addr"])
}

// TestAdapter_EmptyKeyvals verifies a bare log call is a no-op.
func TestAdapter_EmptyKeyvals(t *testing.T) {
	adapter, logs := newObservedAdapter(zapcore.DebugLevel)

	assert.NoError(t, adapter.Log(log.LevelInfo))
	assert.Equal(t, 0, logs.Len())
}

// TestAdapter_OddKeyvalsDropTrailingKey verifies a dangling key without a
// value never panics.
func TestAdapter_OddKeyvalsDropTrailingKey(t *testing.T) {
	adapter, logs := newObservedAdapter(zapcore.DebugLevel)

	assert.NoError(t, adapter.Log(log.LevelInfo, "state", "open", "dangling"))

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "open", fields["state"])
	_, ok := fields["dangling"]
	assert.False(t, ok)
}
