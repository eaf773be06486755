package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mailclassifier/pkg/trace"
)

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	WithTrace(trace.WithContext(context.Background(), "abc123"), base).Info("traced")
	WithTrace(context.Background(), base).Info("untraced")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "abc123", entries[0].ContextMap()["trace_id"])
	assert.NotContains(t, entries[1].ContextMap(), "trace_id")
}

func TestNew(t *testing.T) {
	assert.True(t, New("debug").Core().Enabled(zap.DebugLevel))
	assert.False(t, New("release").Core().Enabled(zap.DebugLevel))
}
