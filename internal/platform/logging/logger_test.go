package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTraceID(t *testing.T) {
	ids := make(map[string]struct{}, 50)
	for range 50 {
		id := NewTraceID()
		assert.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 50)
}

func TestTraceID_Roundtrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "cafe0001")
	id, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "cafe0001", id)

	_, ok = TraceID(WithTraceID(context.Background(), ""))
	assert.False(t, ok)

	_, ok = TraceID(context.Background())
	assert.False(t, ok)
}

func TestTraceHandler_AddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "text").With("component", "refresh")

	logger.InfoContext(WithTraceID(context.Background(), "beef1234"), "tick", "feed", "trip_updates")

	out := buf.String()
	assert.Contains(t, out, "trace_id=beef1234")
	assert.Contains(t, out, "component=refresh")
	assert.Contains(t, out, "feed=trip_updates")
}

func TestTraceHandler_AddsLogin(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	ctx := WithLogin(WithTraceID(context.Background(), "0badf00d"), "octocat")
	logger.InfoContext(ctx, "rpc call")

	assert.Contains(t, buf.String(), `"trace_id":"0badf00d"`)
	assert.Contains(t, buf.String(), `"login":"octocat"`)

	_, ok := Login(WithLogin(context.Background(), ""))
	assert.False(t, ok)
}

func TestTraceHandler_OmitsMissingTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Info("no trace")

	assert.NotContains(t, buf.String(), "trace_id")
	assert.Contains(t, buf.String(), `"msg":"no trace"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")

	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
