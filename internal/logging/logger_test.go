package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("import started", "import_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "import started", entry["msg"])
	assert.Equal(t, "abc", entry["import_id"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "text").Debug("parsed", "rows", 3)
	assert.Contains(t, buf.String(), "rows=3")
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))

	chiCtx := context.WithValue(context.Background(), middleware.RequestIDKey, "chi-1")
	assert.Equal(t, "chi-1", RequestID(chiCtx))

	detached := WithRequestID(context.Background(), "req-2")
	assert.Equal(t, "req-2", RequestID(detached))

	assert.Equal(t, context.Background(), WithRequestID(context.Background(), ""))
}

func TestWithFields_IncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithRequestID(context.Background(), "req-9")
	WithFields(ctx, "race_id", "r1").Info("done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, "r1", entry["race_id"])
}
