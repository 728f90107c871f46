package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", DiagramID(ctx))
	assert.Equal(t, "", ReadID(ctx))
	assert.Equal(t, "", TaskID(ctx))

	ctx = WithDiagramID(ctx, "gateway-test1")
	ctx = WithReadID(ctx, "read-1")
	ctx = WithTaskID(ctx, "Task1")

	assert.Equal(t, "gateway-test1", DiagramID(ctx))
	assert.Equal(t, "read-1", ReadID(ctx))
	assert.Equal(t, "Task1", TaskID(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithIDs(context.Background(), "say-hello", "read-abc")
	ctx = WithTaskID(ctx, "Task_1")

	enriched := LogWith(ctx, logger)
	enriched.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "diagram_id=say-hello")
	assert.Contains(t, output, "read_id=read-abc")
	assert.Contains(t, output, "task_id=Task_1")
	assert.Contains(t, output, "test message")
}

func TestLogWithMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithDiagramID(context.Background(), "only")

	LogWith(ctx, logger).Info("partial context")

	output := buf.String()
	assert.Contains(t, output, "diagram_id=only")
	assert.NotContains(t, output, "read_id")
	assert.NotContains(t, output, "task_id")
}

func TestWithIDs(t *testing.T) {
	ctx := WithIDs(context.Background(), "d-1", "r-2")
	assert.Equal(t, "d-1", DiagramID(ctx))
	assert.Equal(t, "r-2", ReadID(ctx))
	assert.Equal(t, "", TaskID(ctx))
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithIDs(context.Background(), "d-auto", "r-auto")
	logger.InfoContext(ctx, "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"diagram_id":"d-auto"`)
	assert.Contains(t, output, `"read_id":"r-auto"`)
	assert.NotContains(t, output, "task_id")
	assert.Contains(t, output, "auto inject")
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	logger.InfoContext(context.Background(), "bare log")

	output := buf.String()
	assert.NotContains(t, output, "diagram_id")
	assert.NotContains(t, output, "read_id")
	assert.Contains(t, output, "bare log")
}

func TestCorrelationHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewCorrelationHandler(inner)
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "reader")}))

	ctx := WithDiagramID(context.Background(), "d-attr")
	logger.InfoContext(ctx, "with attrs")

	output := buf.String()
	assert.Contains(t, output, `"diagram_id":"d-attr"`)
	assert.Contains(t, output, `"component":"reader"`)
}

func TestCorrelationHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner).WithGroup("reader"))

	ctx := WithDiagramID(context.Background(), "d-grp")
	logger.InfoContext(ctx, "grouped", "key", "val")

	output := buf.String()
	assert.Contains(t, output, "d-grp")
	assert.Contains(t, output, "grouped")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")

	ctx := WithDiagramID(context.Background(), "d-json")
	logger.InfoContext(ctx, "dropped")
	logger.WarnContext(ctx, "kept")

	output := buf.String()
	assert.NotContains(t, output, "dropped")
	assert.Contains(t, output, `"msg":"kept"`)
	assert.Contains(t, output, `"diagram_id":"d-json"`)
}
