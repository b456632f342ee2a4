package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestStartSpanEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx, span := StartSpan(ctx, "feed.load")
	FromContext(ctx).Info("inside span")
	span.End()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %d", len(lines))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["span_name"] != "feed.load" {
		t.Fatalf("expected span name on the entry, got %v", entry["span_name"])
	}
	if entry["trace_id"] == nil || entry["span_id"] == nil {
		t.Fatalf("expected trace and span ids on the entry, got %v", entry)
	}
}

func TestStartSpanNestsUnderParent(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx, outer := StartSpan(ctx, "outer")
	ctx, inner := StartSpan(ctx, "inner")
	FromContext(ctx).Info("nested")
	inner.End()
	outer.End()

	var entry map[string]any
	line := strings.Split(strings.TrimSpace(buf.String()), "\n")[0]
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["parent_span_id"] == nil {
		t.Fatal("expected the nested span to record its parent")
	}
	if entry["parent_span_id"] == entry["span_id"] {
		t.Fatal("expected the child span id to differ from its parent")
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected the default logger for a bare context")
	}
}
