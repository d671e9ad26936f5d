package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent(ComponentImport).With(FieldUserID, "u1").Info("done", "count", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentImport || rec[FieldUserID] != "u1" || rec["count"] != float64(3) {
		t.Fatalf("record = %v", rec)
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected fallback logger")
	}
	logger := Discard()
	if got := FromContext(NewContext(context.Background(), logger)); got != logger {
		t.Fatalf("FromContext returned a different logger")
	}
}

func TestFieldsToSlice(t *testing.T) {
	f := NewFields().WithUser("u1").WithError(nil).WithOperation(OpSubmit)
	f[FieldComponent] = "ignored"

	got := f.ToSlice()
	if len(got) != 4 {
		t.Fatalf("ToSlice = %v", got)
	}
	seen := map[any]any{}
	for i := 0; i < len(got); i += 2 {
		seen[got[i]] = got[i+1]
	}
	if seen[FieldUserID] != "u1" || seen[FieldOperation] != OpSubmit {
		t.Fatalf("ToSlice = %v", got)
	}
	if _, ok := seen[FieldError]; ok {
		t.Fatalf("nil error must not be logged")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	ctx := context.Background()

	r := httptest.NewRequest("GET", "/api/summary?x=1", nil)
	sl.LogHTTPEnd(ctx, r, 503, 12, "10.0.0.1")
	sl.LogError(ctx, "boom", errors.New("disk full"), ComponentStorage, "save", nil)
	sl.LogImportCompleted(ctx, "u1", 3, 2, 1, 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["level"] != "ERROR" || rec[FieldStatusCode] != float64(503) || rec[FieldPath] != "/api/summary" {
		t.Fatalf("http record = %v", rec)
	}
	if !strings.Contains(lines[1], `"error":"disk full"`) || !strings.Contains(lines[1], `"component":"storage"`) {
		t.Fatalf("error record = %s", lines[1])
	}
	if !strings.Contains(lines[2], `"rows_skipped":1`) {
		t.Fatalf("import record = %s", lines[2])
	}
}
