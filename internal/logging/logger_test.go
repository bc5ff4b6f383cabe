package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerRendersComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger = logger.With(String(FieldComponent, "pipeline"))
	logger.Info("stage completed", String("stage", "probe"), Float64("duration_seconds", 1.5))

	line := buf.String()
	if !strings.Contains(line, "INFO pipeline: stage completed") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "stage=probe") {
		t.Fatalf("missing stage attr: %q", line)
	}
	if !strings.Contains(line, "duration_seconds=1.5") {
		t.Fatalf("missing duration attr: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Warn("encoder warning", String("line", "Error while decoding stream"))

	if !strings.Contains(buf.String(), `line="Error while decoding stream"`) {
		t.Fatalf("expected quoted attr, got %q", buf.String())
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	handler := newConsoleHandler(&buf, lvl)

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be suppressed at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should pass at warn level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("unexpected level: %v", got)
	}
	if got := parseLevel("nonsense"); got != slog.LevelInfo {
		t.Fatalf("unexpected fallback level: %v", got)
	}
}
