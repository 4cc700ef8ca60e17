package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json").Info("scan finished", "created", 2)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"created":2`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	logger := New(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown", "schedule_id", 7)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "schedule_id=7") {
		t.Errorf("text output = %q", out)
	}
}
