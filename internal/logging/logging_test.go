package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_TextDropsEmptyAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelDebug, Out: &buf})
	logger.Debug("hello", "kept", "yes", "empty", "", "count", 0)

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "kept=yes") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(out, "empty=") || strings.Contains(out, "count=") {
		t.Fatalf("empty attributes must be dropped: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("non-terminal output must not be colourised: %q", out)
	}
}

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelWarn, Format: "json", Out: &buf})
	logger.Info("quiet")
	logger.Warn("loud", "k", "v")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info must be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, `"msg":"loud"`) || !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("unexpected json output %q", out)
	}
}
