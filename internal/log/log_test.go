package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("text format by default", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{})

		logger.Info("hello", "key", "value")

		out := buf.String()
		if !strings.Contains(out, "msg=hello") {
			t.Errorf("expected text format output, got %q", out)
		}
		if !strings.Contains(out, "key=value") {
			t.Errorf("expected attribute in output, got %q", out)
		}
	})

	t.Run("JSON format when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{JSON: true})

		logger.Info("hello")

		out := buf.String()
		if !strings.Contains(out, `"msg":"hello"`) {
			t.Errorf("expected JSON output, got %q", out)
		}
	})

	t.Run("respects level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

		logger.Info("suppressed")
		logger.Warn("visible")

		out := buf.String()
		if strings.Contains(out, "suppressed") {
			t.Errorf("info message should be suppressed, got %q", out)
		}
		if !strings.Contains(out, "visible") {
			t.Errorf("warn message should be logged, got %q", out)
		}
	})
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	// Must not panic and must accept all levels.
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
}
