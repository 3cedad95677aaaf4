package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/jwebster45206/taleparty/internal/config"
)

func TestSetupWriter_Production(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	log := SetupWriter(&config.Config{Environment: "production", LogLevel: "warn", ServiceName: "taleparty"}, &buf)

	log.Info("hidden")
	WithSession(log, "s-1", "u-1").Warn("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["session_id"] != "s-1" || entry["user_id"] != "u-1" || entry["service"] != "taleparty" {
		t.Errorf("missing attributes: %v", entry)
	}
}

func TestSetupWriter_Development(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	log := SetupWriter(&config.Config{Environment: "development", LogLevel: "debug"}, &buf)
	WithRequestID(log, "r-9").Debug("hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=r-9") || !strings.Contains(out, "msg=hello") {
		t.Errorf("unexpected text output %q", out)
	}
}
