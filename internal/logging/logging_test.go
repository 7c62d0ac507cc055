package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rickgao/position-relay/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_StdoutOnly(t *testing.T) {
	var out bytes.Buffer
	logger, closer, err := newLogger(config.LoggingConfig{Level: "warn"}, &out)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "client_id", "alice")

	got := out.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("info message logged at warn level: %q", got)
	}
	if !strings.Contains(got, "msg=shown") || !strings.Contains(got, "client_id=alice") {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestNew_TeesToFile(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "relay.log")

	logger, closer, err := newLogger(config.LoggingConfig{
		Level:      "debug",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, &out)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	logger.Debug("session accepted", "endpoint", "10.0.0.1:5000")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "session accepted") {
		t.Errorf("log file missing message: %q", data)
	}
	if !strings.Contains(out.String(), "session accepted") {
		t.Errorf("stdout missing message: %q", out.String())
	}
}
