package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		"INFO":    zap.InfoLevel,
		"warn":    zap.WarnLevel,
		"warning": zap.WarnLevel,
		"error":   zap.ErrorLevel,
		"verbose": zap.InfoLevel,
		"":        zap.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "brokergw.log")

	logger := NewLogger(LogOptions{Level: "info", Format: "json", File: path, MaxSizeMB: 1})
	logger.Debug("hidden")
	logger.Info("order filled", zap.String("symbol", "AAPL"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %s", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "order filled" {
		t.Errorf("msg = %v, want %q", entry["msg"], "order filled")
	}
	if entry["symbol"] != "AAPL" {
		t.Errorf("symbol = %v, want %q", entry["symbol"], "AAPL")
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("entry has no ts field")
	}
}

func TestNewLoggerConsoleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")

	logger := NewLogger(LogOptions{Level: "debug", Format: "console", File: path})
	logger.Debug("starting")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "DEBUG") || !strings.Contains(string(data), "starting") {
		t.Errorf("console output = %q, want DEBUG level and message", data)
	}
}

func TestSetDefault(t *testing.T) {
	logger := zap.NewNop()
	SetDefault(logger)
	t.Cleanup(func() { SetDefault(zap.NewNop()) })

	if zap.L() != logger {
		t.Error("zap.L() did not return the installed logger")
	}
}
