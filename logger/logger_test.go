package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"papertrade/config"

	"go.uber.org/zap"
)

// go test -v --run TestNewWritesRotatedFile
func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "papertrade.log")

	log, err := New(config.LogConfig{Level: "debug", Format: "json", OutputFile: path, Environment: "test"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Info("quote cached", zap.String("symbol", "AAPL"))
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(strings.Split(string(raw), "\n")[0])

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", line)
	}
	if entry["msg"] != "quote cached" || entry["symbol"] != "AAPL" || entry["env"] != "test" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

// go test -v --run TestNewRejectsBadLevel
func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
