package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.WithPrefix("poller").Info("mode changed", "mode", "weather")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON line, got %q: %v", lines[0], err)
	}
	if entry["msg"] != "mode changed" {
		t.Errorf("Expected msg field, got %v", entry["msg"])
	}
	if entry["mode"] != "weather" {
		t.Errorf("Expected mode field, got %v", entry["mode"])
	}
	if entry["prefix"] != "poller" {
		t.Errorf("Expected prefix field, got %v", entry["prefix"])
	}
}

func TestNewDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "DEBUG", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("tick", "n", 1)
	if !strings.Contains(buf.String(), "tick") {
		t.Errorf("Expected debug line, got %q", buf.String())
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown level")
	}
	if _, err := New(Options{Level: "info", Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format")
	}
}
