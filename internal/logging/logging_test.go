package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New("info", "json", &buf)
		if err != nil {
			t.Fatalf("New() returned an unexpected error: %v", err)
		}
		logger.Info("Session prepared", "selected", 3)

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
		}
		if entry["msg"] != "Session prepared" {
			t.Errorf("msg = %v, want %q", entry["msg"], "Session prepared")
		}
		if entry["selected"] != float64(3) {
			t.Errorf("selected = %v, want 3", entry["selected"])
		}
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New("warn", "text", &buf)
		if err != nil {
			t.Fatalf("New() returned an unexpected error: %v", err)
		}
		logger.Info("hidden")
		logger.Warn("shown")
		if strings.Contains(buf.String(), "hidden") {
			t.Errorf("info line logged at warn level: %q", buf.String())
		}
		if !strings.Contains(buf.String(), "shown") {
			t.Errorf("warn line missing: %q", buf.String())
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		if _, err := New("loud", "text", &bytes.Buffer{}); err == nil {
			t.Error("expected an error for an unknown level")
		}
		if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
			t.Error("expected an error for an unknown format")
		}
	})
}
