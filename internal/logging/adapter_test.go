package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewSlogAdapter_WithNil(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	if adapter == nil {
		t.Fatal("NewSlogAdapter returned nil")
	}
	if adapter.Logger() == nil {
		t.Error("adapter logger should not be nil when created with nil")
	}
}

func TestSlogAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	adapter.Infof("session %s opened", "abc")
	adapter.Errorf("write failed: %v", "broken pipe")

	dec := json.NewDecoder(&buf)
	want := []struct{ level, msg string }{
		{"INFO", "session abc opened"},
		{"ERROR", "write failed: broken pipe"},
	}
	for _, w := range want {
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("failed to decode log entry: %v", err)
		}
		if entry["level"] != w.level {
			t.Errorf("level = %v, want %s", entry["level"], w.level)
		}
		if entry["msg"] != w.msg {
			t.Errorf("msg = %v, want %s", entry["msg"], w.msg)
		}
		if entry[KeyComponent] != "mcp-transport" {
			t.Errorf("component = %v, want mcp-transport", entry[KeyComponent])
		}
	}
}
