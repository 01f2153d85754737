package console

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestConsoleLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{JSON: true, Output: &buf})

	l.Info("[Batch] Finished", "admitted", 3)

	line := strings.TrimSpace(buf.String())
	var out map[string]any
	if err := json.Unmarshal([]byte(line), &out); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", line, err)
	}
	if out["msg"] != "[Batch] Finished" {
		t.Fatalf("unexpected msg: %v", out["msg"])
	}
	if out["admitted"] != float64(3) {
		t.Fatalf("unexpected admitted field: %v", out["admitted"])
	}
}

func TestConsoleLogger_DebugFiltered(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Output: &buf})

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered at info level, got %q", buf.String())
	}

	l = NewConsoleLogger(ConsoleLoggerParams{Debug: true, Output: &buf})
	l.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}
