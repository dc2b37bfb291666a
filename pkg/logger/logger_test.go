package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFieldsAndWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel).With(String("component", "agent"))

	l.Debug("hidden")
	l.Warn("pass failed",
		Int("rows", 9),
		Strings("sinks", []string{"kafka", "websocket"}),
		Duration("interval", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if got["component"] != "agent" || got["level"] != "warn" || got["message"] != "pass failed" {
		t.Fatalf("unexpected event %v", got)
	}
	if got["rows"] != float64(9) || got["interval"] != float64(1500) || got["error"] != "boom" {
		t.Fatalf("unexpected fields %v", got)
	}
	if sinks, ok := got["sinks"].([]any); !ok || len(sinks) != 2 {
		t.Fatalf("sinks %v", got["sinks"])
	}
}

func TestNilErrorFieldOmitted(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, zerolog.InfoLevel).Info("ok", Error(nil))
	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Fatalf("nil error logged: %s", buf.String())
	}
}
