package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Level: "warn", Format: "json", Output: &buf})

	log.Info("hidden")
	log.Warn("Probe failure", "check", "agent-cpu", "tick", 3)
	log.Error("Check failed", errors.New("boom"), "check", "policy-coverage")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info must be filtered at warn level: %s", out)
	}
	for _, want := range []string{`"check":"agent-cpu"`, `"tick":3`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %s: %s", want, out)
		}
	}
}

func TestLoggerHookReceivesBoundFields(t *testing.T) {
	var buf bytes.Buffer
	var gotLevel Level
	var gotFields map[string]interface{}

	log := NewWithOptions(Options{Level: "debug", Output: &buf}).
		With("host", "ws-01").
		WithHook(func(level Level, msg string, fields map[string]interface{}) {
			gotLevel = level
			gotFields = fields
		})

	log.Warn("Probe failure", "check", "file-open-latency")

	if gotLevel != WARN {
		t.Fatalf("level = %s", gotLevel)
	}
	if gotFields["host"] != "ws-01" || gotFields["check"] != "file-open-latency" {
		t.Fatalf("unexpected fields: %v", gotFields)
	}
}
