package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New("test", Options{Level: WarnLevel, Output: &buf})

	l.Debug("dropped", nil)
	l.Info("dropped", nil)
	l.Warn("kept", Fields{"k": "v"})
	l.Error("kept too", nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	if lines[0]["msg"] != "kept" || lines[0]["k"] != "v" {
		t.Errorf("unexpected first entry: %v", lines[0])
	}
	if lines[0]["component"] != "test" {
		t.Errorf("component field missing: %v", lines[0])
	}
	if id, _ := lines[0]["run_id"].(string); id == "" {
		t.Errorf("run_id field missing: %v", lines[0])
	}
}

func TestLoggerWithMergesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New("test", Options{Level: DebugLevel, Output: &buf}).
		With(Fields{"a": "1", "b": "1"})

	l.Info("hello", Fields{"b": "2"})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["a"] != "1" || lines[0]["b"] != "2" {
		t.Errorf("call fields must override child fields: %v", lines[0])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        InfoLevel,
		"DEBUG":   DebugLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPionLoggerFactory(t *testing.T) {
	var buf bytes.Buffer
	f := PionLoggerFactory{Logger: New("test", Options{Level: DebugLevel, Output: &buf})}

	pl := f.NewLogger("dtls")
	pl.Tracef("flight %d", 1)
	pl.Warn("retransmit")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["msg"] != "flight 1" || lines[0]["level"] != "debug" {
		t.Errorf("trace should map to debug: %v", lines[0])
	}
	if lines[1]["pion_scope"] != "dtls" || lines[1]["level"] != "warn" {
		t.Errorf("unexpected warn entry: %v", lines[1])
	}
}
