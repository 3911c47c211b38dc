package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("Log line is not valid JSON: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("kept too")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("Unexpected levels: %s, %s", entries[0].Level, entries[1].Level)
	}
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Info("border calibrated",
		Border(0.12),
		NodeKey("attacker_1"),
		GroupKey("founders"),
		Int("iterations", 3),
		Error(errors.New("nothing wrong")))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].Fields
	if fields["border"] != 0.12 {
		t.Errorf("Expected border field 0.12, got %v", fields["border"])
	}
	if fields["node_key"] != "attacker_1" {
		t.Errorf("Expected node_key field, got %v", fields["node_key"])
	}
	if fields["group_key"] != "founders" {
		t.Errorf("Expected group_key field, got %v", fields["group_key"])
	}
	if fields["iterations"] != float64(3) {
		t.Errorf("Expected iterations field 3, got %v", fields["iterations"])
	}
	if fields["error"] != "nothing wrong" {
		t.Errorf("Expected error field, got %v", fields["error"])
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	child := logger.With(RunID("run-7"), Stage("rank"))
	child.Info("graph ranked", Int("nodes", 4))
	logger.Info("no inherited fields")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Fields["run_id"] != "run-7" || entries[0].Fields["stage"] != "rank" {
		t.Errorf("Child entry missing inherited fields: %v", entries[0].Fields)
	}
	if entries[0].Fields["nodes"] != float64(4) {
		t.Errorf("Child entry missing call-site field: %v", entries[0].Fields)
	}
	if entries[1].Fields != nil {
		t.Errorf("Parent entry gained fields: %v", entries[1].Fields)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DebugLevel,
		"DEBUG": DebugLevel,
		"WARN":  WarnLevel,
		"error": ErrorLevel,
		"":      InfoLevel,
		"bogus": InfoLevel,
		"INFO":  InfoLevel,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	StartTimer(logger, "stage done", Stage("load")).End()
	StartTimer(logger, "stage failed", Stage("persist")).EndError(errors.New("refused"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if _, ok := entries[0].Fields["latency_ms"]; !ok {
		t.Error("Expected latency field on timed entry")
	}
	if entries[1].Level != "ERROR" || entries[1].Fields["error"] != "refused" {
		t.Errorf("Unexpected failure entry: %+v", entries[1])
	}
}
