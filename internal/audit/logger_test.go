package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEntries(t *testing.T, logDir string) []Entry {
	t.Helper()
	f, err := os.Open(filepath.Join(logDir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("unmarshal audit entry: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogActionWritesEntry(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	logger.LogAction(context.Background(), "startScan", "wifi0", "SUCCESS", 42*time.Millisecond)

	entries := readEntries(t, dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Action != "startScan" {
		t.Errorf("action = %q, want startScan", entry.Action)
	}
	if entry.Interface != "wifi0" {
		t.Errorf("interface = %q, want wifi0", entry.Interface)
	}
	if entry.Outcome != "SUCCESS" {
		t.Errorf("outcome = %q, want SUCCESS", entry.Outcome)
	}
	if entry.User != "unknown" {
		t.Errorf("user = %q, want unknown", entry.User)
	}
	if entry.LatencyMs != 42 {
		t.Errorf("latencyMs = %d, want 42", entry.LatencyMs)
	}
	if entry.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestLogActionWithParams(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	params := map[string]interface{}{"mode": "blocking"}
	logger.LogActionWithParams(context.Background(), "startScan", "wifi0", params, errors.New("scan rejected: ALREADY_SCANNING"), 5*time.Millisecond)

	entries := readEntries(t, dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Outcome != "ALREADY_SCANNING" {
		t.Errorf("outcome = %q, want ALREADY_SCANNING", entries[0].Outcome)
	}
	if got := entries[0].Params["mode"]; got != "blocking" {
		t.Errorf("params[mode] = %v, want blocking", got)
	}
}

func TestLogActionAppends(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.LogAction(context.Background(), "startScan", "wifi0", "SUCCESS", time.Millisecond)
	logger.Close()

	// Reopening must append, not truncate.
	logger, err = NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger reopen: %v", err)
	}
	logger.LogAction(context.Background(), "stopScan", "wifi0", "SUCCESS", time.Millisecond)
	logger.Close()

	entries := readEntries(t, dir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after reopen, got %d", len(entries))
	}
	if entries[1].Action != "stopScan" {
		t.Errorf("second action = %q, want stopScan", entries[1].Action)
	}
}

func TestOutcomeFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "SUCCESS"},
		{"already scanning", errors.New("ALREADY_SCANNING"), "ALREADY_SCANNING"},
		{"mode unsupported", errors.New("MODE_UNSUPPORTED"), "MODE_UNSUPPORTED"},
		{"not found", errors.New("interface NOT_FOUND"), "NOT_FOUND"},
		{"busy", errors.New("driver BUSY"), "BUSY"},
		{"unavailable", errors.New("transport UNAVAILABLE"), "UNAVAILABLE"},
		{"other", errors.New("boom"), "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeFromError(tt.err); got != tt.want {
				t.Errorf("outcomeFromError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestNormalizeOutcome(t *testing.T) {
	if got := normalizeOutcome("SUCCESS"); got != "SUCCESS" {
		t.Errorf("normalizeOutcome(SUCCESS) = %q", got)
	}
	if got := normalizeOutcome("weird"); got != "UNKNOWN" {
		t.Errorf("normalizeOutcome(weird) = %q, want UNKNOWN", got)
	}
}
