package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wireless-discovery/wdc/internal/auth"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	User      string                 `json:"user"`
	Interface string                 `json:"interface"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Outcome   string                 `json:"outcome"`
	LatencyMs int64                  `json:"latencyMs"`
}

// Logger writes append-only JSONL audit records.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
}

// NewLogger creates a new audit logger writing to <logDir>/audit.jsonl.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(logDir, "audit.jsonl")

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
	}, nil
}

// LogAction logs an audit record for a scan action.
func (l *Logger) LogAction(ctx context.Context, action, interfaceID, result string, latency time.Duration) {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		User:      userFromContext(ctx),
		Interface: interfaceID,
		Action:    action,
		Outcome:   normalizeOutcome(result),
		LatencyMs: latency.Milliseconds(),
	}

	l.writeEntry(entry)
}

// LogActionWithParams logs an audit record with request parameters attached.
func (l *Logger) LogActionWithParams(ctx context.Context, action, interfaceID string, params map[string]interface{}, err error, latency time.Duration) {
	outcome := "SUCCESS"
	if err != nil {
		outcome = outcomeFromError(err)
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		User:      userFromContext(ctx),
		Interface: interfaceID,
		Action:    action,
		Params:    params,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
	}

	l.writeEntry(entry)
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// writeEntry appends one JSON line to the log file.
func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	if _, err := l.file.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
		return
	}

	if err := l.file.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sync audit log: %v\n", err)
	}
}

// userFromContext extracts the authenticated subject, "unknown" otherwise.
func userFromContext(ctx context.Context) string {
	if claims, ok := auth.GetClaimsFromContext(ctx); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "unknown"
}

// normalizeOutcome maps controller result strings to audit outcome codes.
func normalizeOutcome(result string) string {
	switch result {
	case "SUCCESS", "ALREADY_SCANNING", "MODE_UNSUPPORTED", "NOT_FOUND", "ERROR":
		return result
	default:
		return "UNKNOWN"
	}
}

// outcomeFromError maps an error to an audit outcome code.
func outcomeFromError(err error) string {
	if err == nil {
		return "SUCCESS"
	}

	msg := err.Error()
	for _, code := range []string{"ALREADY_SCANNING", "MODE_UNSUPPORTED", "NOT_FOUND", "BUSY", "UNAVAILABLE", "INVALID_PARAMETER"} {
		if strings.Contains(msg, code) {
			return code
		}
	}
	return "ERROR"
}
