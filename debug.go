package tasksync

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Body limits for wire logs.
const (
	maxLoggedRequestBody  = 2000
	maxLoggedResponseBody = 4000
)

// DebugLogger writes wire-level logs of Microsoft Graph calls.
// A nil or disabled logger discards everything.
type DebugLogger struct {
	mu      sync.Mutex
	enabled bool
	writer  io.Writer
	file    *os.File
}

// NewDebugLogger creates a debug logger.
// If logPath is empty, logs go to stderr.
func NewDebugLogger(enabled bool, logPath string) (*DebugLogger, error) {
	l := &DebugLogger{enabled: enabled, writer: os.Stderr}

	if enabled && logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
		l.writer = f
		l.file = f
	}

	return l, nil
}

// NewDebugLoggerTo creates an enabled debug logger writing to w.
func NewDebugLoggerTo(w io.Writer) *DebugLogger {
	return &DebugLogger{enabled: true, writer: w}
}

// Enabled reports whether messages are written.
func (l *DebugLogger) Enabled() bool {
	return l != nil && l.enabled
}

// Close closes the log file, if any.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.writer = io.Discard
	return err
}

// Log writes a debug message if logging is enabled.
func (l *DebugLogger) Log(format string, args ...any) {
	if !l.Enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	_, _ = fmt.Fprintf(l.writer, "[%s] [TASKSYNC DEBUG] %s\n", timestamp, fmt.Sprintf(format, args...))
}

// LogRequest logs an outgoing HTTP request and its correlation ID.
func (l *DebugLogger) LogRequest(method, url, requestID string, body []byte) {
	if !l.Enabled() {
		return
	}
	l.Log("REQUEST %s %s (client-request-id %s)", method, url, requestID)
	if len(body) > 0 {
		l.Log("REQUEST BODY: %s", truncateForLog(string(body), maxLoggedRequestBody))
	}
}

// LogResponse logs an HTTP response.
func (l *DebugLogger) LogResponse(statusCode int, status string, body []byte) {
	if !l.Enabled() {
		return
	}
	l.Log("RESPONSE %d %s", statusCode, status)
	if len(body) > 0 {
		l.Log("RESPONSE BODY: %s", truncateForLog(string(body), maxLoggedResponseBody))
	}
}

// LogError logs an error with full details.
func (l *DebugLogger) LogError(operation string, err error) {
	if !l.Enabled() {
		return
	}
	l.Log("ERROR [%s]: %v", operation, err)
}

func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}
