package tasksync_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hyperengineering/tasksync"
)

func TestSentinelErrors_ErrorsIs(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
	}{
		{"ErrNotFound", tasksync.ErrNotFound},
		{"ErrStoreClosed", tasksync.ErrStoreClosed},
		{"ErrSyncInProgress", tasksync.ErrSyncInProgress},
		{"ErrLocked", tasksync.ErrLocked},
		{"ErrNotReady", tasksync.ErrNotReady},
		{"ErrNoDefaultList", tasksync.ErrNoDefaultList},
		{"ErrNotConfigured", tasksync.ErrNotConfigured},
		{"ErrInvalidDate", tasksync.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("operation failed: %w", tt.sentinel)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(wrapped, %v) = false, want true", tt.sentinel)
			}
		})
	}
}

func TestValidationError_ErrorsAs(t *testing.T) {
	err := fmt.Errorf("load: %w", &tasksync.ValidationError{Field: "DBPath", Message: "required: path to SQLite database"})

	var ve *tasksync.ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("errors.As failed to extract ValidationError")
	}
	if ve.Field != "DBPath" {
		t.Errorf("Field = %q, want %q", ve.Field, "DBPath")
	}
}

func TestValidationError_ErrorFormat(t *testing.T) {
	err := &tasksync.ValidationError{Field: "DBPath", Message: "required: path to SQLite database"}
	want := "config: DBPath: required: path to SQLite database"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSyncError_ErrorsAs(t *testing.T) {
	inner := errors.New("connection refused")
	err := fmt.Errorf("list: %w", &tasksync.SyncError{Operation: "list tasks", StatusCode: 503, Err: inner})

	var se *tasksync.SyncError
	if !errors.As(err, &se) {
		t.Fatal("errors.As failed to extract SyncError")
	}
	if se.Operation != "list tasks" {
		t.Errorf("Operation = %q, want %q", se.Operation, "list tasks")
	}
	if se.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want %d", se.StatusCode, 503)
	}
}

func TestSyncError_ErrorFormat(t *testing.T) {
	err := &tasksync.SyncError{Operation: "create task", StatusCode: 400, Err: errors.New("bad request")}
	want := "sync: create task failed (status 400): bad request"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSyncError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &tasksync.SyncError{Operation: "complete task", StatusCode: 0, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is(syncErr, inner) = false, want true")
	}
}
