package tasksync

import (
	"errors"
	"fmt"
)

// Common errors returned by tasksync.
var (
	// ErrNotFound is returned when a container, record or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrSyncInProgress is returned when a sync is started while another one
	// is still running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrLocked is returned when another process holds the lock guarding
	// mutations of a state database.
	ErrLocked = errors.New("state database locked by another tasksync process")

	// ErrNotReady is returned when today's local container cannot be
	// prepared. It is the only failure that aborts a whole cycle.
	ErrNotReady = errors.New("local store not ready")

	// ErrNoDefaultList is returned when the remote adapter has no default
	// task list to operate on.
	ErrNoDefaultList = errors.New("no default task list configured")

	// ErrNotConfigured is returned by Client.Sync when the client was built
	// without local or remote adapters.
	ErrNotConfigured = errors.New("sync adapters not configured")

	// ErrInvalidDate is returned when a calendar date cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")
)

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// SyncError is returned when a call to the remote task service fails.
// Extractable via errors.As(). Supports Unwrap().
type SyncError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync: %s failed (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
