package tasksync

import "time"

// TaskStatus is the lifecycle state of a remote task.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "notStarted"
	StatusInProgress TaskStatus = "inProgress"
	StatusCompleted  TaskStatus = "completed"
)

// IsValid checks if the status is one the task service defines.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// RemoteTask is a task as reported by the remote task service.
//
// Timestamps are kept as the raw strings the service returned. CreatedAt is
// an instant; DueAt is a wall-clock value whose date component is used
// literally; CompletedAt may be empty or malformed.
type RemoteTask struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Status      TaskStatus `json:"status"`
	CreatedAt   string     `json:"created_at"`
	CompletedAt string     `json:"completed_at,omitempty"`
	DueAt       string     `json:"due_at,omitempty"`
}

// IsCompleted reports whether the remote task is marked completed.
func (t RemoteTask) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// LocalTask is a checklist line inside a date container.
type LocalTask struct {
	Title          string `json:"title"`
	Completed      bool   `json:"completed"`
	CompletionDate string `json:"completion_date,omitempty"`
	// Date is the calendar date of the container the task lives in and
	// doubles as the task's start date.
	Date string `json:"date"`
	Line int    `json:"line"`
	Path string `json:"path"`
}

// Container is one per-date document in the local store.
type Container struct {
	Path string `json:"path"`
	Date string `json:"date"`
}

// TaskMetadata links a local task, identified by date and cleaned title, to
// its remote task.
type TaskMetadata struct {
	RemoteID   string    `json:"remoteId"`
	Date       string    `json:"date"`
	Title      string    `json:"title"`
	LastSynced time.Time `json:"lastSynced"`
}

// ReconcileResult summarizes the identity repair phase.
type ReconcileResult struct {
	Kept    int      `json:"kept"`
	Renamed int      `json:"renamed"`
	Removed int      `json:"removed"`
	Errors  []string `json:"errors"`
}

// PhaseResult summarizes a creation phase.
type PhaseResult struct {
	Added  int      `json:"added"`
	Errors []string `json:"errors"`
}

// CompletionResult summarizes completion reconciliation.
type CompletionResult struct {
	Completed int      `json:"completed"`
	ToLocal   int      `json:"to_local"`
	ToRemote  int      `json:"to_remote"`
	Errors    []string `json:"errors"`
}

// SyncResult is the outcome of one full sync cycle.
type SyncResult struct {
	Reconcile     ReconcileResult  `json:"reconcile"`
	RemoteToLocal PhaseResult      `json:"remote_to_local"`
	LocalToRemote PhaseResult      `json:"local_to_remote"`
	Completions   CompletionResult `json:"completions"`
	Pruned        int              `json:"pruned"`
	Timestamp     time.Time        `json:"timestamp"`
}

// ErrorCount returns the number of errors recorded across all phases.
func (r *SyncResult) ErrorCount() int {
	return len(r.Reconcile.Errors) + len(r.RemoteToLocal.Errors) +
		len(r.LocalToRemote.Errors) + len(r.Completions.Errors)
}

// Changes returns the number of additions and completions in the cycle.
func (r *SyncResult) Changes() int {
	return r.RemoteToLocal.Added + r.LocalToRemote.Added + r.Completions.Completed
}

// SyncRun is a persisted record of one Client.Sync call.
type SyncRun struct {
	ID         string      `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Result     *SyncResult `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// StoreStats contains statistics about the local state database.
type StoreStats struct {
	IdentityRecords int       `json:"identity_records"`
	RunCount        int       `json:"run_count"`
	LastSync        time.Time `json:"last_sync"`
	SchemaVersion   string    `json:"schema_version"`
}
