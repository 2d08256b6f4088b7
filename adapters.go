package tasksync

import "context"

// LocalStore is the date-partitioned document store holding local tasks.
// Implementations must return an error wrapping ErrNotFound from ReadTasks
// when the container does not exist.
type LocalStore interface {
	// EnsureTodayContainer creates today's container if absent and returns
	// its path.
	EnsureTodayContainer(ctx context.Context) (string, error)

	// CreateContainer creates the container for date if absent and returns
	// its path. Idempotent.
	CreateContainer(ctx context.Context, date string) (string, error)

	// ListContainers returns every task container, ordered by date.
	ListContainers(ctx context.Context) ([]Container, error)

	// ReadTasks returns the checklist lines found under section.
	ReadTasks(ctx context.Context, c Container, section string) ([]LocalTask, error)

	// AppendTask adds an incomplete task with the given title to section.
	AppendTask(ctx context.Context, path, title, section string) error

	// SetTaskCompletion flips the task on line. completionDate is only used
	// when completed is true.
	SetTaskCompletion(ctx context.Context, path string, line int, completed bool, completionDate string) error

	// PathForDate returns the container path for date. Fails on an
	// unparsable date.
	PathForDate(date string) (string, error)
}

// RemoteStore is the remote task service holding the canonical list.
type RemoteStore interface {
	// ListTasks returns every task in the default list, in any status.
	ListTasks(ctx context.Context) ([]RemoteTask, error)

	// CreateTask creates an incomplete task.
	CreateTask(ctx context.Context, title string) (*RemoteTask, error)

	// CreateTaskWithStartDate creates an incomplete task starting on date.
	CreateTaskWithStartDate(ctx context.Context, title, date string) (*RemoteTask, error)

	// UpdateTitle renames a task.
	UpdateTitle(ctx context.Context, id, title string) error

	// Complete marks a task completed.
	Complete(ctx context.Context, id string) error

	// DefaultListID returns the list the adapter operates on, if any. It is
	// treated as fixed for the duration of a sync.
	DefaultListID() (string, bool)
}
