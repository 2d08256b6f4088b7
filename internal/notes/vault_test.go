package notes_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/tasksync"
	"github.com/hyperengineering/tasksync/internal/notes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const section = "## Tasks"

func newVault(t *testing.T) *notes.Vault {
	t.Helper()
	now := time.Date(2024, 1, 25, 23, 30, 0, 0, time.UTC)
	return notes.New(t.TempDir(), "Daily",
		notes.WithClock(func() time.Time { return now }),
		notes.WithLocation(time.UTC),
	)
}

func writeNote(t *testing.T, v *notes.Vault, date, content string) string {
	t.Helper()
	path, err := v.PathForDate(date)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readNote(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPathForDate(t *testing.T) {
	v := newVault(t)

	path, err := v.PathForDate("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(v.Dir(), "2024-01-05.md"), path)

	_, err = v.PathForDate("January 5th")
	assert.ErrorIs(t, err, tasksync.ErrInvalidDate)
}

func TestEnsureTodayContainer(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()

	path, err := v.EnsureTodayContainer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-25.md", filepath.Base(path))
	assert.Equal(t, "# 2024-01-25\n", readNote(t, path))

	// Existing notes are not overwritten.
	require.NoError(t, os.WriteFile(path, []byte("edited"), 0644))
	_, err = v.EnsureTodayContainer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "edited", readNote(t, path))
}

func TestCreateContainer_InvalidDate(t *testing.T) {
	v := newVault(t)
	_, err := v.CreateContainer(context.Background(), "2024-02-30")
	assert.ErrorIs(t, err, tasksync.ErrInvalidDate)
}

func TestListContainers(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()

	containers, err := v.ListContainers(ctx)
	require.NoError(t, err)
	assert.Empty(t, containers, "missing folder lists nothing")

	writeNote(t, v, "2024-01-07", "# 2024-01-07\n")
	writeNote(t, v, "2024-01-05", "# 2024-01-05\n")
	require.NoError(t, os.WriteFile(filepath.Join(v.Dir(), "Ideas.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(v.Dir(), "2024-01-06.txt"), []byte("x"), 0644))

	containers, err = v.ListContainers(ctx)
	require.NoError(t, err)
	require.Len(t, containers, 2)
	assert.Equal(t, "2024-01-05", containers[0].Date)
	assert.Equal(t, "2024-01-07", containers[1].Date)
}

func TestReadTasks(t *testing.T) {
	v := newVault(t)
	path := writeNote(t, v, "2024-01-05", `# 2024-01-05

- [ ] Not in the section

## Tasks
- [ ] Buy milk
- [x] Call Bob ✅ 2024-01-06
Some prose
  * [X] Nested item
### Details
- [ ] Subsection task
## Notes
- [ ] Outside again
`)

	tasks, err := v.ReadTasks(context.Background(), tasksync.Container{Path: path, Date: "2024-01-05"}, section)
	require.NoError(t, err)
	require.Len(t, tasks, 4)

	assert.Equal(t, tasksync.LocalTask{Title: "Buy milk", Date: "2024-01-05", Line: 5, Path: path}, tasks[0])
	assert.Equal(t, "Call Bob", tasks[1].Title)
	assert.True(t, tasks[1].Completed)
	assert.Equal(t, "2024-01-06", tasks[1].CompletionDate)
	assert.Equal(t, "Nested item", tasks[2].Title)
	assert.True(t, tasks[2].Completed)
	assert.Equal(t, "Subsection task", tasks[3].Title, "deeper headings stay inside the section")
	assert.Equal(t, 10, tasks[3].Line)
}

func TestReadTasks_MissingNoteAndSection(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()

	path, _ := v.PathForDate("2024-01-05")
	_, err := v.ReadTasks(ctx, tasksync.Container{Path: path, Date: "2024-01-05"}, section)
	assert.ErrorIs(t, err, tasksync.ErrNotFound)

	path = writeNote(t, v, "2024-01-05", "# 2024-01-05\n- [ ] loose\n")
	tasks, err := v.ReadTasks(ctx, tasksync.Container{Path: path, Date: "2024-01-05"}, section)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestAppendTask_CreatesSection(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()

	path, err := v.CreateContainer(ctx, "2024-01-05")
	require.NoError(t, err)

	require.NoError(t, v.AppendTask(ctx, path, "Buy milk", section))
	require.NoError(t, v.AppendTask(ctx, path, "Call Bob", section))

	assert.Equal(t, "# 2024-01-05\n\n## Tasks\n- [ ] Buy milk\n- [ ] Call Bob\n", readNote(t, path))
}

func TestAppendTask_InsertsAfterLastTask(t *testing.T) {
	v := newVault(t)
	path := writeNote(t, v, "2024-01-05", "# 2024-01-05\n## Tasks\n- [x] Done ✅ 2024-01-05\n\n## Notes\ntext\n")

	require.NoError(t, v.AppendTask(context.Background(), path, "New one", section))

	assert.Equal(t, "# 2024-01-05\n## Tasks\n- [x] Done ✅ 2024-01-05\n- [ ] New one\n\n## Notes\ntext\n", readNote(t, path))
}

func TestAppendTask_EmptySection(t *testing.T) {
	v := newVault(t)
	path := writeNote(t, v, "2024-01-05", "## Tasks\n## Notes\n")

	require.NoError(t, v.AppendTask(context.Background(), path, "First", section))

	assert.Equal(t, "## Tasks\n- [ ] First\n## Notes\n", readNote(t, path))
}

func TestAppendTask_MissingNote(t *testing.T) {
	v := newVault(t)
	path, _ := v.PathForDate("2024-01-05")
	err := v.AppendTask(context.Background(), path, "x", section)
	assert.ErrorIs(t, err, tasksync.ErrNotFound)
}

func TestSetTaskCompletion(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	path := writeNote(t, v, "2024-01-05", "## Tasks\n- [ ] Buy milk\n- [x] Call Bob ✅ 2024-01-04\n")

	require.NoError(t, v.SetTaskCompletion(ctx, path, 1, true, "2024-01-20"))
	require.NoError(t, v.SetTaskCompletion(ctx, path, 2, false, ""))

	assert.Equal(t, "## Tasks\n- [x] Buy milk ✅ 2024-01-20\n- [ ] Call Bob\n", readNote(t, path))

	tasks, err := v.ReadTasks(ctx, tasksync.Container{Path: path, Date: "2024-01-05"}, section)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, "2024-01-20", tasks[0].CompletionDate)
}

func TestSetTaskCompletion_Recomplete(t *testing.T) {
	v := newVault(t)
	path := writeNote(t, v, "2024-01-05", "## Tasks\n- [x] Task ✅ 2024-01-04\n")

	require.NoError(t, v.SetTaskCompletion(context.Background(), path, 1, true, "2024-01-09"))

	assert.Equal(t, "## Tasks\n- [x] Task ✅ 2024-01-09\n", readNote(t, path))
}

func TestSetTaskCompletion_Errors(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	path := writeNote(t, v, "2024-01-05", "## Tasks\nprose\n")

	assert.Error(t, v.SetTaskCompletion(ctx, path, 1, true, "2024-01-09"), "not a task line")
	assert.Error(t, v.SetTaskCompletion(ctx, path, 99, true, "2024-01-09"), "out of range")
	assert.Error(t, v.SetTaskCompletion(ctx, path, -1, true, "2024-01-09"), "negative line")
}

func TestCanceledContext(t *testing.T) {
	v := newVault(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.EnsureTodayContainer(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = v.ListContainers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// stubRemote is a minimal in-memory remote list.
type stubRemote struct {
	tasks []tasksync.RemoteTask
}

func (s *stubRemote) ListTasks(context.Context) ([]tasksync.RemoteTask, error) {
	return append([]tasksync.RemoteTask(nil), s.tasks...), nil
}

func (s *stubRemote) CreateTask(ctx context.Context, title string) (*tasksync.RemoteTask, error) {
	return s.CreateTaskWithStartDate(ctx, title, "")
}

func (s *stubRemote) CreateTaskWithStartDate(_ context.Context, title, date string) (*tasksync.RemoteTask, error) {
	task := tasksync.RemoteTask{
		ID:     "remote-" + title,
		Title:  title,
		Status: tasksync.StatusNotStarted,
		DueAt:  date + "T00:00:00.0000000",
	}
	s.tasks = append(s.tasks, task)
	return &task, nil
}

func (s *stubRemote) UpdateTitle(_ context.Context, id, title string) error {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Title = title
		}
	}
	return nil
}

func (s *stubRemote) Complete(_ context.Context, id string) error {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Status = tasksync.StatusCompleted
		}
	}
	return nil
}

func (s *stubRemote) DefaultListID() (string, bool) { return "list", true }

func TestVault_FullSyncRoundTrip(t *testing.T) {
	v := newVault(t)
	ctx := context.Background()
	path := writeNote(t, v, "2024-01-20", "# 2024-01-20\n\n## Tasks\n- [ ] Write report\n")

	remote := &stubRemote{tasks: []tasksync.RemoteTask{{
		ID:          "r1",
		Title:       "Pay rent [todo::r1]",
		Status:      tasksync.StatusCompleted,
		CreatedAt:   "2024-01-19T08:00:00Z",
		CompletedAt: "2024-01-21T08:00:00Z",
	}, {
		ID:        "r2",
		Title:     "Renew passport",
		Status:    tasksync.StatusNotStarted,
		CreatedAt: "2024-01-20T08:00:00Z",
	}}}
	ids := tasksync.NewIdentityStore(nil, nil)
	syncer := tasksync.NewSynchronizer(v, remote, ids,
		tasksync.WithLocation(time.UTC),
		tasksync.WithClock(func() time.Time { return time.Date(2024, 1, 25, 12, 0, 0, 0, time.UTC) }),
	)

	result, err := syncer.PerformFullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ErrorCount())
	assert.Equal(t, 1, result.RemoteToLocal.Added)
	assert.Equal(t, 1, result.LocalToRemote.Added)

	assert.Equal(t, "# 2024-01-20\n\n## Tasks\n- [ ] Write report\n- [ ] Renew passport\n", readNote(t, path))
	assert.Equal(t, "Pay rent", remote.tasks[0].Title)

	// Completing locally propagates on the next cycle.
	require.NoError(t, v.SetTaskCompletion(ctx, path, 3, true, "2024-01-25"))
	result, err = syncer.PerformFullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completions.ToRemote)
	assert.Equal(t, tasksync.StatusCompleted, remote.tasks[2].Status)

	todayPath, _ := v.PathForDate("2024-01-25")
	assert.FileExists(t, todayPath)
}
