package tasksync_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/tasksync"
)

// fakeLocal is an in-memory LocalStore keyed by date.
type fakeLocal struct {
	mu          sync.Mutex
	today       string
	notes       map[string][]tasksync.LocalTask
	ensureErr   error
	readErr     map[string]error
	appendErr   map[string]error
	completions []completionCall
	appends     []string
}

type completionCall struct {
	Path      string
	Line      int
	Completed bool
	Date      string
}

func newFakeLocal(today string) *fakeLocal {
	return &fakeLocal{
		today:     today,
		notes:     make(map[string][]tasksync.LocalTask),
		readErr:   make(map[string]error),
		appendErr: make(map[string]error),
	}
}

func notePath(date string) string { return "Daily/" + date + ".md" }

func dateFromPath(path string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, "Daily/"), ".md")
}

// seed adds tasks to date, numbering lines after the existing ones unless a
// task already carries a non-zero line.
func (f *fakeLocal) seed(date string, tasks ...tasksync.LocalTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tasks {
		if t.Line == 0 {
			t.Line = f.nextLine(date)
		}
		t.Date = date
		t.Path = notePath(date)
		f.notes[date] = append(f.notes[date], t)
	}
	if _, ok := f.notes[date]; !ok {
		f.notes[date] = nil
	}
}

func (f *fakeLocal) nextLine(date string) int {
	next := 0
	for _, t := range f.notes[date] {
		if t.Line >= next {
			next = t.Line + 1
		}
	}
	return next
}

func (f *fakeLocal) titles(date string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.notes[date] {
		out = append(out, t.Title)
	}
	return out
}

func (f *fakeLocal) taskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, tasks := range f.notes {
		n += len(tasks)
	}
	return n
}

func (f *fakeLocal) EnsureTodayContainer(ctx context.Context) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return f.CreateContainer(ctx, f.today)
}

func (f *fakeLocal) CreateContainer(_ context.Context, date string) (string, error) {
	if !tasksync.ValidDate(date) {
		return "", fmt.Errorf("bad date %q", date)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[date]; !ok {
		f.notes[date] = nil
	}
	return notePath(date), nil
}

func (f *fakeLocal) ListContainers(context.Context) ([]tasksync.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tasksync.Container
	for date := range f.notes {
		out = append(out, tasksync.Container{Path: notePath(date), Date: date})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeLocal) ReadTasks(_ context.Context, c tasksync.Container, _ string) ([]tasksync.LocalTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[c.Date]; err != nil {
		return nil, err
	}
	tasks, ok := f.notes[c.Date]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", c.Path, tasksync.ErrNotFound)
	}
	return append([]tasksync.LocalTask(nil), tasks...), nil
}

func (f *fakeLocal) AppendTask(_ context.Context, path, title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.appendErr[title]; err != nil {
		return err
	}
	date := dateFromPath(path)
	f.notes[date] = append(f.notes[date], tasksync.LocalTask{
		Title: title,
		Date:  date,
		Path:  path,
		Line:  f.nextLine(date),
	})
	f.appends = append(f.appends, title)
	return nil
}

func (f *fakeLocal) SetTaskCompletion(_ context.Context, path string, line int, completed bool, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := f.notes[dateFromPath(path)]
	for i := range tasks {
		if tasks[i].Line == line {
			tasks[i].Completed = completed
			tasks[i].CompletionDate = date
			f.completions = append(f.completions, completionCall{Path: path, Line: line, Completed: completed, Date: date})
			return nil
		}
	}
	return fmt.Errorf("no task on line %d of %s", line, path)
}

func (f *fakeLocal) PathForDate(date string) (string, error) {
	if !tasksync.ValidDate(date) {
		return "", fmt.Errorf("bad date %q", date)
	}
	return notePath(date), nil
}

// fakeRemote is an in-memory RemoteStore.
type fakeRemote struct {
	mu        sync.Mutex
	tasks     []tasksync.RemoteTask
	listID    string
	listErr   error
	createErr map[string]error
	updateErr error
	nextID    int
	now       func() time.Time

	listCalls    int
	created      []createCall
	titleUpdates map[string]string
	completed    []string

	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

type createCall struct {
	Title string
	Date  string
}

func newFakeRemote(now func() time.Time, tasks ...tasksync.RemoteTask) *fakeRemote {
	return &fakeRemote{
		tasks:        tasks,
		listID:       "list-1",
		createErr:    make(map[string]error),
		titleUpdates: make(map[string]string),
		now:          now,
	}
}

func (f *fakeRemote) ListTasks(context.Context) ([]tasksync.RemoteTask, error) {
	if f.block != nil {
		f.once.Do(func() { close(f.entered) })
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]tasksync.RemoteTask(nil), f.tasks...), nil
}

func (f *fakeRemote) CreateTask(ctx context.Context, title string) (*tasksync.RemoteTask, error) {
	return f.CreateTaskWithStartDate(ctx, title, "")
}

func (f *fakeRemote) CreateTaskWithStartDate(_ context.Context, title, date string) (*tasksync.RemoteTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[title]; err != nil {
		return nil, err
	}
	f.nextID++
	task := tasksync.RemoteTask{
		ID:        fmt.Sprintf("new-%d", f.nextID),
		Title:     title,
		Status:    tasksync.StatusNotStarted,
		CreatedAt: f.now().UTC().Format(time.RFC3339),
	}
	if date != "" {
		task.DueAt = date + "T00:00:00.0000000"
	}
	f.tasks = append(f.tasks, task)
	f.created = append(f.created, createCall{Title: title, Date: date})
	return &task, nil
}

func (f *fakeRemote) UpdateTitle(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Title = title
			f.titleUpdates[id] = title
			return nil
		}
	}
	return errors.New("task not found")
}

func (f *fakeRemote) Complete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Status = tasksync.StatusCompleted
			f.tasks[i].CompletedAt = f.now().UTC().Format(time.RFC3339)
			f.completed = append(f.completed, id)
			return nil
		}
	}
	return errors.New("task not found")
}

func (f *fakeRemote) DefaultListID() (string, bool) {
	return f.listID, f.listID != ""
}
