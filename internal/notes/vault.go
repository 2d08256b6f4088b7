// Package notes implements the local task store over a folder of markdown
// daily notes, one file per calendar date.
package notes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/tasksync"
)

// CompletionMarker precedes the completion date on a finished task line.
const CompletionMarker = "✅"

var (
	// taskLine matches "- [ ] title" style checklist items.
	taskLine = regexp.MustCompile(`^(\s*[-*+] \[)([ xX])(\] )(.*)$`)

	// completionSuffix matches a trailing "✅ 2024-01-20" marker.
	completionSuffix = regexp.MustCompile(`\s*` + CompletionMarker + `\s*(\d{4}-\d{2}-\d{2})\s*$`)

	headingLine = regexp.MustCompile(`^(#{1,6})\s+\S`)
)

var _ tasksync.LocalStore = (*Vault)(nil)

// Option configures a Vault.
type Option func(*Vault)

// WithLocation sets the zone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(v *Vault) {
		if loc != nil {
			v.loc = loc
		}
	}
}

// WithClock overrides the clock used for "today".
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		if now != nil {
			v.now = now
		}
	}
}

// Vault is a folder of YYYY-MM-DD.md daily notes inside a markdown vault.
// Writes replace whole files atomically; a mutex serializes them within the
// process.
type Vault struct {
	dir string
	loc *time.Location
	now func() time.Time
	mu  sync.Mutex
}

// New returns a vault rooted at root, keeping daily notes under folder.
func New(root, folder string, opts ...Option) *Vault {
	v := &Vault{
		dir: filepath.Join(root, folder),
		loc: time.Local,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Dir returns the folder holding the daily notes.
func (v *Vault) Dir() string {
	return v.dir
}

// PathForDate returns the note path for date.
func (v *Vault) PathForDate(date string) (string, error) {
	if !tasksync.ValidDate(date) {
		return "", fmt.Errorf("notes: %w: %q", tasksync.ErrInvalidDate, date)
	}
	return filepath.Join(v.dir, date+".md"), nil
}

// EnsureTodayContainer creates today's note if it does not exist.
func (v *Vault) EnsureTodayContainer(ctx context.Context) (string, error) {
	return v.CreateContainer(ctx, tasksync.FormatDate(v.now().In(v.loc)))
}

// CreateContainer creates the note for date with a title heading. An
// existing note is left untouched.
func (v *Vault) CreateContainer(ctx context.Context, date string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := v.PathForDate(date)
	if err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("notes: stat %s: %w", path, err)
	}

	if err := os.MkdirAll(v.dir, 0755); err != nil {
		return "", fmt.Errorf("notes: create folder: %w", err)
	}
	if err := writeAtomic(path, []byte("# "+date+"\n")); err != nil {
		return "", fmt.Errorf("notes: create %s: %w", path, err)
	}
	return path, nil
}

// ListContainers returns every daily note, ordered by date. Files whose
// name is not a calendar date are ignored.
func (v *Vault) ListContainers(ctx context.Context) ([]tasksync.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(v.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notes: list %s: %w", v.dir, err)
	}

	var out []tasksync.Container
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		date := strings.TrimSuffix(name, ".md")
		if !tasksync.ValidDate(date) {
			continue
		}
		out = append(out, tasksync.Container{Path: filepath.Join(v.dir, name), Date: date})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// ReadTasks returns the checklist items under section. A missing note
// returns an error wrapping tasksync.ErrNotFound; a note without the
// section has no tasks.
func (v *Vault) ReadTasks(ctx context.Context, c tasksync.Container, section string) ([]tasksync.LocalTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lines, err := readLines(c.Path)
	if err != nil {
		return nil, err
	}

	start, end, ok := findSection(lines, section)
	if !ok {
		return nil, nil
	}

	var tasks []tasksync.LocalTask
	for i := start + 1; i < end; i++ {
		item, ok := parseTask(lines[i])
		if !ok {
			continue
		}
		tasks = append(tasks, tasksync.LocalTask{
			Title:          item.title,
			Completed:      item.done,
			CompletionDate: item.completedOn,
			Date:           c.Date,
			Line:           i,
			Path:           c.Path,
		})
	}
	return tasks, nil
}

// AppendTask adds "- [ ] title" after the last task in section, creating
// the section at the end of the note when it is missing.
func (v *Vault) AppendTask(ctx context.Context, path, title, section string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	lines, err := readLines(path)
	if err != nil {
		return err
	}

	item := "- [ ] " + title
	start, end, ok := findSection(lines, section)
	if !ok {
		lines = appendSection(lines, section, item)
	} else {
		at := start + 1
		for i := start + 1; i < end; i++ {
			if _, isTask := parseTask(lines[i]); isTask {
				at = i + 1
			}
		}
		lines = insertLine(lines, at, item)
	}
	return writeLines(path, lines)
}

// SetTaskCompletion flips the checkbox on line and adds or removes the
// completion marker.
func (v *Vault) SetTaskCompletion(ctx context.Context, path string, line int, completed bool, completionDate string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	lines, err := readLines(path)
	if err != nil {
		return err
	}
	if line < 0 || line >= len(lines) {
		return fmt.Errorf("notes: %s has no line %d", path, line)
	}

	updated, ok := setCompletion(lines[line], completed, completionDate)
	if !ok {
		return fmt.Errorf("notes: line %d of %s is not a task", line, path)
	}
	lines[line] = updated
	return writeLines(path, lines)
}

type parsedTask struct {
	title       string
	done        bool
	completedOn string
}

func parseTask(line string) (parsedTask, bool) {
	m := taskLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
	if m == nil {
		return parsedTask{}, false
	}
	body := m[4]
	t := parsedTask{done: m[2] != " "}
	if cm := completionSuffix.FindStringSubmatchIndex(body); cm != nil {
		t.completedOn = body[cm[2]:cm[3]]
		body = body[:cm[0]]
	}
	t.title = strings.TrimSpace(body)
	return t, true
}

func setCompletion(line string, completed bool, date string) (string, bool) {
	cr := ""
	if strings.HasSuffix(line, "\r") {
		cr = "\r"
		line = strings.TrimSuffix(line, "\r")
	}
	m := taskLine.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}

	body := completionSuffix.ReplaceAllString(m[4], "")
	body = strings.TrimRight(body, " \t")
	box := " "
	if completed {
		box = "x"
		if date != "" {
			body += " " + CompletionMarker + " " + date
		}
	}
	return m[1] + box + m[3] + body + cr, true
}

// headingLevel returns the level of a markdown heading, or 0.
func headingLevel(line string) int {
	m := headingLine.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	return len(m[1])
}

// findSection locates the heading equal to section and returns its line and
// the line the section ends before: the next heading of the same or a higher
// level, or the end of the note.
func findSection(lines []string, section string) (start, end int, ok bool) {
	want := strings.TrimSpace(section)
	level := headingLevel(want)

	start = -1
	for i, l := range lines {
		if strings.TrimSpace(l) == want {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, 0, false
	}

	end = len(lines)
	for i := start + 1; i < len(lines); i++ {
		if h := headingLevel(lines[i]); h > 0 && (level == 0 || h <= level) {
			end = i
			break
		}
	}
	return start, end, true
}

func insertLine(lines []string, at int, line string) []string {
	lines = append(lines, "")
	copy(lines[at+1:], lines[at:])
	lines[at] = line
	return lines
}

// appendSection adds a new section holding item at the end of the note.
func appendSection(lines []string, section, item string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	out := append([]string{}, lines[:end]...)
	if len(out) > 0 {
		out = append(out, "")
	}
	return append(out, strings.TrimSpace(section), item, "")
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("notes: %s: %w", path, tasksync.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("notes: read %s: %w", path, err)
	}
	return strings.Split(string(data), "\n"), nil
}

func writeLines(path string, lines []string) error {
	if err := writeAtomic(path, []byte(strings.Join(lines, "\n"))); err != nil {
		return fmt.Errorf("notes: write %s: %w", path, err)
	}
	return nil
}

// writeAtomic replaces path using the temp-file, fsync, rename pattern so
// an editor never observes a half-written note.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".note-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
