package tasksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultSection is the heading local tasks are read from and appended to.
const DefaultSection = "## Tasks"

// DefaultStaleAfterDays is how long an identity record may go untouched
// before housekeeping drops it.
const DefaultStaleAfterDays = 90

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSection sets the heading of the task section in local containers.
func WithSection(section string) SyncOption {
	return func(s *Synchronizer) {
		if section != "" {
			s.section = section
		}
	}
}

// WithLocation sets the zone used to turn creation and completion instants
// into calendar dates. Defaults to time.Local.
func WithLocation(loc *time.Location) SyncOption {
	return func(s *Synchronizer) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the clock used for "today".
func WithClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) SyncOption {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStaleAfter enables pruning of identity records older than days at the
// end of every cycle. Zero disables pruning.
func WithStaleAfter(days int) SyncOption {
	return func(s *Synchronizer) {
		if days >= 0 {
			s.staleAfterDays = days
		}
	}
}

// Synchronizer runs full sync cycles between a LocalStore and a RemoteStore,
// using an IdentityStore to link tasks across them.
//
// A cycle runs five steps in order:
//  0. ensure today's local container exists (the only step that can abort)
//  1. reconcile identity records against local edits
//  2. remote -> local: append unknown open remote tasks
//  3. local -> remote: create remote tasks for unlinked open local tasks
//  4. propagate completions in both directions
//
// Per-item failures are collected into the phase result; later phases still
// run. Per-item mutations are applied sequentially.
type Synchronizer struct {
	local    LocalStore
	remote   RemoteStore
	identity *IdentityStore

	section        string
	loc            *time.Location
	now            func() time.Time
	logger         *slog.Logger
	staleAfterDays int

	running atomic.Bool
}

// NewSynchronizer creates a synchronizer with injected dependencies.
func NewSynchronizer(local LocalStore, remote RemoteStore, identity *IdentityStore, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		local:    local,
		remote:   remote,
		identity: identity,
		section:  DefaultSection,
		loc:      time.Local,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Section returns the configured task section heading.
func (s *Synchronizer) Section() string {
	return s.section
}

// PerformFullSync runs one complete cycle. It returns ErrSyncInProgress when
// another cycle is running and an error wrapping ErrNotReady when today's
// container cannot be prepared; every other failure is reported through the
// per-phase error lists of the result.
func (s *Synchronizer) PerformFullSync(ctx context.Context) (*SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	start := s.now()

	if _, err := s.local.EnsureTodayContainer(ctx); err != nil {
		s.logger.Error("sync: local store not ready", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	result := &SyncResult{Timestamp: start.UTC()}
	result.Reconcile = s.reconcileIdentity(ctx)
	result.RemoteToLocal = s.syncRemoteToLocal(ctx)
	result.LocalToRemote = s.syncLocalToRemote(ctx)
	result.Completions = s.syncCompletions(ctx)

	if s.staleAfterDays > 0 {
		result.Pruned = s.identity.CleanupStale(s.staleAfterDays)
	}

	s.logger.Info("sync: cycle complete",
		"renamed", result.Reconcile.Renamed,
		"removed", result.Reconcile.Removed,
		"remote_to_local", result.RemoteToLocal.Added,
		"local_to_remote", result.LocalToRemote.Added,
		"completed", result.Completions.Completed,
		"pruned", result.Pruned,
		"errors", result.ErrorCount(),
		"took", s.now().Sub(start).Round(time.Millisecond),
	)
	return result, nil
}

// reconcileIdentity repairs records drifted by out-of-band local edits. It
// must run before the creation phases so their duplicate checks see
// accurate identity state.
func (s *Synchronizer) reconcileIdentity(ctx context.Context) ReconcileResult {
	res := ReconcileResult{Errors: []string{}}

	for _, date := range s.identity.Dates() {
		tasks, err := s.readDate(ctx, date)
		if errors.Is(err, ErrInvalidDate) {
			s.logger.Warn("reconcile: skipping records with unparsable date", "date", date, "error", err)
			continue
		}
		if err != nil {
			s.logger.Error("reconcile: read local tasks", "date", date, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("read %s: %v", date, err))
			continue
		}

		titles := make([]string, 0, len(tasks))
		present := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			title := CleanTitle(t.Title)
			titles = append(titles, title)
			present[title] = true
		}

		records := s.identity.ByDate(date)
		claimed := make(map[string]bool, len(records))
		for _, rec := range records {
			if present[rec.Title] {
				claimed[rec.Title] = true
			}
		}

		for _, rec := range records {
			if present[rec.Title] {
				res.Kept++
				continue
			}
			if renamed, ok := findExtendedTitle(titles, rec.Title, claimed); ok {
				s.identity.UpdateTitle(date, rec.Title, renamed)
				claimed[renamed] = true
				res.Renamed++
				s.logger.Info("reconcile: title changed locally",
					"date", date, "from", rec.Title, "to", renamed, "remote_id", rec.RemoteID)
				continue
			}
			s.identity.RemoveMetadata(date, rec.Title)
			res.Removed++
			s.logger.Info("reconcile: task removed locally",
				"date", date, "title", rec.Title, "remote_id", rec.RemoteID)
		}
	}
	return res
}

// findExtendedTitle returns the first local title that contains recorded and
// is not already linked to another record.
func findExtendedTitle(titles []string, recorded string, claimed map[string]bool) (string, bool) {
	if recorded == "" {
		return "", false
	}
	for _, title := range titles {
		if claimed[title] {
			continue
		}
		if strings.Contains(title, recorded) {
			return title, true
		}
	}
	return "", false
}

// syncRemoteToLocal appends open remote tasks that the local store does not
// know yet, and strips legacy tags from remote titles on the way.
func (s *Synchronizer) syncRemoteToLocal(ctx context.Context) PhaseResult {
	res := PhaseResult{Errors: []string{}}

	tasks, err := s.remote.ListTasks(ctx)
	if err != nil {
		s.logger.Error("remote->local: fetch remote tasks", "error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("fetch remote tasks: %v", err))
		return res
	}

	localByDate := make(map[string][]LocalTask)

	for _, task := range tasks {
		title := s.cleanRemoteTitle(ctx, task)
		if title == "" || task.IsCompleted() {
			continue
		}
		if _, known := s.identity.FindByRemoteID(task.ID); known {
			continue
		}

		date, source := s.placementDate(task)
		if source == placementFallback {
			s.logger.Warn("remote->local: no usable due or creation date, placing today",
				"title", title, "remote_id", task.ID, "created_at", task.CreatedAt, "due_at", task.DueAt)
		}

		existing, cached := localByDate[date]
		if !cached {
			existing, err = s.readDate(ctx, date)
			if err != nil {
				s.logger.Error("remote->local: read local tasks", "title", title, "date", date, "error", err)
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", title, err))
				continue
			}
			localByDate[date] = existing
		}
		if hasNormalizedTitle(existing, title) {
			continue
		}

		path, err := s.local.CreateContainer(ctx, date)
		if err != nil {
			s.logger.Error("remote->local: create container", "title", title, "date", date, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", title, err))
			continue
		}
		if err := s.local.AppendTask(ctx, path, title, s.section); err != nil {
			s.logger.Error("remote->local: append task", "title", title, "path", path, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", title, err))
			continue
		}

		s.identity.SetMetadata(date, title, task.ID)
		localByDate[date] = append(existing, LocalTask{Title: title, Date: date, Path: path})
		res.Added++
		s.logger.Debug("remote->local: added", "title", title, "date", date, "remote_id", task.ID)
	}
	return res
}

// cleanRemoteTitle returns the cleaned title of task, pushing the cleaned
// form back to the service when the title still carries a legacy tag.
// A title that is nothing but a tag is left alone remotely. A failed push
// is logged and does not block the task.
func (s *Synchronizer) cleanRemoteTitle(ctx context.Context, task RemoteTask) string {
	cleaned := CleanTitle(task.Title)
	if cleaned == "" || !HasLegacyTag(task.Title) {
		return cleaned
	}
	if err := s.remote.UpdateTitle(ctx, task.ID, cleaned); err != nil {
		s.logger.Warn("remote->local: strip legacy tag", "remote_id", task.ID, "title", cleaned, "error", err)
	} else {
		s.logger.Info("remote->local: stripped legacy tag", "remote_id", task.ID, "title", cleaned)
	}
	return cleaned
}

// syncLocalToRemote creates remote tasks for open local tasks that have no
// identity record.
func (s *Synchronizer) syncLocalToRemote(ctx context.Context) PhaseResult {
	res := PhaseResult{Errors: []string{}}

	if _, ok := s.remote.DefaultListID(); !ok {
		s.logger.Error("local->remote: skipped", "error", ErrNoDefaultList)
		res.Errors = append(res.Errors, ErrNoDefaultList.Error())
		return res
	}

	locals, readErrs, err := s.readAllLocal(ctx)
	if err != nil {
		s.logger.Error("local->remote: list local containers", "error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("list local containers: %v", err))
		return res
	}
	res.Errors = append(res.Errors, readErrs...)

	var candidates []LocalTask
	for _, t := range locals {
		if t.Completed || CleanTitle(t.Title) == "" {
			continue
		}
		if _, linked := s.identity.GetRemoteID(t.Date, t.Title); linked {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return res
	}

	remoteTasks, err := s.remote.ListTasks(ctx)
	if err != nil {
		s.logger.Error("local->remote: fetch remote tasks", "error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("fetch remote tasks: %v", err))
		return res
	}
	remoteTitles := make(map[string]bool, len(remoteTasks))
	for _, rt := range remoteTasks {
		remoteTitles[NormalizeTitle(rt.Title)] = true
	}

	for _, c := range candidates {
		normalized := NormalizeTitle(c.Title)
		if remoteTitles[normalized] {
			s.logger.Debug("local->remote: same title exists remotely, leaving unlinked",
				"title", c.Title, "date", c.Date)
			continue
		}

		created, err := s.remote.CreateTaskWithStartDate(ctx, c.Title, c.Date)
		if err == nil && (created == nil || created.ID == "") {
			err = errors.New("remote returned no task id")
		}
		if err != nil {
			s.logger.Error("local->remote: create task", "title", c.Title, "date", c.Date, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", c.Title, err))
			continue
		}

		s.identity.SetMetadata(c.Date, CleanTitle(c.Title), created.ID)
		remoteTitles[normalized] = true
		res.Added++
		s.logger.Debug("local->remote: created", "title", c.Title, "date", c.Date, "remote_id", created.ID)
	}
	return res
}

// syncCompletions propagates completion state, resolving tasks through
// identity records first and falling back to title matching.
func (s *Synchronizer) syncCompletions(ctx context.Context) CompletionResult {
	res := CompletionResult{Errors: []string{}}

	if _, ok := s.remote.DefaultListID(); !ok {
		s.logger.Error("completions: skipped", "error", ErrNoDefaultList)
		res.Errors = append(res.Errors, ErrNoDefaultList.Error())
		return res
	}

	remoteTasks, err := s.remote.ListTasks(ctx)
	if err != nil {
		s.logger.Error("completions: fetch remote tasks", "error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("fetch remote tasks: %v", err))
		return res
	}
	locals, readErrs, err := s.readAllLocal(ctx)
	if err != nil {
		s.logger.Error("completions: list local containers", "error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("list local containers: %v", err))
		return res
	}
	res.Errors = append(res.Errors, readErrs...)

	// Remote completed -> local.
	for _, rt := range remoteTasks {
		if !rt.IsCompleted() {
			continue
		}
		rec, ok := s.identity.FindByRemoteID(rt.ID)
		if !ok {
			continue
		}
		idx := findLocalTask(locals, rec.Date, rec.Title)
		if idx < 0 || locals[idx].Completed {
			continue
		}

		lt := &locals[idx]
		date := s.completionDate(rt)
		if err := s.local.SetTaskCompletion(ctx, lt.Path, lt.Line, true, date); err != nil {
			s.logger.Error("completions: complete local task", "title", lt.Title, "path", lt.Path, "line", lt.Line, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", lt.Title, err))
			continue
		}
		lt.Completed = true
		lt.CompletionDate = date
		res.ToLocal++
		s.logger.Debug("completions: completed locally", "title", lt.Title, "date", date, "remote_id", rt.ID)
	}

	// Local completed -> remote.
	remoteIndex := make(map[string]int, len(remoteTasks))
	for i, rt := range remoteTasks {
		remoteIndex[rt.ID] = i
	}

	for _, lt := range locals {
		if !lt.Completed {
			continue
		}

		idx := -1
		if remoteID, linked := s.identity.GetRemoteID(lt.Date, lt.Title); linked {
			i, found := remoteIndex[remoteID]
			if !found {
				s.logger.Debug("completions: linked remote task not found", "title", lt.Title, "remote_id", remoteID)
				continue
			}
			idx = i
		} else {
			idx = s.matchOpenRemoteTask(remoteTasks, lt)
		}
		if idx < 0 || remoteTasks[idx].IsCompleted() {
			continue
		}

		rt := &remoteTasks[idx]
		if err := s.remote.Complete(ctx, rt.ID); err != nil {
			s.logger.Error("completions: complete remote task", "title", lt.Title, "remote_id", rt.ID, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", lt.Title, err))
			continue
		}
		rt.Status = StatusCompleted
		res.ToRemote++
		s.logger.Debug("completions: completed remotely", "title", lt.Title, "remote_id", rt.ID)
	}

	res.Completed = res.ToLocal + res.ToRemote
	return res
}

// matchOpenRemoteTask finds an incomplete remote task placed on the local
// task's date with an equal normalized title.
func (s *Synchronizer) matchOpenRemoteTask(remoteTasks []RemoteTask, lt LocalTask) int {
	want := NormalizeTitle(lt.Title)
	for i, rt := range remoteTasks {
		if rt.IsCompleted() || NormalizeTitle(rt.Title) != want {
			continue
		}
		if date, _ := s.placementDate(rt); date == lt.Date {
			return i
		}
	}
	return -1
}

// completionDate derives the local completion date from the remote
// completion timestamp, falling back to today.
func (s *Synchronizer) completionDate(rt RemoteTask) string {
	if rt.CompletedAt == "" {
		s.logger.Warn("completions: remote task has no completion time, using today",
			"remote_id", rt.ID, "title", rt.Title)
		return s.today()
	}
	date, err := LocalDate(rt.CompletedAt, s.loc)
	if err != nil {
		s.logger.Warn("completions: unparsable completion time, using today",
			"remote_id", rt.ID, "title", rt.Title, "completed_at", rt.CompletedAt, "error", err)
		return s.today()
	}
	return date
}

type placementSource int

const (
	placementDue placementSource = iota
	placementCreated
	placementFallback
)

// placementDate picks the local date a remote task belongs to: the literal
// date of its due timestamp, else its creation instant in the local zone,
// else today.
func (s *Synchronizer) placementDate(task RemoteTask) (string, placementSource) {
	if task.DueAt != "" {
		if date, ok := LiteralDate(task.DueAt); ok {
			return date, placementDue
		}
	}
	if date, err := LocalDate(task.CreatedAt, s.loc); err == nil {
		return date, placementCreated
	}
	return s.today(), placementFallback
}

func (s *Synchronizer) today() string {
	return FormatDate(s.now().In(s.loc))
}

// readDate returns the local tasks for date. A missing container yields no
// tasks; an unparsable date yields an error wrapping ErrInvalidDate.
func (s *Synchronizer) readDate(ctx context.Context, date string) ([]LocalTask, error) {
	path, err := s.local.PathForDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDate, err)
	}
	tasks, err := s.local.ReadTasks(ctx, Container{Path: path, Date: date}, s.section)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].Date == "" {
			tasks[i].Date = date
		}
	}
	return tasks, nil
}

// readAllLocal enumerates tasks across every container. Listing failures are
// returned as err; per-container read failures are returned as messages.
func (s *Synchronizer) readAllLocal(ctx context.Context) ([]LocalTask, []string, error) {
	containers, err := s.local.ListContainers(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		all  []LocalTask
		errs []string
	)
	for _, c := range containers {
		tasks, err := s.local.ReadTasks(ctx, c, s.section)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("sync: read container", "path", c.Path, "error", err)
			errs = append(errs, fmt.Sprintf("read %s: %v", c.Path, err))
			continue
		}
		for i := range tasks {
			if tasks[i].Date == "" {
				tasks[i].Date = c.Date
			}
		}
		all = append(all, tasks...)
	}
	return all, errs, nil
}

// findLocalTask returns the index of the task on date whose cleaned title
// equals title, preferring an incomplete one.
func findLocalTask(tasks []LocalTask, date, title string) int {
	want := CleanTitle(title)
	found := -1
	for i, t := range tasks {
		if t.Date != date || CleanTitle(t.Title) != want {
			continue
		}
		if !t.Completed {
			return i
		}
		if found < 0 {
			found = i
		}
	}
	return found
}

func hasNormalizedTitle(tasks []LocalTask, title string) bool {
	want := NormalizeTitle(title)
	for _, t := range tasks {
		if NormalizeTitle(t.Title) == want {
			return true
		}
	}
	return false
}
