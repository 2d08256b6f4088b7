package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/hyperengineering/tasksync"
	"github.com/hyperengineering/tasksync/internal/notes"
	"github.com/hyperengineering/tasksync/internal/store"
	"github.com/hyperengineering/tasksync/internal/todo"
)

const listResolveTimeout = 15 * time.Second

// newLogger returns the structured logger for engine diagnostics. Warnings
// always reach stderr; --debug lowers the level to debug.
func newLogger(w io.Writer, cfg tasksync.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openClient opens a client for commands that only inspect or edit state.
func openClient(cfg tasksync.Config, stderr io.Writer) (*tasksync.Client, error) {
	client, err := tasksync.New(cfg, nil, nil, tasksync.WithClientLogger(newLogger(stderr, cfg)))
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}

// syncSession is a client wired to the vault and Microsoft To Do.
type syncSession struct {
	client *tasksync.Client
	remote *todo.Client
	debug  *tasksync.DebugLogger
}

func (s *syncSession) Close() {
	_ = s.client.Close()
	_ = s.debug.Close()
}

// openSyncSession wires the markdown vault and the Graph client into a
// tasksync client. A default list that cannot be resolved is reported but
// not fatal: the cycle then records the failure per phase.
func openSyncSession(ctx context.Context, cfg tasksync.Config, stderr io.Writer) (*syncSession, error) {
	if err := cfg.ValidateForSync(); err != nil {
		return nil, err
	}

	debug, err := tasksync.NewDebugLogger(cfg.Debug, cfg.DebugLogPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(stderr, cfg)
	vault := notes.New(cfg.VaultPath, cfg.NotesFolder, notes.WithLocation(cfg.Location()))

	remote := todo.NewClient(cfg.GraphURL, cfg.AccessToken, cfg.ListID).
		WithDebugLogger(debug).
		WithTimeZone(cfg.Timezone)

	resolveCtx, cancel := context.WithTimeout(ctx, listResolveTimeout)
	defer cancel()
	if _, err := remote.ResolveDefaultList(resolveCtx); err != nil {
		logger.Warn("resolve default task list", "error", err)
	}

	client, err := tasksync.New(cfg, vault, remote, tasksync.WithClientLogger(logger))
	if err != nil {
		_ = debug.Close()
		return nil, fmt.Errorf("initialize client: %w", err)
	}

	return &syncSession{client: client, remote: remote, debug: debug}, nil
}

// checkLock reports tasksync.ErrLocked when another process holds the
// database lock, so a cycle fails before contacting Microsoft Graph. The
// client takes the lock itself for the cycle.
func checkLock(cfg tasksync.Config) error {
	path := store.LockPath(cfg.DBPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("check sync lock: %w", err)
	}
	if !locked {
		return tasksync.ErrLocked
	}
	return lock.Unlock()
}
