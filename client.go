package tasksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithClientLogger sets the structured logger shared by the client, its
// identity store and synchronizer.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClientClock overrides the clock used throughout the client.
func WithClientClock(now func() time.Time) ClientOption {
	return func(o *clientOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Client is the main interface for running and inspecting task syncs.
//
// Every mutation of identity state runs under a file lock next to the
// database and starts by reloading the persisted records, so several
// processes sharing one database never overwrite each other's links.
type Client struct {
	mu       sync.Mutex
	store    *Store
	identity *IdentityStore
	syncer   *Synchronizer
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a tasksync client over the given adapters. local and remote
// may both be nil for clients that only inspect state; Sync then returns
// ErrNotConfigured.
func New(cfg Config, local LocalStore, remote RemoteStore, opts ...ClientOption) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	identity := NewIdentityStore(
		store.LoadBlob(IdentityKey),
		store.SaveBlob(IdentityKey),
		WithIdentityLogger(o.logger),
		WithIdentityClock(o.now),
	)

	c := &Client{
		store:    store,
		identity: identity,
		config:   cfg,
		logger:   o.logger,
		now:      o.now,
	}

	if local != nil && remote != nil {
		c.syncer = NewSynchronizer(local, remote, identity,
			WithSection(cfg.Section),
			WithLocation(cfg.Location()),
			WithClock(o.now),
			WithLogger(o.logger),
			WithStaleAfter(cfg.StaleAfterDays),
		)
	}

	return c, nil
}

// Config returns the resolved configuration.
func (c *Client) Config() Config {
	return c.config
}

// Identity returns the identity store. Reads see the records as of the last
// Refresh or locked operation; mutate through Update.
func (c *Client) Identity() *IdentityStore {
	return c.identity
}

// withLock runs fn holding the database lock, after reloading identity
// records saved by other processes. Returns ErrLocked when another process
// or another call on this client holds it.
func (c *Client) withLock(fn func() error) error {
	if !c.mu.TryLock() {
		return ErrLocked
	}
	defer c.mu.Unlock()

	lock := flock.New(c.config.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("client: acquire lock: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	if err := c.identity.Reload(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	return fn()
}

// Refresh reloads identity records saved by other processes. It is a no-op
// while this client holds the lock for a mutation.
func (c *Client) Refresh() error {
	if !c.mu.TryLock() {
		return nil
	}
	defer c.mu.Unlock()
	return c.identity.Reload()
}

// Update runs fn against freshly loaded identity records under the database
// lock.
func (c *Client) Update(fn func(*IdentityStore)) error {
	return c.withLock(func() error {
		fn(c.identity)
		return nil
	})
}

// Sync runs one full cycle under the database lock and records it in the
// run history. A cycle skipped because another one holds the lock is not
// recorded.
func (c *Client) Sync(ctx context.Context) (*SyncResult, error) {
	if c.syncer == nil {
		return nil, ErrNotConfigured
	}

	var (
		result  *SyncResult
		syncErr error
	)
	err := c.withLock(func() error {
		result, syncErr = c.runCycle(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, syncErr
}

func (c *Client) runCycle(ctx context.Context) (*SyncResult, error) {
	run := &SyncRun{StartedAt: c.now()}
	result, err := c.syncer.PerformFullSync(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		return nil, err
	}
	run.FinishedAt = c.now()
	run.Result = result
	if err != nil {
		run.Error = err.Error()
	}

	if recErr := c.store.RecordRun(run); recErr != nil {
		c.logger.Warn("client: record sync run", "error", recErr)
	}
	return result, err
}

// Prune removes identity records not synced within days and returns how
// many were removed.
func (c *Client) Prune(days int) (int, error) {
	if days <= 0 {
		return 0, &ValidationError{Field: "days", Message: "must be positive"}
	}
	var removed int
	err := c.withLock(func() error {
		removed = c.identity.CleanupStale(days)
		return nil
	})
	return removed, err
}

// History returns up to limit recorded sync runs, newest first.
func (c *Client) History(limit int) ([]SyncRun, error) {
	return c.store.RecentRuns(limit)
}

// LastRun returns the most recent sync run, or ErrNotFound.
func (c *Client) LastRun() (*SyncRun, error) {
	return c.store.LastRun()
}

// Stats returns state database statistics.
func (c *Client) Stats() (*StoreStats, error) {
	stats, err := c.store.Stats()
	if err != nil {
		return nil, err
	}
	stats.IdentityRecords = c.identity.Len()
	return stats, nil
}

// ImportLegacy merges an identity blob of [key, record] pairs written by the
// earlier editor plugin. Returns the number of records imported.
func (c *Client) ImportLegacy(blob []byte) (int, error) {
	var n int
	err := c.withLock(func() error {
		var importErr error
		n, importErr = c.identity.Import(blob)
		return importErr
	})
	if err != nil {
		return 0, fmt.Errorf("client: import legacy identity: %w", err)
	}
	c.logger.Info("client: imported legacy identity records", "records", n)
	return n, nil
}

// Close closes the client.
func (c *Client) Close() error {
	return c.store.Close()
}
