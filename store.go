package tasksync

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperengineering/tasksync/internal/store/migrations"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// runTimeLayout is fixed-width so stored run timestamps sort as text.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the local SQLite state database: a generic key-value
// metadata table (home of the identity blob) and the sync run history.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewStore opens or creates a state database.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, schemaVersion)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// GetMetadata returns the value stored under key, or ErrNotFound.
func (s *Store) GetMetadata(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata upserts the value stored under key.
func (s *Store) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: set metadata %q: %w", key, err)
	}
	return nil
}

// LoadBlob returns a LoadFunc reading key from the metadata table. A missing
// key loads as an empty blob.
func (s *Store) LoadBlob(key string) LoadFunc {
	return func() ([]byte, error) {
		value, err := s.GetMetadata(key)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []byte(value), nil
	}
}

// SaveBlob returns a SaveFunc writing key in the metadata table.
func (s *Store) SaveBlob(key string) SaveFunc {
	return func(blob []byte) error {
		return s.SetMetadata(key, string(blob))
	}
}

// RecordRun persists a sync run, assigning it a ULID when run.ID is empty.
func (s *Store) RecordRun(run *SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if run.ID == "" {
		run.ID = ulid.Make().String()
	}

	var resultJSON *string
	if run.Result != nil {
		data, err := json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("store: encode sync result: %w", err)
		}
		encoded := string(data)
		resultJSON = &encoded
	}

	_, err := s.db.Exec(`
		INSERT INTO sync_runs (id, started_at, finished_at, result, error)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(runTimeLayout),
		run.FinishedAt.UTC().Format(runTimeLayout),
		resultJSON,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("store: insert sync run: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES ('last_sync', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, run.FinishedAt.UTC().Format(time.RFC3339))
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, result, error
		FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LastRun returns the most recent run, or ErrNotFound.
func (s *Store) LastRun() (*SyncRun, error) {
	runs, err := s.RecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[0], nil
}

// Stats returns store statistics. IdentityRecords is filled in by Client.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sync_runs").Scan(&count); err != nil {
		return nil, err
	}

	var lastSyncStr sql.NullString
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_sync'").Scan(&lastSyncStr)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var lastSync time.Time
	if lastSyncStr.Valid {
		lastSync, _ = time.Parse(time.RFC3339, lastSyncStr.String)
	}

	return &StoreStats{
		RunCount:      count,
		LastSync:      lastSync,
		SchemaVersion: schemaVersion,
	}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

func scanRun(rows *sql.Rows) (*SyncRun, error) {
	var (
		run        SyncRun
		startedAt  string
		finishedAt string
		resultJSON sql.NullString
		errText    sql.NullString
	)
	if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &resultJSON, &errText); err != nil {
		return nil, fmt.Errorf("store: scan sync run: %w", err)
	}

	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	if resultJSON.Valid {
		var result SyncResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err == nil {
			run.Result = &result
		}
	}
	if errText.Valid {
		run.Error = errText.String
	}
	return &run, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
