package tasksync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// IdentityKey is the metadata key the identity blob is stored under in the
// host key-value store.
const IdentityKey = "tasksync.taskMetadata"

// keySeparator joins date and title in a composite identity key.
const keySeparator = "::"

// LoadFunc returns the persisted identity blob. A nil blob means nothing has
// been stored yet.
type LoadFunc func() ([]byte, error)

// SaveFunc persists the identity blob, replacing any previous one.
type SaveFunc func(blob []byte) error

// IdentityOption configures an IdentityStore.
type IdentityOption func(*IdentityStore)

// WithIdentityLogger sets the logger used for persistence warnings.
func WithIdentityLogger(logger *slog.Logger) IdentityOption {
	return func(s *IdentityStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdentityClock overrides the clock used for LastSynced and staleness.
func WithIdentityClock(now func() time.Time) IdentityOption {
	return func(s *IdentityStore) {
		if now != nil {
			s.now = now
		}
	}
}

// IdentityStore maps (date, cleaned title) to a remote task ID. It is the
// only source of cross-store identity.
//
// The whole map lives in memory and is written back in full after every
// mutation. Persistence failures are logged and swallowed: the in-memory
// state stays authoritative for the life of the process.
type IdentityStore struct {
	mu      sync.RWMutex
	records map[string]TaskMetadata
	load    LoadFunc
	save    SaveFunc
	logger  *slog.Logger
	now     func() time.Time
}

// NewIdentityStore builds a store and loads its persisted state. A failed or
// corrupt load starts the store empty.
func NewIdentityStore(load LoadFunc, save SaveFunc, opts ...IdentityOption) *IdentityStore {
	s := &IdentityStore{
		records: make(map[string]TaskMetadata),
		load:    load,
		save:    save,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loadRecords()
	return s
}

// identityKey builds the composite key for date and title. The title is
// cleaned so that legacy-tagged and plain titles resolve to the same record.
func identityKey(date, title string) string {
	return date + keySeparator + CleanTitle(title)
}

func (s *IdentityStore) loadRecords() {
	if err := s.Reload(); err != nil {
		s.logger.Warn("identity: load failed, starting empty", "error", err)
	}
}

// Reload replaces the in-memory records with the persisted blob, picking up
// changes saved by other processes. A failed load keeps the current records
// and returns the error. A corrupt blob empties the store.
func (s *IdentityStore) Reload() error {
	if s.load == nil {
		return nil
	}
	blob, err := s.load()
	if err != nil {
		return fmt.Errorf("identity: load: %w", err)
	}

	records := make(map[string]TaskMetadata)
	if len(blob) > 0 {
		decoded, err := decodeIdentityBlob(blob)
		if err != nil {
			s.logger.Warn("identity: decode failed, starting empty", "error", err)
		} else {
			records = decoded
		}
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// decodeIdentityBlob parses an array of [key, record] pairs.
func decodeIdentityBlob(blob []byte) (map[string]TaskMetadata, error) {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(blob, &pairs); err != nil {
		return nil, fmt.Errorf("decode identity blob: %w", err)
	}
	records := make(map[string]TaskMetadata, len(pairs))
	for _, pair := range pairs {
		var key string
		if err := json.Unmarshal(pair[0], &key); err != nil {
			return nil, fmt.Errorf("decode identity key: %w", err)
		}
		var rec TaskMetadata
		if err := json.Unmarshal(pair[1], &rec); err != nil {
			return nil, fmt.Errorf("decode identity record %q: %w", key, err)
		}
		records[key] = rec
	}
	return records, nil
}

// encodeLocked serializes the map as [key, record] pairs ordered by key.
// Caller must hold s.mu.
func (s *IdentityStore) encodeLocked() ([]byte, error) {
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]any, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]any{k, s.records[k]})
	}
	return json.Marshal(pairs)
}

// persistLocked writes the whole map. Caller must hold s.mu.
func (s *IdentityStore) persistLocked() {
	if s.save == nil {
		return
	}
	blob, err := s.encodeLocked()
	if err != nil {
		s.logger.Warn("identity: encode failed", "error", err)
		return
	}
	if err := s.save(blob); err != nil {
		s.logger.Warn("identity: save failed", "error", err, "records", len(s.records))
	}
}

// SetMetadata records that the task titled title on date is remoteID.
func (s *IdentityStore) SetMetadata(date, title, remoteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[identityKey(date, title)] = TaskMetadata{
		RemoteID:   remoteID,
		Date:       date,
		Title:      CleanTitle(title),
		LastSynced: s.now().UTC(),
	}
	s.persistLocked()
}

// GetRemoteID returns the remote ID recorded for date and title.
func (s *IdentityStore) GetRemoteID(date, title string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[identityKey(date, title)]
	if !ok {
		return "", false
	}
	return rec.RemoteID, true
}

// FindByRemoteID returns the record linked to remoteID.
func (s *IdentityStore) FindByRemoteID(remoteID string) (*TaskMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.RemoteID == remoteID {
			found := rec
			return &found, true
		}
	}
	return nil, false
}

// UpdateTitle moves the record for oldTitle on date to newTitle, keeping its
// remote ID. No-op when oldTitle has no record.
func (s *IdentityStore) UpdateTitle(date, oldTitle, newTitle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey := identityKey(date, oldTitle)
	rec, ok := s.records[oldKey]
	if !ok {
		return
	}
	delete(s.records, oldKey)

	rec.Title = CleanTitle(newTitle)
	rec.LastSynced = s.now().UTC()
	s.records[identityKey(date, newTitle)] = rec
	s.persistLocked()
}

// RemoveMetadata deletes the record for date and title, if any.
func (s *IdentityStore) RemoveMetadata(date, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey(date, title)
	if _, ok := s.records[key]; !ok {
		return
	}
	delete(s.records, key)
	s.persistLocked()
}

// RemoveByRemoteID deletes every record linked to remoteID.
func (s *IdentityStore) RemoveByRemoteID(remoteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for key, rec := range s.records {
		if rec.RemoteID == remoteID {
			delete(s.records, key)
			removed = true
		}
	}
	if removed {
		s.persistLocked()
	}
}

// CleanupStale deletes records not synced within maxAgeDays and returns how
// many were removed.
func (s *IdentityStore) CleanupStale(maxAgeDays int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	removed := 0
	for key, rec := range s.records {
		if rec.LastSynced.Before(cutoff) {
			delete(s.records, key)
			removed++
		}
	}
	if removed > 0 {
		s.persistLocked()
	}
	return removed
}

// Import merges a blob of [key, record] pairs into the store, re-keying each
// record by its cleaned title. Records without a remote ID or date are
// skipped. Returns the number of records imported.
func (s *IdentityStore) Import(blob []byte) (int, error) {
	incoming, err := decodeIdentityBlob(blob)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imported := 0
	for _, rec := range incoming {
		if rec.RemoteID == "" || rec.Date == "" {
			continue
		}
		rec.Title = CleanTitle(rec.Title)
		if rec.LastSynced.IsZero() {
			rec.LastSynced = s.now().UTC()
		}
		s.records[identityKey(rec.Date, rec.Title)] = rec
		imported++
	}
	if imported > 0 {
		s.persistLocked()
	}
	return imported, nil
}

// Len returns the number of records.
func (s *IdentityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// GetAllMetadata returns every record ordered by date, then title.
func (s *IdentityStore) GetAllMetadata() []TaskMetadata {
	return s.filter(func(TaskMetadata) bool { return true })
}

// ByDate returns the records for one calendar date.
func (s *IdentityStore) ByDate(date string) []TaskMetadata {
	return s.filter(func(rec TaskMetadata) bool { return rec.Date == date })
}

// ByDateRange returns the records dated between start and end, inclusive.
func (s *IdentityStore) ByDateRange(start, end string) []TaskMetadata {
	return s.filter(func(rec TaskMetadata) bool {
		return rec.Date >= start && rec.Date <= end
	})
}

// FindByPartialTitle returns the records on date whose title contains
// fragment, ignoring case.
func (s *IdentityStore) FindByPartialTitle(date, fragment string) []TaskMetadata {
	needle := strings.ToLower(fragment)
	return s.filter(func(rec TaskMetadata) bool {
		return rec.Date == date && strings.Contains(strings.ToLower(rec.Title), needle)
	})
}

// Dates returns the distinct dates that have records, in ascending order.
func (s *IdentityStore) Dates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var dates []string
	for _, rec := range s.records {
		if !seen[rec.Date] {
			seen[rec.Date] = true
			dates = append(dates, rec.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

func (s *IdentityStore) filter(keep func(TaskMetadata) bool) []TaskMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []TaskMetadata
	for _, rec := range s.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Title < out[j].Title
	})
	return out
}
