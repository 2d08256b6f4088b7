package mcp

import (
	"fmt"
	"sync"
)

// RecordRef identifies an identity record shown to the agent.
type RecordRef struct {
	Date     string
	Title    string
	RemoteID string
}

// RefSession hands out short refs (T1, T2, ...) for identity records returned
// by lookups, so later calls can name a record without repeating its date and
// title. Refs are stable for the life of the server.
type RefSession struct {
	mu      sync.Mutex
	refs    map[string]RecordRef
	reverse map[string]string
	counter int
}

// NewRefSession creates an empty session.
func NewRefSession() *RefSession {
	return &RefSession{
		refs:    make(map[string]RecordRef),
		reverse: make(map[string]string),
	}
}

// Track returns the ref for rec, assigning the next one if rec is new.
func (s *RefSession) Track(rec RecordRef) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reverseKey(rec.Date, rec.Title)
	if ref, ok := s.reverse[key]; ok {
		s.refs[ref] = rec
		return ref
	}

	s.counter++
	ref := fmt.Sprintf("T%d", s.counter)
	s.refs[ref] = rec
	s.reverse[key] = ref
	return ref
}

// Resolve returns the record behind ref.
func (s *RefSession) Resolve(ref string) (RecordRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refs[ref]
	return rec, ok
}

// Forget drops ref from the session.
func (s *RefSession) Forget(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refs[ref]
	if !ok {
		return
	}
	delete(s.refs, ref)
	delete(s.reverse, reverseKey(rec.Date, rec.Title))
}

// Len returns the number of tracked refs.
func (s *RefSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

func reverseKey(date, title string) string {
	return date + "::" + title
}
