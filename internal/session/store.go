// Package session keeps live conversation histories in memory, keyed by
// session id. Histories live for the process lifetime; durable snapshots
// are the transcript store's concern.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kensei-chat/kensei/internal/chat"
)

// entry pairs a history with its last write time.
type entry struct {
	history   *chat.History
	updatedAt time.Time
}

// Store is an in-memory session store. It implements chat.SessionStore.
//
// Lock hands out one mutex per session id so orchestration runs for the
// same session serialize while different sessions proceed in parallel.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	locks   map[string]*sync.Mutex

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]*entry),
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// NewID returns a fresh session identifier.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// Get returns the history stored under id.
func (s *Store) Get(id string) (*chat.History, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.history, true
}

// Put stores the history under id, stamping the write time.
func (s *Store) Put(id string, h *chat.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry{history: h, updatedAt: s.now()}
	return nil
}

// Lock acquires the per-session mutex for id and returns its release func.
// The mutex is created on first use and lives as long as the store.
func (s *Store) Lock(id string) func() {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// UpdatedAt returns the last write time for id.
func (s *Store) UpdatedAt(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.updatedAt, true
}
