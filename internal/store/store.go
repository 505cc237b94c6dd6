// Package store holds the in-memory job record table. It is the single
// source of truth for status queries and is intentionally not persisted:
// in-flight jobs do not survive a restart.
package store

import (
	"sync"
	"time"

	"videofetch/internal/domain"
)

type entry struct {
	mu  sync.Mutex
	job domain.Job
}

// Store is a job table keyed by id. The outer lock guards the map; each
// entry carries its own lock so runner updates, manager reads, and
// sweeper deletes serialize per job without blocking unrelated jobs.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Create registers a fresh job record in queued state.
func (s *Store) Create(id, sourceURL string) domain.Snapshot {
	e := &entry{job: domain.Job{
		ID:        id,
		SourceURL: sourceURL,
		Status:    domain.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}}
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return e.job.Snapshot()
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	return e, ok
}

// Snapshot returns a consistent view of one job.
func (s *Store) Snapshot(id string) (domain.Snapshot, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return domain.Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Snapshot(), true
}

// Update applies fn to the job under its entry lock and returns the
// resulting snapshot. Returns false for unknown ids.
func (s *Store) Update(id string, fn func(*domain.Job)) (domain.Snapshot, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return domain.Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.job)
	return e.job.Snapshot(), true
}

// Transition moves the job to a new status if the state machine allows
// it, applying extra under the same lock. The bool reports whether the
// transition was applied.
func (s *Store) Transition(id string, to domain.Status, extra func(*domain.Job)) (domain.Snapshot, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return domain.Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !domain.ValidTransition(e.job.Status, to) {
		return e.job.Snapshot(), false
	}
	e.job.Status = to
	if extra != nil {
		extra(&e.job)
	}
	return e.job.Snapshot(), true
}

// Delete removes a job record. Idempotent.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Snapshots returns a point-in-time view of every job. Used by the
// retention sweeper and the metrics endpoint.
func (s *Store) Snapshots() []domain.Snapshot {
	s.mu.RLock()
	list := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	s.mu.RUnlock()

	out := make([]domain.Snapshot, 0, len(list))
	for _, e := range list {
		e.mu.Lock()
		out = append(out, e.job.Snapshot())
		e.mu.Unlock()
	}
	return out
}

// ActiveCount reports how many jobs currently hold a concurrency slot.
func (s *Store) ActiveCount() int {
	n := 0
	for _, snap := range s.Snapshots() {
		if snap.Status.IsActive() {
			n++
		}
	}
	return n
}
