package queue

import (
	"fmt"
	"sync"
)

// Store is the in-memory arena of processing records.
type Store struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*Record
	epoch   uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Add appends a record to the end of the order and returns the current epoch.
func (s *Store) Add(rec *Record) (uint64, error) {
	if rec == nil || rec.ID == "" {
		return 0, fmt.Errorf("add record: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return s.epoch, fmt.Errorf("%w: %s", ErrDuplicate, rec.ID)
	}
	s.records[rec.ID] = rec.clone()
	s.order = append(s.order, rec.ID)
	return s.epoch, nil
}

// Epoch identifies the current generation of records. Reset advances it.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Get returns a snapshot of the record with id.
func (s *Store) Get(id string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Snapshot{}, false
	}
	return rec.Snapshot(), true
}

// Order returns the record ids in enqueue order.
func (s *Store) Order() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// List returns snapshots of every record in enqueue order.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Snapshot())
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Counts tallies records per status.
func (s *Store) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, len(allStatuses))
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts
}

// Reset drops every record and advances the epoch. It returns how many
// records were cleared.
func (s *Store) Reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := len(s.order)
	s.order = nil
	s.records = make(map[string]*Record)
	s.epoch++
	return cleared
}

// Update applies fn to the record with id. The change is committed only when
// fn succeeds and epoch is still current; otherwise the stored record is left
// untouched.
func (s *Store) Update(id string, epoch uint64, fn func(*Record) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return Snapshot{}, fmt.Errorf("%w: record %s", ErrDiscarded, id)
	}
	rec, ok := s.records[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	working := rec.clone()
	if err := fn(working); err != nil {
		return rec.Snapshot(), err
	}
	// fn may have attached caller-owned values; keep our own copy.
	committed := working.clone()
	s.records[id] = committed
	return committed.Snapshot(), nil
}
