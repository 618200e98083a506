package sequence

import (
	"context"
	"sync"
)

// MemStore keeps counters in memory with one mutex per facility. It backs
// tests and single-process deployments.
type MemStore struct {
	mu   sync.Mutex
	rows map[int64]*memRow
}

type memRow struct {
	mu sync.Mutex
	c  Counter
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{rows: map[int64]*memRow{}}
}

func (s *MemStore) row(hfID int64, year int) *memRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[hfID]
	if !ok {
		r = &memRow{c: NewCounter(hfID, year)}
		s.rows[hfID] = r
	}
	return r
}

// WithLockedCounter runs fn on a copy of the counter and keeps the copy only
// when fn succeeds.
func (s *MemStore) WithLockedCounter(ctx context.Context, hfID int64, year int, fn func(*Counter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := s.row(hfID, year)
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.c
	if err := fn(&c); err != nil {
		return err
	}
	r.c = c
	return nil
}

// Get returns the stored counter of a facility.
func (s *MemStore) Get(hfID int64) (Counter, bool) {
	s.mu.Lock()
	r, ok := s.rows[hfID]
	s.mu.Unlock()
	if !ok {
		return Counter{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.c, true
}
