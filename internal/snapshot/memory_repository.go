package snapshot

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository, used when
// no database is configured and in tests.
type InMemoryRepository struct {
	mu        sync.RWMutex
	snapshots []*Snapshot
	capacity  int
}

// NewInMemoryRepository creates a repository keeping at most capacity
// snapshots (MaxListLimit when capacity <= 0).
func NewInMemoryRepository(capacity int) *InMemoryRepository {
	if capacity <= 0 {
		capacity = MaxListLimit
	}
	return &InMemoryRepository{capacity: capacity}
}

// Save stores a copy of the snapshot, evicting the oldest beyond capacity.
func (r *InMemoryRepository) Save(_ context.Context, s *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *s
	r.snapshots = append(r.snapshots, &cpy)
	sort.SliceStable(r.snapshots, func(i, j int) bool {
		return r.snapshots[i].TakenAt.After(r.snapshots[j].TakenAt)
	})

	if len(r.snapshots) > r.capacity {
		r.snapshots = r.snapshots[:r.capacity]
	}
	return nil
}

// Latest returns the most recent snapshot.
func (r *InMemoryRepository) Latest(_ context.Context) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.snapshots) == 0 {
		return nil, ErrNotFound
	}
	cpy := *r.snapshots[0]
	return &cpy, nil
}

// List returns up to limit snapshots, newest first.
func (r *InMemoryRepository) List(_ context.Context, limit int) ([]*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit = ClampLimit(limit)
	if limit > len(r.snapshots) {
		limit = len(r.snapshots)
	}

	out := make([]*Snapshot, 0, limit)
	for _, s := range r.snapshots[:limit] {
		cpy := *s
		out = append(out, &cpy)
	}
	return out, nil
}
