package snapshot

import "context"

// Repository defines the interface for snapshot persistence.
type Repository interface {
	// Save stores a snapshot.
	Save(ctx context.Context, s *Snapshot) error

	// Latest returns the most recent snapshot, or ErrNotFound.
	Latest(ctx context.Context) (*Snapshot, error)

	// List returns up to limit snapshots, newest first.
	List(ctx context.Context, limit int) ([]*Snapshot, error)
}
