package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS infrastructure_snapshots (
		id       UUID PRIMARY KEY,
		taken_at TIMESTAMPTZ NOT NULL,
		total    INTEGER NOT NULL,
		degraded BOOLEAN NOT NULL DEFAULT FALSE,
		items    JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS infrastructure_snapshots_taken_at_idx
		ON infrastructure_snapshots (taken_at DESC);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL snapshot repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the snapshots table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	return nil
}

// Save stores a snapshot.
func (r *PostgresRepository) Save(ctx context.Context, s *Snapshot) error {
	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("encode snapshot items: %w", err)
	}

	query := `
		INSERT INTO infrastructure_snapshots (id, taken_at, total, degraded, items)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.pool.Exec(ctx, query, s.ID, s.TakenAt, s.Total, s.Degraded, items); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot.
func (r *PostgresRepository) Latest(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT id, taken_at, total, degraded, items
		FROM infrastructure_snapshots
		ORDER BY taken_at DESC
		LIMIT 1
	`

	s, err := scanSnapshot(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns up to limit snapshots, newest first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*Snapshot, error) {
	query := `
		SELECT id, taken_at, total, degraded, items
		FROM infrastructure_snapshots
		ORDER BY taken_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var (
		s     Snapshot
		items []byte
	)
	if err := row.Scan(&s.ID, &s.TakenAt, &s.Total, &s.Degraded, &items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &s.Items); err != nil {
		return nil, fmt.Errorf("decode snapshot items: %w", err)
	}
	return &s, nil
}
