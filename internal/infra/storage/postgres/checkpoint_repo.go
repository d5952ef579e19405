package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

// CheckpointRepo implements storage.CheckpointRepository using PostgreSQL.
type CheckpointRepo struct {
	db   *DB
	name string
}

var _ storage.CheckpointRepository = (*CheckpointRepo)(nil)

// NewCheckpointRepo creates a checkpoint repository keyed by name, so several
// campaigns can share a database.
func NewCheckpointRepo(db *DB, name string) *CheckpointRepo {
	return &CheckpointRepo{db: db, name: name}
}

// Load retrieves the checkpoint, 0 if none has been saved.
func (r *CheckpointRepo) Load(ctx context.Context) (uint64, error) {
	var blockNumber int64
	err := r.db.GetContext(ctx, &blockNumber,
		`SELECT block_number FROM checkpoints WHERE name = $1`, r.name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get checkpoint: %w", domain.ErrPersistence, err)
	}
	return uint64(blockNumber), nil
}

// Save upserts the checkpoint. The statement commits before returning.
func (r *CheckpointRepo) Save(ctx context.Context, height uint64) error {
	query := `
		INSERT INTO checkpoints (name, block_number, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, r.name, int64(height), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: failed to save checkpoint: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Cursor returns the stored checkpoint with its update time.
func (r *CheckpointRepo) Cursor(ctx context.Context) (*domain.Cursor, error) {
	var row struct {
		Name        string `db:"name"`
		BlockNumber int64  `db:"block_number"`
		UpdatedAt   int64  `db:"updated_at"`
	}
	err := r.db.GetContext(ctx, &row,
		`SELECT name, block_number, updated_at FROM checkpoints WHERE name = $1`, r.name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get checkpoint: %w", domain.ErrPersistence, err)
	}
	return &domain.Cursor{
		Name:        row.Name,
		BlockNumber: uint64(row.BlockNumber),
		UpdatedAt:   time.Unix(row.UpdatedAt, 0),
	}, nil
}
