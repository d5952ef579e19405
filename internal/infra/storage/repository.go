package storage

import (
	"context"

	"github.com/vietddude/taskwatcher/internal/core/domain"
)

// CheckpointRepository persists the last fully processed block height.
type CheckpointRepository interface {
	// Load returns the stored height, or 0 when nothing has been saved yet.
	Load(ctx context.Context) (uint64, error)

	// Save durably replaces the stored height before returning.
	Save(ctx context.Context, height uint64) error
}

// CursorReader is implemented by checkpoint stores that also record when
// the checkpoint last moved.
type CursorReader interface {
	Cursor(ctx context.Context) (*domain.Cursor, error)
}

// CreditLedger is the uniqueness-enforcing store of (user, task) credits.
type CreditLedger interface {
	// InsertIfAbsent atomically inserts the credit. A uniqueness conflict is
	// reported as domain.AlreadyExisted, not as an error. Other failures wrap
	// domain.ErrStore.
	InsertIfAbsent(ctx context.Context, userAddress string, taskID domain.TaskID) (domain.InsertResult, error)

	// List returns credits, optionally restricted to one task.
	List(ctx context.Context, taskID *domain.TaskID) ([]domain.CreditRecord, error)

	// Count returns the number of stored credits.
	Count(ctx context.Context) (int64, error)
}
