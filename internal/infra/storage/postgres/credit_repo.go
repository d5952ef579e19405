package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

// CreditRepo implements storage.CreditLedger using PostgreSQL. The unique
// constraint on (user_addr, task_id) is the deduplication primitive.
type CreditRepo struct {
	db *DB
}

var _ storage.CreditLedger = (*CreditRepo)(nil)

// NewCreditRepo creates a new PostgreSQL credit ledger.
func NewCreditRepo(db *DB) *CreditRepo {
	return &CreditRepo{db: db}
}

// InsertIfAbsent inserts the credit unless it already exists.
func (r *CreditRepo) InsertIfAbsent(
	ctx context.Context,
	userAddress string,
	taskID domain.TaskID,
) (domain.InsertResult, error) {
	query := `
		INSERT INTO user_tasks (user_addr, task_id)
		VALUES ($1, $2)
		ON CONFLICT (user_addr, task_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, userAddress, int(taskID))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert credit: %w", domain.ErrStore, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read rows affected: %w", domain.ErrStore, err)
	}
	if affected == 0 {
		return domain.AlreadyExisted, nil
	}
	return domain.Inserted, nil
}

// List retrieves credits, optionally for a single task.
func (r *CreditRepo) List(ctx context.Context, taskID *domain.TaskID) ([]domain.CreditRecord, error) {
	query := `SELECT user_addr, task_id, created_at FROM user_tasks`
	args := []any{}
	if taskID != nil {
		query += ` WHERE task_id = $1`
		args = append(args, int(*taskID))
	}
	query += ` ORDER BY task_id, created_at, user_addr`

	var records []domain.CreditRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("%w: failed to list credits: %w", domain.ErrStore, err)
	}
	return records, nil
}

// Count returns the number of credits.
func (r *CreditRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM user_tasks`); err != nil {
		return 0, fmt.Errorf("%w: failed to count credits: %w", domain.ErrStore, err)
	}
	return count, nil
}
