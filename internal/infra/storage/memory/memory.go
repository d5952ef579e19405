package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

type creditKey struct {
	user string
	task domain.TaskID
}

// MemoryStorage keeps checkpoint and credits in process memory. Nothing
// survives a restart; it backs tests and dry runs.
type MemoryStorage struct {
	checkpoint uint64
	credits    map[creditKey]domain.CreditRecord
	mu         sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		credits: make(map[creditKey]domain.CreditRecord),
	}
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store *MemoryStorage
}

var _ storage.CheckpointRepository = (*CheckpointRepo)(nil)

func NewCheckpointRepo(store *MemoryStorage) *CheckpointRepo {
	return &CheckpointRepo{store: store}
}

func (r *CheckpointRepo) Load(ctx context.Context) (uint64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.checkpoint, nil
}

func (r *CheckpointRepo) Save(ctx context.Context, height uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.checkpoint = height
	return nil
}

// -----------------------------------------------------------------------------
// Credit Ledger
// -----------------------------------------------------------------------------

type CreditRepo struct {
	store *MemoryStorage
}

var _ storage.CreditLedger = (*CreditRepo)(nil)

func NewCreditRepo(store *MemoryStorage) *CreditRepo {
	return &CreditRepo{store: store}
}

func (r *CreditRepo) InsertIfAbsent(
	ctx context.Context,
	userAddress string,
	taskID domain.TaskID,
) (domain.InsertResult, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := creditKey{user: userAddress, task: taskID}
	if _, ok := r.store.credits[key]; ok {
		return domain.AlreadyExisted, nil
	}
	r.store.credits[key] = domain.CreditRecord{
		UserAddress: userAddress,
		TaskID:      taskID,
		CreatedAt:   time.Now(),
	}
	return domain.Inserted, nil
}

func (r *CreditRepo) List(ctx context.Context, taskID *domain.TaskID) ([]domain.CreditRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]domain.CreditRecord, 0, len(r.store.credits))
	for _, c := range r.store.credits {
		if taskID != nil && c.TaskID != *taskID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskID != out[j].TaskID {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].UserAddress < out[j].UserAddress
	})
	return out, nil
}

func (r *CreditRepo) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.credits)), nil
}
