package cursor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

// ErrRegression is returned when asked to move the checkpoint backwards.
var ErrRegression = errors.New("checkpoint regression")

// Manager handles checkpoint and state operations.
type Manager interface {
	// Load reads the persisted checkpoint (0 when none) into memory.
	Load(ctx context.Context) (uint64, error)

	// Current returns the in-memory checkpoint.
	Current() uint64

	// Advance persists a new checkpoint. It never moves backwards.
	Advance(ctx context.Context, blockNumber uint64) error

	// State returns the current scheduler state.
	State() State

	// SetState transitions to a new state (validates transition).
	SetState(newState State, reason string) error

	// GetLag returns blocks behind current chain tip.
	GetLag(latestBlock uint64) int64

	// GetMetrics returns throughput metrics.
	GetMetrics() Metrics

	// SetStateChangeCallback registers callback for state changes.
	SetStateChangeCallback(fn func(t Transition))
}

// DefaultManager implements Manager. It is driven by a single writer, the
// scheduler loop; the mutex only guards readers such as the health server.
type DefaultManager struct {
	repo          storage.CheckpointRepository
	mu            sync.RWMutex
	current       uint64
	state         State
	stateCallback func(Transition)
	metrics       *MetricsCollector
}

var _ Manager = (*DefaultManager)(nil)

// Load reads the persisted checkpoint into memory.
func (m *DefaultManager) Load(ctx context.Context) (uint64, error) {
	height, err := m.repo.Load(ctx)
	if err != nil {
		return 0, persistenceErr("failed to load checkpoint", err)
	}

	m.mu.Lock()
	m.current = height
	m.mu.Unlock()

	return height, nil
}

// Current returns the in-memory checkpoint.
func (m *DefaultManager) Current() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Advance persists blockNumber as the new checkpoint. The in-memory value
// only moves once the store reports success.
func (m *DefaultManager) Advance(ctx context.Context, blockNumber uint64) error {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()

	if blockNumber == current {
		return nil
	}
	if blockNumber < current {
		return fmt.Errorf("%w: at %d, asked for %d", ErrRegression, current, blockNumber)
	}

	if err := m.repo.Save(ctx, blockNumber); err != nil {
		return persistenceErr("failed to save checkpoint", err)
	}

	m.mu.Lock()
	m.current = blockNumber
	m.metrics.RecordBatch(current+1, blockNumber, time.Now())
	m.mu.Unlock()

	return nil
}

// State returns the current scheduler state.
func (m *DefaultManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetState transitions to a new state.
func (m *DefaultManager) SetState(newState State, reason string) error {
	m.mu.Lock()
	if !CanTransition(m.state, newState) {
		from := m.state
		m.mu.Unlock()
		return fmt.Errorf(
			"%w: cannot transition from %s to %s",
			ErrInvalidTransition,
			from,
			newState,
		)
	}

	transition := NewTransition(m.state, newState, reason)
	m.state = newState
	m.metrics.RecordTransition(transition)
	callback := m.stateCallback
	m.mu.Unlock()

	if callback != nil {
		callback(transition)
	}
	return nil
}

// GetLag returns how many blocks behind the chain tip.
func (m *DefaultManager) GetLag(latestBlock uint64) int64 {
	return int64(latestBlock) - int64(m.Current())
}

// GetMetrics returns throughput metrics.
func (m *DefaultManager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics.GetMetrics()
}

// SetStateChangeCallback registers a callback for state changes.
func (m *DefaultManager) SetStateChangeCallback(fn func(t Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateCallback = fn
}

func persistenceErr(msg string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, domain.ErrPersistence, err)
}
