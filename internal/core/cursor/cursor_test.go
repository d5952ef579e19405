package cursor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/taskwatcher/internal/core/domain"
)

// =============================================================================
// Mock Repository
// =============================================================================

type mockCheckpointRepo struct {
	mu      sync.Mutex
	height  uint64
	saves   []uint64
	saveErr error
	loadErr error
}

func (r *mockCheckpointRepo) Load(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return 0, r.loadErr
	}
	return r.height, nil
}

func (r *mockCheckpointRepo) Save(ctx context.Context, height uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.height = height
	r.saves = append(r.saves, height)
	return nil
}

// =============================================================================
// State Machine Tests
// =============================================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{"waiting to active", domain.StateWaiting, domain.StateActive, true},
		{"waiting to finished", domain.StateWaiting, domain.StateFinished, true},
		{"active to finished", domain.StateActive, domain.StateFinished, true},
		{"active to waiting", domain.StateActive, domain.StateWaiting, false},
		{"finished to active", domain.StateFinished, domain.StateActive, false},
		{"finished to waiting", domain.StateFinished, domain.StateWaiting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StateFinished) {
		t.Error("expected finished to be terminal")
	}
	if IsTerminal(StateWaiting) || IsTerminal(StateActive) {
		t.Error("expected waiting and active to be non-terminal")
	}
}

func TestStateAt(t *testing.T) {
	w := domain.TimeWindow{Start: 100, End: 200}
	tests := []struct {
		ts   uint64
		want State
	}{
		{ts: 50, want: StateWaiting},
		{ts: 100, want: StateWaiting},
		{ts: 101, want: StateActive},
		{ts: 200, want: StateActive},
		{ts: 201, want: StateFinished},
	}
	for _, tt := range tests {
		if got := StateAt(w, tt.ts); got != tt.want {
			t.Errorf("StateAt(%d) = %s, want %s", tt.ts, got, tt.want)
		}
		if StateDescription(tt.want) == "Unknown state" {
			t.Errorf("missing description for %s", tt.want)
		}
	}
}

// =============================================================================
// Manager Tests
// =============================================================================

func TestManagerLoad_Empty(t *testing.T) {
	manager := NewManager(&mockCheckpointRepo{})

	height, err := manager.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if height != 0 || manager.Current() != 0 {
		t.Errorf("expected genesis checkpoint 0, got %d", height)
	}
	if manager.State() != StateWaiting {
		t.Errorf("expected initial state waiting, got %s", manager.State())
	}
}

func TestManagerLoad_Error(t *testing.T) {
	manager := NewManager(&mockCheckpointRepo{loadErr: errors.New("disk gone")})

	_, err := manager.Load(context.Background())
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestManagerAdvance(t *testing.T) {
	repo := &mockCheckpointRepo{height: 1000}
	manager := NewManager(repo)
	ctx := context.Background()

	if _, err := manager.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := manager.Advance(ctx, 1100); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if manager.Current() != 1100 || repo.height != 1100 {
		t.Errorf("expected checkpoint 1100, got mem=%d repo=%d", manager.Current(), repo.height)
	}
}

func TestManagerAdvance_Regression(t *testing.T) {
	repo := &mockCheckpointRepo{height: 1000}
	manager := NewManager(repo)
	ctx := context.Background()
	_, _ = manager.Load(ctx)

	err := manager.Advance(ctx, 999)
	if !errors.Is(err, ErrRegression) {
		t.Fatalf("expected ErrRegression, got %v", err)
	}
	if len(repo.saves) != 0 {
		t.Errorf("expected no save on regression, got %v", repo.saves)
	}
}

func TestManagerAdvance_SameBlockIsNoop(t *testing.T) {
	repo := &mockCheckpointRepo{height: 1000}
	manager := NewManager(repo)
	ctx := context.Background()
	_, _ = manager.Load(ctx)

	if err := manager.Advance(ctx, 1000); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if len(repo.saves) != 0 {
		t.Errorf("expected no save, got %v", repo.saves)
	}
}

func TestManagerAdvance_SaveFailureKeepsMemory(t *testing.T) {
	repo := &mockCheckpointRepo{height: 1000}
	manager := NewManager(repo)
	ctx := context.Background()
	_, _ = manager.Load(ctx)

	repo.saveErr = errors.New("write failed")
	err := manager.Advance(ctx, 1050)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if manager.Current() != 1000 {
		t.Errorf("in-memory checkpoint moved to %d without durable save", manager.Current())
	}
}

func TestManagerSetState(t *testing.T) {
	manager := NewManager(&mockCheckpointRepo{})

	var transitions []Transition
	manager.SetStateChangeCallback(func(t Transition) {
		transitions = append(transitions, t)
	})

	if err := manager.SetState(StateActive, "window opened"); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if err := manager.SetState(StateFinished, "window closed"); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	err := manager.SetState(StateActive, "again")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(transitions))
	}
	if transitions[1].From != StateActive || transitions[1].To != StateFinished {
		t.Errorf("unexpected transition: %+v", transitions[1])
	}
	if got := len(manager.GetMetrics().StateHistory); got != 2 {
		t.Errorf("expected 2 transitions in history, got %d", got)
	}
}

func TestManagerGetLag(t *testing.T) {
	manager := NewManager(&mockCheckpointRepo{height: 1000})
	_, _ = manager.Load(context.Background())

	if lag := manager.GetLag(1100); lag != 100 {
		t.Errorf("expected lag 100, got %d", lag)
	}
}

// =============================================================================
// Metrics Tests
// =============================================================================

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector(10)

	now := time.Now()
	for i := 0; i < 5; i++ {
		from := uint64(100 + i*10)
		mc.RecordBatch(from, from+9, now.Add(time.Duration(i)*time.Second))
	}

	metrics := mc.GetMetrics()

	if metrics.BlocksPerSecond < 9 || metrics.BlocksPerSecond > 11 {
		t.Errorf("expected ~10 blocks/sec, got %f", metrics.BlocksPerSecond)
	}
	if metrics.BatchesRecorded != 5 || metrics.LastBatchAt == nil {
		t.Errorf("unexpected batch bookkeeping: %+v", metrics)
	}
}

func TestMetricsCollector_RingBuffer(t *testing.T) {
	mc := NewMetricsCollector(3)
	now := time.Now()
	for i := 0; i < 5; i++ {
		mc.RecordBatch(uint64(i), uint64(i), now)
	}
	if got := mc.GetMetrics().BatchesRecorded; got != 3 {
		t.Errorf("expected ring buffer capped at 3, got %d", got)
	}
}
