// Package cursor tracks how far the watcher has scanned and which phase of
// the campaign window it is in.
//
// # Purpose
//
// The cursor is the restart boundary of the watcher:
//   - Checkpoint: the last block fully processed (inclusive)
//   - State: WAITING_FOR_WINDOW_START, ACTIVE or FINISHED
//
// # Key Features
//
// Monotonic Checkpoint - Advance never moves backwards. Advancing to a lower
// block returns ErrRegression and persists nothing; advancing to the current
// block is a no-op.
//
// Durable Before Success - Advance returns only after the backing store has
// persisted the value. After a crash, scanning resumes strictly after the
// last saved block.
//
// State Machine - Only allows valid transitions:
//
//	WAITING → ACTIVE → FINISHED (valid)
//	WAITING → FINISHED         (valid, window already over)
//	FINISHED → anything        (invalid, terminal)
//
// # Quick Start
//
//	manager := cursor.NewManager(checkpointRepo)
//	start, _ := manager.Load(ctx)
//
//	manager.SetState(cursor.StateActive, "window opened")
//	manager.Advance(ctx, 1100) // ✓ persisted
//	manager.Advance(ctx, 1050) // ✗ ErrRegression
//
// # Package Structure
//
//   - state.go   - State machine definitions and valid transitions
//   - manager.go - Manager implementation with monotonic advance
//   - metrics.go - Throughput metrics (blocks/sec, state history)
package cursor

import (
	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

// State constants re-exported for convenience.
const (
	StateWaiting  = domain.StateWaiting
	StateActive   = domain.StateActive
	StateFinished = domain.StateFinished
)

// NewManager creates a new cursor manager over the given checkpoint store.
// The manager starts in StateWaiting with checkpoint 0 until Load is called.
func NewManager(repo storage.CheckpointRepository) *DefaultManager {
	return &DefaultManager{
		repo:    repo,
		state:   StateWaiting,
		metrics: NewMetricsCollector(100),
	}
}

// NewMetricsCollector creates a new metrics collector with the given window size.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &MetricsCollector{
		windowSize:  windowSize,
		batches:     make([]batchRecord, 0, windowSize),
		transitions: make([]Transition, 0, 10),
	}
}
