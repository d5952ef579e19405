package cursor

import (
	"time"
)

// batchRecord holds timing data for a persisted batch.
type batchRecord struct {
	FromBlock   uint64
	ToBlock     uint64
	ProcessedAt time.Time
}

// Metrics holds cursor performance data.
type Metrics struct {
	BlocksPerSecond float64
	BatchesRecorded int
	LastBatchAt     *time.Time
	StateHistory    []Transition
}

// MetricsCollector tracks checkpoint throughput over time.
type MetricsCollector struct {
	windowSize  int           // number of batches to track
	batches     []batchRecord // ring buffer of batch records
	transitions []Transition  // recent state changes
}

// RecordBatch records timing for a persisted batch.
func (mc *MetricsCollector) RecordBatch(fromBlock, toBlock uint64, processedAt time.Time) {
	record := batchRecord{
		FromBlock:   fromBlock,
		ToBlock:     toBlock,
		ProcessedAt: processedAt,
	}

	if len(mc.batches) >= mc.windowSize {
		// Shift elements left, drop oldest
		copy(mc.batches, mc.batches[1:])
		mc.batches[len(mc.batches)-1] = record
	} else {
		mc.batches = append(mc.batches, record)
	}
}

// RecordTransition records a state transition.
func (mc *MetricsCollector) RecordTransition(t Transition) {
	// Keep only last 10 transitions
	if len(mc.transitions) >= 10 {
		copy(mc.transitions, mc.transitions[1:])
		mc.transitions[len(mc.transitions)-1] = t
	} else {
		mc.transitions = append(mc.transitions, t)
	}
}

// GetMetrics returns current metrics.
func (mc *MetricsCollector) GetMetrics() Metrics {
	m := Metrics{
		BatchesRecorded: len(mc.batches),
		StateHistory:    make([]Transition, len(mc.transitions)),
	}
	copy(m.StateHistory, mc.transitions)

	if len(mc.batches) == 0 {
		return m
	}
	last := mc.batches[len(mc.batches)-1]
	lastAt := last.ProcessedAt
	m.LastBatchAt = &lastAt

	// Blocks covered after the first recorded batch, over the elapsed time.
	if len(mc.batches) >= 2 {
		first := mc.batches[0]
		duration := last.ProcessedAt.Sub(first.ProcessedAt)
		if duration > 0 {
			var blocks uint64
			for _, b := range mc.batches[1:] {
				blocks += b.ToBlock - b.FromBlock + 1
			}
			m.BlocksPerSecond = float64(blocks) / duration.Seconds()
		}
	}

	return m
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.batches = mc.batches[:0]
	mc.transitions = mc.transitions[:0]
}
