package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/taskwatcher/internal/core/cursor"
	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/indexing/metrics"
)

// Scheduler drives the window state machine and the per-cycle batch loop.
// It is single-threaded; Status may be called from other goroutines.
type Scheduler struct {
	cfg  SchedulerConfig
	log  *slog.Logger
	stop chan struct{}

	running  atomic.Bool
	loaded   bool
	stopOnce sync.Once

	mu     sync.RWMutex
	status Status
}

var _ Indexer = (*Scheduler)(nil)

// NewScheduler validates cfg and creates a scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Chain == nil || cfg.Resolver == nil || cfg.Pipeline == nil || cfg.Cursor == nil {
		return nil, errors.New("scheduler config requires chain, resolver, pipeline and cursor")
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > DefaultBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Scheduler{
		cfg:  cfg,
		log:  log,
		stop: make(chan struct{}),
	}
	s.status.Window = cfg.Window
	s.status.State = cfg.Cursor.State()

	cfg.Cursor.SetStateChangeCallback(func(t cursor.Transition) {
		setStateGauge(t.To)
		s.log.Info("Scheduler state changed",
			"from", t.From,
			"to", t.To,
			"reason", t.Reason,
		)
	})
	setStateGauge(s.status.State)

	return s, nil
}

// Run loops until the window is finished, ctx is cancelled or Stop is
// called. Cycle errors are logged and retried on the next cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}
	defer s.running.Store(false)

	if err := s.load(ctx); err != nil {
		return err
	}

	for {
		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.CycleErrors.Inc()
			s.log.Error("Cycle failed", "error", err)
		}

		if s.cfg.Cursor.State() == cursor.StateFinished {
			s.log.Info("Tracking window finished", "checkpoint", s.cfg.Cursor.Current())
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// Stop asks Run to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()

	st.State = s.cfg.Cursor.State()
	st.Checkpoint = s.cfg.Cursor.Current()
	if st.Head > 0 {
		st.Lag = s.cfg.Cursor.GetLag(st.Head)
	}
	st.BlocksPerSecond = s.cfg.Cursor.GetMetrics().BlocksPerSecond
	return st
}

func (s *Scheduler) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	checkpoint, err := s.cfg.Cursor.Load(ctx)
	if err != nil {
		return err
	}
	s.loaded = true
	metrics.CheckpointBlock.Set(float64(checkpoint))
	s.log.Info("Starting to process events",
		"checkpoint", checkpoint,
		"window_start", s.cfg.Window.Start,
		"window_end", s.cfg.Window.End,
	)
	return nil
}

// RunCycle executes one polling cycle. Nothing is persisted unless the
// whole cycle succeeds.
func (s *Scheduler) RunCycle(ctx context.Context) (err error) {
	if err := s.load(ctx); err != nil {
		return err
	}
	if s.cfg.Cursor.State() == cursor.StateFinished {
		return nil
	}

	log := s.log.With("cycle", uuid.NewString())
	defer func() { s.recordCycle(err) }()

	head, err := s.cfg.Chain.CurrentHeight(ctx)
	if err != nil {
		return fmt.Errorf("get head: %w", err)
	}
	s.setHead(head)
	metrics.ChainLatestBlock.Set(float64(head))

	if s.cfg.Cursor.State() == cursor.StateWaiting {
		if err := s.checkWindowStart(ctx, log, head); err != nil {
			return err
		}
		if s.cfg.Cursor.State() != cursor.StateActive {
			return nil
		}
	}

	return s.processBatch(ctx, log, head)
}

// checkWindowStart moves out of WAITING once the window has opened.
func (s *Scheduler) checkWindowStart(ctx context.Context, log *slog.Logger, head uint64) error {
	w := s.cfg.Window
	checkpoint := s.cfg.Cursor.Current()

	tsCheckpoint, err := s.cfg.Chain.BlockTimestamp(ctx, checkpoint)
	if err != nil {
		return fmt.Errorf("timestamp of checkpoint %d: %w", checkpoint, err)
	}

	switch cursor.StateAt(w, tsCheckpoint) {
	case cursor.StateFinished:
		return s.cfg.Cursor.SetState(cursor.StateFinished, "checkpoint is past window end")
	case cursor.StateActive:
		return s.cfg.Cursor.SetState(cursor.StateActive, "checkpoint is inside window")
	}

	tsHead, err := s.cfg.Chain.BlockTimestamp(ctx, head)
	if err != nil {
		return fmt.Errorf("timestamp of head %d: %w", head, err)
	}
	if tsHead <= w.Start {
		log.Info("Start time not reached", "start", w.Start, "head", head, "head_time", tsHead)
		return nil
	}

	start, err := s.cfg.Resolver.Resolve(ctx, checkpoint, w.Start)
	if err != nil {
		return fmt.Errorf("resolve window start: %w", err)
	}
	if start > checkpoint {
		if err := s.cfg.Cursor.Advance(ctx, start-1); err != nil {
			return fmt.Errorf("jump to window start %d: %w", start, err)
		}
		metrics.CheckpointBlock.Set(float64(start - 1))
	}
	log.Info("Window opened", "start_block", start, "checkpoint", s.cfg.Cursor.Current())
	return s.cfg.Cursor.SetState(cursor.StateActive, "window start crossed")
}

// processBatch handles the next batch of at most BatchSize blocks.
func (s *Scheduler) processBatch(ctx context.Context, log *slog.Logger, head uint64) error {
	checkpoint := s.cfg.Cursor.Current()
	if head <= checkpoint {
		return nil
	}

	from := checkpoint + 1
	to := min(head, from+s.cfg.BatchSize-1)

	final, to, err := s.clampToWindowEnd(ctx, log, from, to, head)
	if err != nil {
		return fmt.Errorf("clamp [%d, %d] to window end: %w", from, to, err)
	}
	if from > to {
		log.Info("No blocks left inside window", "from", from)
		return s.cfg.Cursor.SetState(cursor.StateFinished, "window end reached")
	}

	issued, err := s.cfg.Pipeline.Process(ctx, from, to)
	s.addCredits(issued)
	if err != nil {
		return fmt.Errorf("process [%d, %d]: %w", from, to, err)
	}

	if err := s.cfg.Cursor.Advance(ctx, to); err != nil {
		return fmt.Errorf("save checkpoint %d: %w", to, err)
	}
	metrics.CheckpointBlock.Set(float64(to))
	log.Info("Processed blocks", "from", from, "to", to, "credits", issued)

	if final {
		return s.cfg.Cursor.SetState(cursor.StateFinished, "window end reached")
	}
	return nil
}

// clampToWindowEnd cuts [from, to] at the last block with timestamp <= End.
// A block past End only closes the window when the block after it is past
// End too; a lone out-of-order timestamp is kept inside the window.
func (s *Scheduler) clampToWindowEnd(ctx context.Context, log *slog.Logger, from, to, head uint64) (bool, uint64, error) {
	end := s.cfg.Window.End

	tsTo, err := s.cfg.Chain.BlockTimestamp(ctx, to)
	if err != nil {
		return false, to, err
	}
	if tsTo <= end {
		return false, to, nil
	}

	lower := from
	for {
		past, err := s.cfg.Resolver.Resolve(ctx, lower, end+1)
		if err != nil {
			return false, to, err
		}
		if past > to {
			log.Warn("Timestamp past window end is out of order", "block", to, "time", tsTo, "end", end)
			return false, to, nil
		}
		if past >= head {
			return true, past - 1, nil
		}

		tsNext, err := s.cfg.Chain.BlockTimestamp(ctx, past+1)
		if err != nil {
			return false, to, err
		}
		if tsNext > end {
			return true, past - 1, nil
		}
		log.Warn("Timestamp past window end is out of order", "block", past, "next_time", tsNext, "end", end)
		lower = past + 1
	}
}

func (s *Scheduler) setHead(head uint64) {
	s.mu.Lock()
	s.status.Head = head
	s.mu.Unlock()
}

func (s *Scheduler) addCredits(n int) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.status.CreditsIssued += int64(n)
	s.mu.Unlock()
}

func (s *Scheduler) recordCycle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastCycleAt = time.Now()
	if err != nil {
		s.status.LastError = err.Error()
	} else {
		s.status.LastError = ""
	}
}

func setStateGauge(current domain.SchedulerState) {
	for _, st := range []domain.SchedulerState{cursor.StateWaiting, cursor.StateActive, cursor.StateFinished} {
		v := 0.0
		if st == current {
			v = 1
		}
		metrics.SchedulerState.WithLabelValues(string(st)).Set(v)
	}
}
