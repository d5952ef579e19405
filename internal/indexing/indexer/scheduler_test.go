package indexer

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/taskwatcher/internal/core/cursor"
	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/indexing/blocktime"
	"github.com/vietddude/taskwatcher/internal/infra/storage/memory"
)

// countingRepo counts checkpoint saves.
type countingRepo struct {
	*memory.CheckpointRepo
	saves atomic.Int32
}

func (r *countingRepo) Save(ctx context.Context, height uint64) error {
	r.saves.Add(1)
	return r.CheckpointRepo.Save(ctx, height)
}

type schedulerFixture struct {
	chain     *fakeChain
	logs      *logBuilder
	ledger    *memory.CreditRepo
	notifier  *recordingNotifier
	repo      *countingRepo
	cursor    *cursor.DefaultManager
	scheduler *Scheduler
}

// newSchedulerFixture builds a 500-block chain where block h has timestamp
// 1000 + 10h, with the checkpoint pre-seeded to checkpoint.
func newSchedulerFixture(t *testing.T, window domain.TimeWindow, checkpoint uint64) *schedulerFixture {
	t.Helper()
	store := memory.NewMemoryStorage()
	cp := memory.NewCheckpointRepo(store)
	require.NoError(t, cp.Save(context.Background(), checkpoint))

	f := &schedulerFixture{
		chain:    newFakeChain(500, 1_000, 10),
		logs:     newLogBuilder(t),
		ledger:   memory.NewCreditRepo(store),
		notifier: &recordingNotifier{},
		repo:     &countingRepo{CheckpointRepo: cp},
	}
	f.cursor = cursor.NewManager(f.repo)

	pipeline, err := NewEventPipeline(PipelineConfig{
		Chain:      f.chain,
		Decoder:    f.logs.dec,
		Ledger:     f.ledger,
		Notifier:   f.notifier,
		Contracts:  testContracts(),
		Thresholds: testThresholds(),
	})
	require.NoError(t, err)

	f.scheduler, err = NewScheduler(SchedulerConfig{
		Chain:        f.chain,
		Resolver:     blocktime.NewResolver(f.chain, 0, nil),
		Pipeline:     pipeline,
		Cursor:       f.cursor,
		Window:       window,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return f
}

func (f *schedulerFixture) cycle(t *testing.T) {
	t.Helper()
	require.NoError(t, f.scheduler.RunCycle(context.Background()))
}

func TestScheduler_WindowNotYetOpen(t *testing.T) {
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 50_000, End: 60_000}, 0)

	f.cycle(t)
	f.cycle(t)

	assert.Equal(t, cursor.StateWaiting, f.cursor.State())
	assert.Empty(t, f.chain.ranges())
	assert.Equal(t, int32(0), f.repo.saves.Load())
	assert.Equal(t, uint64(0), f.cursor.Current())
}

func TestScheduler_WindowAlreadyClosed(t *testing.T) {
	// Checkpoint 40 has timestamp 1400, past the window end.
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 1_000, End: 1_200}, 40)

	f.cycle(t)

	assert.Equal(t, cursor.StateFinished, f.cursor.State())
	assert.Empty(t, f.chain.ranges())
	assert.Equal(t, int32(0), f.repo.saves.Load())

	// Further cycles do nothing.
	f.cycle(t)
	assert.Empty(t, f.chain.ranges())
}

func TestScheduler_JumpsToWindowStart(t *testing.T) {
	tests := []struct {
		name      string
		start     uint64
		wantJump  uint64
		wantFirst uint64
	}{
		{name: "start on a block", start: 2_000, wantJump: 99, wantFirst: 100},
		{name: "start between blocks", start: 2_005, wantJump: 100, wantFirst: 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSchedulerFixture(t, domain.TimeWindow{Start: tt.start, End: 1_000_000}, 0)

			f.cycle(t)

			assert.Equal(t, cursor.StateActive, f.cursor.State())
			ranges := f.chain.ranges()
			require.NotEmpty(t, ranges)
			for _, r := range ranges {
				assert.Equal(t, tt.wantFirst, r.from)
				assert.Equal(t, tt.wantFirst+DefaultBatchSize-1, r.to)
			}
			// One save for the jump, one for the batch.
			assert.Equal(t, int32(2), f.repo.saves.Load())
			assert.Equal(t, tt.wantFirst+DefaultBatchSize-1, f.cursor.Current())

			saved, err := f.repo.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, f.cursor.Current(), saved)
			assert.Greater(t, f.cursor.Current(), tt.wantJump)
		})
	}
}

func TestScheduler_OpensWhenHeadCrossesStart(t *testing.T) {
	// Head 499 has timestamp 5990.
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 6_000, End: 1_000_000}, 0)

	f.cycle(t)
	assert.Equal(t, cursor.StateWaiting, f.cursor.State())
	assert.Empty(t, f.chain.ranges())

	f.chain.extend(5, 10)
	f.cycle(t)

	assert.Equal(t, cursor.StateActive, f.cursor.State())
	ranges := f.chain.ranges()
	require.NotEmpty(t, ranges)
	assert.Equal(t, uint64(500), ranges[0].from)
	assert.Equal(t, uint64(504), ranges[0].to)
	assert.Equal(t, uint64(504), f.cursor.Current())
}

func TestScheduler_BatchesAreCappedAndContiguous(t *testing.T) {
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 0, End: 1_000_000}, 0)

	for i := 0; i < 8; i++ {
		f.cycle(t)
	}

	assert.Equal(t, uint64(499), f.cursor.Current())
	assert.Equal(t, cursor.StateActive, f.cursor.State())

	next := uint64(1)
	for _, r := range f.chain.ranges() {
		if r.contract != stakeContract {
			continue
		}
		assert.LessOrEqual(t, r.to-r.from+1, uint64(DefaultBatchSize))
		assert.Equal(t, next, r.from)
		next = r.to + 1
	}
	assert.Equal(t, uint64(500), next)
}

func TestScheduler_ClampsToWindowEnd(t *testing.T) {
	tests := []struct {
		name string
		end  uint64
	}{
		// Block 150 has timestamp exactly 2500.
		{name: "end on a block", end: 2_500},
		// Block 151 has timestamp 2510, past the end.
		{name: "end between blocks", end: 2_505},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSchedulerFixture(t, domain.TimeWindow{Start: 2_000, End: tt.end}, 0)

			f.cycle(t)

			assert.Equal(t, cursor.StateFinished, f.cursor.State())
			assert.Equal(t, uint64(150), f.cursor.Current())
			for _, r := range f.chain.ranges() {
				assert.Equal(t, uint64(100), r.from)
				assert.Equal(t, uint64(150), r.to)
			}
		})
	}
}

func TestScheduler_FinishesWhenNoBlockLeftInWindow(t *testing.T) {
	// Checkpoint 150 (ts 2500) is inside the window but block 151 (ts 2510)
	// is already past its end.
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 1_000, End: 2_505}, 150)

	f.cycle(t)

	assert.Equal(t, cursor.StateFinished, f.cursor.State())
	assert.Empty(t, f.chain.ranges())
	assert.Equal(t, uint64(150), f.cursor.Current())
	assert.Equal(t, int32(0), f.repo.saves.Load())
}

func TestScheduler_FailedCycleKeepsCheckpoint(t *testing.T) {
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 0, End: 1_000_000}, 0)
	f.chain.logsErr = fmt.Errorf("%w: connection refused", domain.ErrTransport)

	err := f.scheduler.RunCycle(context.Background())
	require.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, uint64(0), f.cursor.Current())
	assert.Equal(t, int32(0), f.repo.saves.Load())
	assert.NotEmpty(t, f.scheduler.Status().LastError)

	f.chain.logsErr = nil
	f.cycle(t)
	assert.Equal(t, uint64(100), f.cursor.Current())
	assert.Empty(t, f.scheduler.Status().LastError)

	// The failed range is retried from the same block.
	ranges := f.chain.ranges()
	assert.Equal(t, uint64(1), ranges[0].from)
	assert.Equal(t, uint64(1), ranges[len(ranges)-1].from)
}

func TestScheduler_RunCreditsWindowAndStops(t *testing.T) {
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 2_000, End: 2_500}, 0)
	f.chain.logs = append(f.chain.logs,
		// Before the window.
		f.logs.stake(50, userDEF, threshold),
		// Inside the window.
		f.logs.stake(120, userABC, threshold),
		// After the window.
		f.logs.swap(200, userDEF, neg(threshold)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.scheduler.Run(ctx))

	assert.Equal(t, cursor.StateFinished, f.cursor.State())

	records, err := f.ledger.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, userABC.Hex(), records[0].UserAddress)
	assert.Equal(t, domain.TaskStake, records[0].TaskID)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.TaskStake, sent[0].TaskID)
	assert.Equal(t, userABC.Hex(), sent[0].Address)

	st := f.scheduler.Status()
	assert.Equal(t, cursor.StateFinished, st.State)
	assert.Equal(t, uint64(150), st.Checkpoint)
	assert.Equal(t, uint64(499), st.Head)
	assert.Equal(t, int64(1), st.CreditsIssued)
}

func TestScheduler_StopEndsRun(t *testing.T) {
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 50_000, End: 60_000}, 0)

	done := make(chan error, 1)
	go func() { done <- f.scheduler.Run(context.Background()) }()

	f.scheduler.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Equal(t, cursor.StateWaiting, f.cursor.State())
}

func TestNewScheduler_RejectsInvalidWindow(t *testing.T) {
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 0, End: 1}, 0)
	_, err := NewScheduler(SchedulerConfig{
		Chain:    f.chain,
		Resolver: blocktime.NewResolver(f.chain, 0, nil),
		Pipeline: f.scheduler.cfg.Pipeline,
		Cursor:   f.cursor,
		Window:   domain.TimeWindow{Start: 10, End: 5},
	})
	require.Error(t, err)
}

func TestNewScheduler_RejectsOversizedBatch(t *testing.T) {
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 0, End: 1}, 0)
	cfg := SchedulerConfig{
		Chain:     f.chain,
		Resolver:  blocktime.NewResolver(f.chain, 0, nil),
		Pipeline:  f.scheduler.cfg.Pipeline,
		Cursor:    f.cursor,
		Window:    domain.TimeWindow{Start: 0, End: 1_000_000},
		BatchSize: 500,
	}

	_, err := NewScheduler(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch size 500 exceeds 100")

	cfg.BatchSize = DefaultBatchSize
	s, err := NewScheduler(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultBatchSize), s.cfg.BatchSize)
}

func TestScheduler_OutOfOrderTimestampDoesNotEndWindow(t *testing.T) {
	// End 3500 is block 250. Block 200 reports a timestamp past the end
	// while its neighbours are still inside the window.
	f := newSchedulerFixture(t, domain.TimeWindow{Start: 2_000, End: 3_500}, 100)
	f.chain.timestamps[200] = 3_505
	f.chain.logs = append(f.chain.logs, f.logs.stake(230, userABC, threshold))

	f.cycle(t)
	assert.Equal(t, cursor.StateActive, f.cursor.State())
	assert.Equal(t, uint64(200), f.cursor.Current())

	f.cycle(t)
	assert.Equal(t, cursor.StateFinished, f.cursor.State())
	assert.Equal(t, uint64(250), f.cursor.Current())

	var stakeRanges []logRange
	for _, r := range f.chain.ranges() {
		if r.contract == stakeContract {
			stakeRanges = append(stakeRanges, r)
		}
	}
	require.Len(t, stakeRanges, 2)
	assert.Equal(t, logRange{contract: stakeContract, from: 101, to: 200}, stakeRanges[0])
	assert.Equal(t, logRange{contract: stakeContract, from: 201, to: 250}, stakeRanges[1])
	require.Len(t, f.notifier.sent(), 1)
}
