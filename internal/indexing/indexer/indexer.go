package indexer

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/taskwatcher/internal/core/cursor"
	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/indexing/decoder"
	"github.com/vietddude/taskwatcher/internal/indexing/notifier"
	"github.com/vietddude/taskwatcher/internal/infra/chain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

// DefaultBatchSize is the maximum number of blocks fetched per cycle.
const DefaultBatchSize = 100

// DefaultPollInterval is the delay between cycles.
const DefaultPollInterval = 10 * time.Second

// Indexer is the main loop that drives the watcher.
type Indexer interface {
	// Run polls until the window is finished or ctx is cancelled
	Run(ctx context.Context) error

	// Stop asks a running loop to return after the current cycle
	Stop()

	// Status returns a snapshot of the loop's progress
	Status() Status
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State           cursor.State      `json:"state"`
	Checkpoint      uint64            `json:"checkpoint"`
	Head            uint64            `json:"head"`
	Lag             int64             `json:"lag"`
	Window          domain.TimeWindow `json:"window"`
	LastCycleAt     time.Time         `json:"last_cycle_at"`
	LastError       string            `json:"last_error,omitempty"`
	CreditsIssued   int64             `json:"credits_issued"`
	BlocksPerSecond float64           `json:"blocks_per_second"`
}

// Contracts holds the tracked contract addresses.
type Contracts struct {
	Stake        common.Address
	SwapPair     common.Address
	Deposit      common.Address
	TrackedToken common.Address
}

// Thresholds holds the minimum amount per task, in token smallest units.
type Thresholds struct {
	Stake   *big.Int
	Swap    *big.Int
	Deposit *big.Int
}

// PipelineConfig holds the event pipeline's collaborators.
type PipelineConfig struct {
	Chain      chain.Client
	Decoder    *decoder.Decoder
	Ledger     storage.CreditLedger
	Notifier   notifier.Notifier
	Contracts  Contracts
	Thresholds Thresholds
	Clock      func() time.Time
	Logger     *slog.Logger
}

// SchedulerConfig holds the polling loop's collaborators.
type SchedulerConfig struct {
	Chain        chain.Client
	Resolver     BoundaryResolver
	Pipeline     Processor
	Cursor       cursor.Manager
	Window       domain.TimeWindow
	BatchSize    uint64
	PollInterval time.Duration
	Logger       *slog.Logger
}

// BoundaryResolver maps a timestamp to the first block at or after it.
type BoundaryResolver interface {
	Resolve(ctx context.Context, lower, target uint64) (uint64, error)
}

// Processor handles one inclusive block range.
type Processor interface {
	Process(ctx context.Context, from, to uint64) (int, error)
}
