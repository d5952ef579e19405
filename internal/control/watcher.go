package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/taskwatcher/internal/core/config"
	"github.com/vietddude/taskwatcher/internal/core/cursor"
	"github.com/vietddude/taskwatcher/internal/indexing/blocktime"
	"github.com/vietddude/taskwatcher/internal/indexing/decoder"
	"github.com/vietddude/taskwatcher/internal/indexing/health"
	"github.com/vietddude/taskwatcher/internal/indexing/indexer"
	"github.com/vietddude/taskwatcher/internal/indexing/notifier"
	"github.com/vietddude/taskwatcher/internal/indexing/throttle"
	"github.com/vietddude/taskwatcher/internal/infra/chain/evm"
	"github.com/vietddude/taskwatcher/internal/infra/rpc/provider"
)

// Watcher is the main application struct that manages the scheduler lifecycle.
type Watcher struct {
	cfg          *config.AppConfig
	stores       *Stores
	rpc          *provider.HTTPProvider
	scheduler    *indexer.Scheduler
	healthServer *health.Server
	log          *slog.Logger
}

// NewWatcher creates a new Watcher with all dependencies initialized.
func NewWatcher(ctx context.Context, cfg *config.AppConfig) (*Watcher, error) {
	log := slog.Default()

	stake, swap, deposit, err := cfg.Tasks.Thresholds()
	if err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rpc := provider.NewHTTPProvider("rpc", cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
	client := throttle.NewHeadCache(
		evm.NewEVMAdapter(rpc).WithLogger(log.With("component", "chain")),
		cfg.Scheduler.HeadCacheTTL,
	)

	dec, err := decoder.New()
	if err != nil {
		_ = stores.Close(ctx)
		return nil, fmt.Errorf("failed to load event abis: %w", err)
	}

	var notify notifier.Notifier
	if cfg.Notifier.DryRun {
		notify = notifier.NewLogNotifier(log.With("component", "notifier"))
	} else {
		notify = notifier.NewWebhookNotifier(notifier.WebhookConfig{
			URL:     cfg.Notifier.URL,
			Token:   cfg.Notifier.Token,
			Timeout: cfg.Notifier.Timeout,
		}, log.With("component", "notifier"))
	}

	pipeline, err := indexer.NewEventPipeline(indexer.PipelineConfig{
		Chain:    client,
		Decoder:  dec,
		Ledger:   stores.Ledger,
		Notifier: notify,
		Contracts: indexer.Contracts{
			Stake:        common.HexToAddress(cfg.Contracts.Stake),
			SwapPair:     common.HexToAddress(cfg.Contracts.SwapPair),
			Deposit:      common.HexToAddress(cfg.Contracts.Deposit),
			TrackedToken: common.HexToAddress(cfg.Contracts.TrackedToken),
		},
		Thresholds: indexer.Thresholds{Stake: stake, Swap: swap, Deposit: deposit},
		Logger:     log.With("component", "pipeline"),
	})
	if err != nil {
		_ = stores.Close(ctx)
		return nil, err
	}

	scheduler, err := indexer.NewScheduler(indexer.SchedulerConfig{
		Chain:        client,
		Resolver:     blocktime.NewResolver(client, cfg.Scheduler.LinearBracket, log.With("component", "blocktime")),
		Pipeline:     pipeline,
		Cursor:       cursor.NewManager(stores.Checkpoint),
		Window:       cfg.Window,
		BatchSize:    cfg.Scheduler.BatchSize,
		PollInterval: cfg.Scheduler.PollInterval,
		Logger:       log.With("component", "scheduler"),
	})
	if err != nil {
		_ = stores.Close(ctx)
		return nil, err
	}

	w := &Watcher{
		cfg:       cfg,
		stores:    stores,
		rpc:       rpc,
		scheduler: scheduler,
		log:       log,
	}
	if cfg.Server.Enabled {
		monitor := health.NewMonitor(scheduler, rpc, stores.Ledger)
		w.healthServer = health.NewServer(monitor, cfg.Server.Port, log.With("component", "health"))
	}
	return w, nil
}

// Scheduler returns the polling loop.
func (w *Watcher) Scheduler() *indexer.Scheduler {
	return w.scheduler
}

// Run blocks until the tracking window is finished or ctx is cancelled.
// The health server, when enabled, runs alongside and stops with the loop.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if db := w.stores.DB(); db != nil {
		db.StartMetricsCollector(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return w.scheduler.Run(gctx)
	})
	if w.healthServer != nil {
		g.Go(func() error {
			return w.healthServer.Run(gctx)
		})
	}

	err := g.Wait()
	st := w.scheduler.Status()
	w.log.Info("Watcher stopped",
		"state", st.State,
		"checkpoint", st.Checkpoint,
		"credits", st.CreditsIssued,
	)
	return err
}

// Close releases the RPC client and storage connections.
func (w *Watcher) Close(ctx context.Context) error {
	w.scheduler.Stop()
	_ = w.rpc.Close()
	return w.stores.Close(ctx)
}

// IsFinished reports whether the tracking window has been fully processed.
func (w *Watcher) IsFinished() bool {
	return w.scheduler.Status().State == cursor.StateFinished
}
