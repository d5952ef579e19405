package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/indexing/metrics"
)

// EventPipeline turns the logs of a block range into credits.
type EventPipeline struct {
	cfg PipelineConfig
	log *slog.Logger
}

var _ Processor = (*EventPipeline)(nil)

// NewEventPipeline validates cfg and creates a pipeline.
func NewEventPipeline(cfg PipelineConfig) (*EventPipeline, error) {
	var missing []string
	if cfg.Chain == nil {
		missing = append(missing, "chain")
	}
	if cfg.Decoder == nil {
		missing = append(missing, "decoder")
	}
	if cfg.Ledger == nil {
		missing = append(missing, "ledger")
	}
	if cfg.Notifier == nil {
		missing = append(missing, "notifier")
	}
	if cfg.Thresholds.Stake == nil || cfg.Thresholds.Swap == nil || cfg.Thresholds.Deposit == nil {
		missing = append(missing, "thresholds")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline config missing %v", missing)
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &EventPipeline{cfg: cfg, log: log}, nil
}

// Process fetches, decodes and credits the events of [from, to], kind by
// kind in a fixed order. It returns the number of newly issued credits.
// A fetch or ledger error aborts the range; notification errors do not.
func (p *EventPipeline) Process(ctx context.Context, from, to uint64) (int, error) {
	issued := 0
	for _, kind := range domain.EventKinds {
		n, err := p.processKind(ctx, kind, from, to)
		issued += n
		if err != nil {
			return issued, err
		}
	}
	return issued, nil
}

func (p *EventPipeline) processKind(ctx context.Context, kind domain.EventKind, from, to uint64) (int, error) {
	contract := p.contractFor(kind)
	sig := p.cfg.Decoder.Signature(kind)

	raws, err := p.cfg.Chain.GetLogs(ctx, contract, sig, from, to)
	if err != nil {
		return 0, fmt.Errorf("get %s logs of %s in [%d, %d]: %w", kind, contract.Hex(), from, to, err)
	}

	issued := 0
	for _, raw := range raws {
		ev, err := p.cfg.Decoder.Decode(kind, raw)
		if err != nil {
			metrics.DecodeFailures.WithLabelValues(string(kind)).Inc()
			p.log.Warn("Skipping undecodable log",
				"kind", kind,
				"tx", raw.TxHash.Hex(),
				"block", raw.BlockNumber,
				"log_index", raw.LogIndex,
				"error", err,
			)
			continue
		}
		metrics.EventsTotal.WithLabelValues(string(kind)).Inc()

		user, ok := p.eligible(ev)
		if !ok {
			p.log.Debug("Event not eligible",
				"kind", kind,
				"tx", raw.TxHash.Hex(),
				"block", raw.BlockNumber,
			)
			continue
		}

		inserted, err := p.credit(ctx, user, domain.TaskFor(kind))
		if err != nil {
			return issued, fmt.Errorf("credit %s for %s event in block %d: %w",
				user.Hex(), kind, raw.BlockNumber, err)
		}
		if inserted {
			issued++
		}
	}
	return issued, nil
}

// credit records the task for user and notifies when the record is new.
func (p *EventPipeline) credit(ctx context.Context, user common.Address, task domain.TaskID) (bool, error) {
	addr := user.Hex()
	res, err := p.cfg.Ledger.InsertIfAbsent(ctx, addr, task)
	if err != nil {
		return false, err
	}
	if res == domain.AlreadyExisted {
		p.log.Debug("Task already credited", "address", addr, "task", int(task))
		return false, nil
	}

	metrics.CreditsIssued.WithLabelValues(strconv.Itoa(int(task))).Inc()
	p.log.Info("Task credited", "address", addr, "task", int(task))

	payload := domain.NotificationPayload{
		TaskID:    task,
		Timestamp: p.cfg.Clock().Unix(),
		Address:   addr,
	}
	if err := p.cfg.Notifier.Notify(ctx, payload); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		level := slog.LevelWarn
		if !errors.Is(err, domain.ErrNotification) {
			level = slog.LevelError
		}
		p.log.Log(ctx, level, "Notification failed",
			"address", addr,
			"task", int(task),
			"error", err,
		)
		return true, nil
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return true, nil
}

// eligible applies the per-kind predicate and returns the user to credit.
func (p *EventPipeline) eligible(ev *domain.DecodedEvent) (common.Address, bool) {
	t := p.cfg.Thresholds
	switch ev.Kind {
	case domain.EventKindStake:
		return ev.Stake.User, ev.Stake.StBTCAmount.Cmp(t.Stake) >= 0
	case domain.EventKindSwap:
		// amount1 < 0 means tokens left the pool toward the user.
		if ev.Swap.Amount1.Sign() >= 0 {
			return ev.Swap.Sender, false
		}
		out := new(big.Int).Neg(ev.Swap.Amount1)
		return ev.Swap.Sender, out.Cmp(t.Swap) >= 0
	case domain.EventKindDeposit:
		if ev.Deposit.Token != p.cfg.Contracts.TrackedToken {
			return ev.Deposit.Staker, false
		}
		return ev.Deposit.Staker, ev.Deposit.Shares.Cmp(t.Deposit) >= 0
	default:
		return common.Address{}, false
	}
}

func (p *EventPipeline) contractFor(kind domain.EventKind) common.Address {
	switch kind {
	case domain.EventKindStake:
		return p.cfg.Contracts.Stake
	case domain.EventKindSwap:
		return p.cfg.Contracts.SwapPair
	default:
		return p.cfg.Contracts.Deposit
	}
}
