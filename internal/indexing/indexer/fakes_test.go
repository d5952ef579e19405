package indexer

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/indexing/decoder"
	"github.com/vietddude/taskwatcher/internal/infra/chain"
)

var (
	stakeContract   = common.HexToAddress("0x0000000000000000000000000000000000005a4e")
	pairContract    = common.HexToAddress("0x0000000000000000000000000000000000000a1b")
	depositContract = common.HexToAddress("0x0000000000000000000000000000000000000de9")
	stBTC           = common.HexToAddress("0x00000000000000000000000000000000000057b7")
	otherToken      = common.HexToAddress("0x0000000000000000000000000000000000000bad")

	userABC = common.HexToAddress("0xABC")
	userDEF = common.HexToAddress("0xDEF")

	threshold = big.NewInt(200_000_000_000_000)
)

type logRange struct {
	contract common.Address
	from, to uint64
}

// fakeChain serves block timestamps from a slice and logs from a list.
type fakeChain struct {
	mu         sync.Mutex
	timestamps []uint64
	logs       []domain.RawEvent
	getLogs    []logRange
	logsErr    error
}

// newFakeChain creates n blocks where block h has timestamp base + h*step.
func newFakeChain(n int, base, step uint64) *fakeChain {
	ts := make([]uint64, n)
	for i := range ts {
		ts[i] = base + uint64(i)*step
	}
	return &fakeChain{timestamps: ts}
}

var _ chain.Client = (*fakeChain)(nil)

func (f *fakeChain) CurrentHeight(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.timestamps) - 1), nil
}

func (f *fakeChain) BlockTimestamp(ctx context.Context, height uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if height >= uint64(len(f.timestamps)) {
		return 0, fmt.Errorf("block %d: %w", height, domain.ErrNotFound)
	}
	return f.timestamps[height], nil
}

func (f *fakeChain) GetBlock(ctx context.Context, height uint64) (*domain.Block, error) {
	ts, err := f.BlockTimestamp(ctx, height)
	if err != nil {
		return nil, err
	}
	return &domain.Block{Number: height, Timestamp: ts}, nil
}

func (f *fakeChain) GetLogs(
	ctx context.Context,
	contract common.Address,
	sig chain.EventSignature,
	from, to uint64,
) ([]domain.RawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getLogs = append(f.getLogs, logRange{contract: contract, from: from, to: to})
	if f.logsErr != nil {
		return nil, f.logsErr
	}

	var out []domain.RawEvent
	for _, l := range f.logs {
		if l.Contract != contract || len(l.Topics) == 0 || l.Topics[0] != sig.Topic {
			continue
		}
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// extend appends n blocks continuing the timestamp series.
func (f *fakeChain) extend(n int, step uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	last := f.timestamps[len(f.timestamps)-1]
	for i := 1; i <= n; i++ {
		f.timestamps = append(f.timestamps, last+uint64(i)*step)
	}
}

func (f *fakeChain) ranges() []logRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logRange(nil), f.getLogs...)
}

// recordingNotifier captures payloads and optionally fails.
type recordingNotifier struct {
	mu       sync.Mutex
	payloads []domain.NotificationPayload
	err      error
}

func (n *recordingNotifier) Notify(ctx context.Context, payload domain.NotificationPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	return n.err
}

func (n *recordingNotifier) sent() []domain.NotificationPayload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.NotificationPayload(nil), n.payloads...)
}

// failingLedger returns err from every insert.
type failingLedger struct{ err error }

func (l failingLedger) InsertIfAbsent(context.Context, string, domain.TaskID) (domain.InsertResult, error) {
	return 0, l.err
}

func (l failingLedger) List(context.Context, *domain.TaskID) ([]domain.CreditRecord, error) {
	return nil, nil
}

func (l failingLedger) Count(context.Context) (int64, error) { return 0, nil }

type logBuilder struct {
	t   *testing.T
	dec *decoder.Decoder
}

func newLogBuilder(t *testing.T) *logBuilder {
	t.Helper()
	dec, err := decoder.New()
	require.NoError(t, err)
	return &logBuilder{t: t, dec: dec}
}

func (b *logBuilder) build(kind domain.EventKind, contract common.Address, block, index uint64, fields map[string]any) domain.RawEvent {
	b.t.Helper()
	raw, err := b.dec.EncodeLog(kind, contract, fields)
	require.NoError(b.t, err)
	raw.BlockNumber = block
	raw.LogIndex = index
	raw.TxHash = common.BigToHash(new(big.Int).SetUint64(block<<16 | index))
	return raw
}

func (b *logBuilder) stake(block uint64, user common.Address, stBTCAmount *big.Int) domain.RawEvent {
	return b.build(domain.EventKindStake, stakeContract, block, 0, map[string]any{
		"stakeIndex":         big.NewInt(1),
		"planId":             big.NewInt(1),
		"user":               user,
		"btcContractAddress": otherToken,
		"stakeAmount":        big.NewInt(1),
		"stBTCAmount":        stBTCAmount,
	})
}

func (b *logBuilder) swap(block uint64, sender common.Address, amount1 *big.Int) domain.RawEvent {
	return b.build(domain.EventKindSwap, pairContract, block, 1, map[string]any{
		"sender":             sender,
		"recipient":          sender,
		"amount0":            big.NewInt(1),
		"amount1":            amount1,
		"sqrtPriceX96":       big.NewInt(1),
		"liquidity":          big.NewInt(1),
		"tick":               big.NewInt(0),
		"protocolFeesToken0": big.NewInt(0),
		"protocolFeesToken1": big.NewInt(0),
	})
}

func (b *logBuilder) deposit(block uint64, staker, token common.Address, shares *big.Int) domain.RawEvent {
	return b.build(domain.EventKindDeposit, depositContract, block, 2, map[string]any{
		"staker":   staker,
		"token":    token,
		"strategy": otherToken,
		"shares":   shares,
	})
}

func testContracts() Contracts {
	return Contracts{
		Stake:        stakeContract,
		SwapPair:     pairContract,
		Deposit:      depositContract,
		TrackedToken: stBTC,
	}
}

func testThresholds() Thresholds {
	return Thresholds{Stake: threshold, Swap: threshold, Deposit: threshold}
}

func minus(n *big.Int, d int64) *big.Int {
	return new(big.Int).Sub(n, big.NewInt(d))
}

func neg(n *big.Int) *big.Int {
	return new(big.Int).Neg(n)
}
