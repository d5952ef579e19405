package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/chain"
	"github.com/vietddude/taskwatcher/internal/infra/rpc/provider"
)

// EVMAdapter implements chain.Client over JSON-RPC.
type EVMAdapter struct {
	client provider.Caller
	log    *slog.Logger
}

var _ chain.Client = (*EVMAdapter)(nil)

func NewEVMAdapter(client provider.Caller) *EVMAdapter {
	return &EVMAdapter{
		client: client,
		log:    slog.Default(),
	}
}

// WithLogger sets the adapter's logger.
func (a *EVMAdapter) WithLogger(log *slog.Logger) *EVMAdapter {
	a.log = log
	return a
}

func (a *EVMAdapter) CurrentHeight(ctx context.Context) (uint64, error) {
	raw, err := a.client.CallRaw(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, transportErr("eth_blockNumber", err)
	}

	var height hexutil.Uint64
	if err := json.Unmarshal(raw, &height); err != nil {
		return 0, transportErr("eth_blockNumber", fmt.Errorf("invalid block number response: %w", err))
	}
	return uint64(height), nil
}

type rpcHeader struct {
	Number     hexutil.Uint64 `json:"number"`
	Hash       common.Hash    `json:"hash"`
	ParentHash common.Hash    `json:"parentHash"`
	Timestamp  hexutil.Uint64 `json:"timestamp"`
}

func (a *EVMAdapter) GetBlock(ctx context.Context, height uint64) (*domain.Block, error) {
	params := []any{hexutil.EncodeUint64(height), false}
	raw, err := a.client.CallRaw(ctx, "eth_getBlockByNumber", params)
	if err != nil {
		return nil, transportErr("eth_getBlockByNumber", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("block %d: %w", height, domain.ErrNotFound)
	}

	var header rpcHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, transportErr("eth_getBlockByNumber", fmt.Errorf("invalid block format: %w", err))
	}

	return &domain.Block{
		Number:     uint64(header.Number),
		Hash:       header.Hash.Hex(),
		ParentHash: header.ParentHash.Hex(),
		Timestamp:  uint64(header.Timestamp),
	}, nil
}

func (a *EVMAdapter) BlockTimestamp(ctx context.Context, height uint64) (uint64, error) {
	block, err := a.GetBlock(ctx, height)
	if err != nil {
		return 0, err
	}
	return block.Timestamp, nil
}

func (a *EVMAdapter) GetLogs(
	ctx context.Context,
	contract common.Address,
	sig chain.EventSignature,
	from, to uint64,
) ([]domain.RawEvent, error) {
	filter := map[string]any{
		"address":   contract,
		"fromBlock": hexutil.EncodeUint64(from),
		"toBlock":   hexutil.EncodeUint64(to),
		"topics":    []any{sig.Topic},
	}
	raw, err := a.client.CallRaw(ctx, "eth_getLogs", []any{filter})
	if err != nil {
		return nil, transportErr("eth_getLogs", err)
	}

	var logs []types.Log
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &logs); err != nil {
			return nil, transportErr("eth_getLogs", fmt.Errorf("invalid logs format: %w", err))
		}
	}

	events := make([]domain.RawEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			a.log.Warn("skipping removed log", "tx", l.TxHash.Hex(), "block", l.BlockNumber)
			continue
		}
		events = append(events, domain.RawEvent{
			Contract:    l.Address,
			EventName:   sig.Name,
			BlockNumber: l.BlockNumber,
			LogIndex:    uint64(l.Index),
			TxHash:      l.TxHash,
			Topics:      l.Topics,
			Data:        l.Data,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Before(events[j])
	})
	return events, nil
}

func transportErr(method string, err error) error {
	return fmt.Errorf("%w: %s failed: %w", domain.ErrTransport, method, err)
}
