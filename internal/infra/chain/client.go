package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vietddude/taskwatcher/internal/core/domain"
)

// EventSignature identifies an event by its canonical signature, e.g.
// "Deposit(address,address,address,uint256)".
type EventSignature struct {
	Name  string
	Topic common.Hash
}

// NewEventSignature hashes a canonical event signature into its topic.
func NewEventSignature(name, canonical string) EventSignature {
	return EventSignature{
		Name:  name,
		Topic: crypto.Keccak256Hash([]byte(canonical)),
	}
}

// Client is the read-only view of the chain the watcher depends on.
// Implementations do not retry; the scheduler retries on its next cycle.
type Client interface {
	// CurrentHeight returns the latest block number on the chain
	CurrentHeight(ctx context.Context) (uint64, error)

	// BlockTimestamp returns the block's timestamp in unix seconds. A block
	// that does not exist yet yields an error wrapping domain.ErrNotFound.
	BlockTimestamp(ctx context.Context, height uint64) (uint64, error)

	// GetBlock fetches a block header by number
	GetBlock(ctx context.Context, height uint64) (*domain.Block, error)

	// GetLogs returns logs emitted by contract whose first topic is sig,
	// within [from, to], ordered by (block, log index).
	GetLogs(
		ctx context.Context,
		contract common.Address,
		sig EventSignature,
		from, to uint64,
	) ([]domain.RawEvent, error)
}
