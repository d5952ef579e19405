package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RawEvent is an undecoded log entry emitted by one of the tracked contracts.
type RawEvent struct {
	Contract    common.Address
	EventName   string
	BlockNumber uint64
	LogIndex    uint64
	TxHash      common.Hash
	Topics      []common.Hash
	Data        []byte
}

// Before reports whether e sorts before o in (block, log index) order.
func (e RawEvent) Before(o RawEvent) bool {
	if e.BlockNumber != o.BlockNumber {
		return e.BlockNumber < o.BlockNumber
	}
	return e.LogIndex < o.LogIndex
}

type EventKind string

const (
	EventKindStake   EventKind = "stake"
	EventKindSwap    EventKind = "swap"
	EventKindDeposit EventKind = "deposit"
)

// EventKinds lists the tracked kinds in processing order.
var EventKinds = []EventKind{EventKindStake, EventKindSwap, EventKindDeposit}

// DecodedEvent is a closed union over the three tracked event shapes.
// Exactly one payload matching Kind is non-nil.
type DecodedEvent struct {
	Kind    EventKind
	Raw     RawEvent
	Stake   *StakeEvent
	Swap    *SwapEvent
	Deposit *DepositEvent
}

// StakeEvent is StakeBTC2JoinStakePlan on the BTCB staking contract.
type StakeEvent struct {
	StakeIndex  *big.Int
	PlanID      *big.Int
	User        common.Address
	BTCContract common.Address
	StakeAmount *big.Int
	StBTCAmount *big.Int
}

// SwapEvent is the pair contract's Swap event.
type SwapEvent struct {
	Sender       common.Address
	Recipient    common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

// DepositEvent is the restaking contract's Deposit event.
type DepositEvent struct {
	Staker   common.Address
	Token    common.Address
	Strategy common.Address
	Shares   *big.Int
}
