// Package decoder turns raw logs of the three tracked events into typed
// domain events using the contracts' ABIs.
package decoder

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/chain"
)

// ErrMalformed is returned for logs whose topics or data do not match the
// event's ABI.
var ErrMalformed = errors.New("malformed event")

// Decoder holds the parsed event ABIs.
type Decoder struct {
	events map[domain.EventKind]abi.Event
}

// New parses the embedded event ABIs.
func New() (*Decoder, error) {
	sources := map[domain.EventKind]struct {
		json string
		name string
	}{
		domain.EventKindStake:   {stakeABI, "StakeBTC2JoinStakePlan"},
		domain.EventKindSwap:    {swapABI, "Swap"},
		domain.EventKindDeposit: {depositABI, "Deposit"},
	}

	d := &Decoder{events: make(map[domain.EventKind]abi.Event, len(sources))}
	for kind, src := range sources {
		parsed, err := abi.JSON(strings.NewReader(src.json))
		if err != nil {
			return nil, fmt.Errorf("parse %s abi: %w", kind, err)
		}
		ev, ok := parsed.Events[src.name]
		if !ok {
			return nil, fmt.Errorf("event %s missing from %s abi", src.name, kind)
		}
		d.events[kind] = ev
	}
	return d, nil
}

// Signature returns the log filter signature for kind.
func (d *Decoder) Signature(kind domain.EventKind) chain.EventSignature {
	ev := d.events[kind]
	return chain.NewEventSignature(ev.RawName, ev.Sig)
}

// Decode decodes raw as an event of the given kind.
func (d *Decoder) Decode(kind domain.EventKind, raw domain.RawEvent) (*domain.DecodedEvent, error) {
	ev, ok := d.events[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event kind %q", ErrMalformed, kind)
	}

	values, err := unpack(ev, raw)
	if err != nil {
		return nil, err
	}

	out := &domain.DecodedEvent{Kind: kind, Raw: raw}
	switch kind {
	case domain.EventKindStake:
		out.Stake = &domain.StakeEvent{}
		err = firstErr(
			bigField(values, "stakeIndex", &out.Stake.StakeIndex),
			bigField(values, "planId", &out.Stake.PlanID),
			addrField(values, "user", &out.Stake.User),
			addrField(values, "btcContractAddress", &out.Stake.BTCContract),
			bigField(values, "stakeAmount", &out.Stake.StakeAmount),
			bigField(values, "stBTCAmount", &out.Stake.StBTCAmount),
		)
	case domain.EventKindSwap:
		out.Swap = &domain.SwapEvent{}
		var tick *big.Int
		err = firstErr(
			addrField(values, "sender", &out.Swap.Sender),
			addrField(values, "recipient", &out.Swap.Recipient),
			bigField(values, "amount0", &out.Swap.Amount0),
			bigField(values, "amount1", &out.Swap.Amount1),
			bigField(values, "sqrtPriceX96", &out.Swap.SqrtPriceX96),
			bigField(values, "liquidity", &out.Swap.Liquidity),
			bigField(values, "tick", &tick),
		)
		if err == nil {
			out.Swap.Tick = int32(tick.Int64())
		}
	case domain.EventKindDeposit:
		out.Deposit = &domain.DepositEvent{}
		err = firstErr(
			addrField(values, "staker", &out.Deposit.Staker),
			addrField(values, "token", &out.Deposit.Token),
			addrField(values, "strategy", &out.Deposit.Strategy),
			bigField(values, "shares", &out.Deposit.Shares),
		)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func unpack(ev abi.Event, raw domain.RawEvent) (map[string]any, error) {
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	if len(raw.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("%w: %s expects %d topics, got %d",
			ErrMalformed, ev.Name, len(indexed)+1, len(raw.Topics))
	}
	if raw.Topics[0] != ev.ID {
		return nil, fmt.Errorf("%w: topic %s is not %s", ErrMalformed, raw.Topics[0].Hex(), ev.Name)
	}

	// Every tracked field is a static type occupying one word.
	nonIndexed := ev.Inputs.NonIndexed()
	if want := 32 * len(nonIndexed); len(raw.Data) != want {
		return nil, fmt.Errorf("%w: %s expects %d data bytes, got %d",
			ErrMalformed, ev.Name, want, len(raw.Data))
	}

	values := make(map[string]any, len(ev.Inputs))
	if err := nonIndexed.UnpackIntoMap(values, raw.Data); err != nil {
		return nil, fmt.Errorf("%w: %s data: %w", ErrMalformed, ev.Name, err)
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexed, raw.Topics[1:]); err != nil {
			return nil, fmt.Errorf("%w: %s topics: %w", ErrMalformed, ev.Name, err)
		}
	}
	return values, nil
}

func bigField(values map[string]any, name string, dst **big.Int) error {
	v, ok := values[name].(*big.Int)
	if !ok || v == nil {
		return fmt.Errorf("%w: field %s is %T, want *big.Int", ErrMalformed, name, values[name])
	}
	*dst = v
	return nil
}

func addrField(values map[string]any, name string, dst *common.Address) error {
	v, ok := values[name].(common.Address)
	if !ok {
		return fmt.Errorf("%w: field %s is %T, want address", ErrMalformed, name, values[name])
	}
	*dst = v
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
