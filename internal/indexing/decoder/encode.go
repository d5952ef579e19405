package decoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/taskwatcher/internal/core/domain"
)

// EncodeLog builds the raw log an event of kind with the given field values
// would produce. It is the inverse of Decode and backs fixtures and replay
// tooling.
func (d *Decoder) EncodeLog(
	kind domain.EventKind,
	contract common.Address,
	fields map[string]any,
) (domain.RawEvent, error) {
	ev, ok := d.events[kind]
	if !ok {
		return domain.RawEvent{}, fmt.Errorf("unknown event kind %q", kind)
	}

	topics := []common.Hash{ev.ID}
	var data []any
	for _, arg := range ev.Inputs {
		v, ok := fields[arg.Name]
		if !ok {
			return domain.RawEvent{}, fmt.Errorf("missing field %s", arg.Name)
		}
		if !arg.Indexed {
			data = append(data, v)
			continue
		}
		switch t := v.(type) {
		case common.Address:
			topics = append(topics, common.BytesToHash(t.Bytes()))
		case *big.Int:
			topics = append(topics, common.BigToHash(t))
		default:
			return domain.RawEvent{}, fmt.Errorf("unsupported indexed type %T for %s", v, arg.Name)
		}
	}

	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return domain.RawEvent{}, fmt.Errorf("pack %s: %w", ev.Name, err)
	}

	return domain.RawEvent{
		Contract:  contract,
		EventName: ev.RawName,
		Topics:    topics,
		Data:      packed,
	}, nil
}
