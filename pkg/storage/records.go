package storage

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/vmihailenco/msgpack/v5"
)

type BlockState uint8

const (
	// BlockStateStored blocks passed header checks but are not on the active chain.
	BlockStateStored BlockState = iota + 1
	BlockStateConnected
	BlockStateInvalid
)

func (s BlockState) String() string {
	switch s {
	case BlockStateStored:
		return "stored"
	case BlockStateConnected:
		return "connected"
	case BlockStateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

type BlockRecord struct {
	ID     block.Hash `msgpack:"i"`
	Height uint32     `msgpack:"h"`
	Seq    uint64     `msgpack:"q"`
	State  BlockState `msgpack:"s"`
	Raw    []byte     `msgpack:"r"`
}

// UndoRecord captures the change log delta a connected block introduced so
// it can be reverted when the block is disconnected.
type UndoRecord struct {
	Height          uint32 `msgpack:"h"`
	AggPubkey       []byte `msgpack:"a,omitempty"`
	MaxBlockSize    uint32 `msgpack:"m,omitempty"`
	HasMaxBlockSize bool   `msgpack:"M,omitempty"`
}

// Federation reports whether the block introduced a new aggregate pubkey.
func (u *UndoRecord) Federation() bool {
	return len(u.AggPubkey) != 0
}

func marshal(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling record")
	}
	return b, nil
}

func unmarshal(d []byte, v interface{}) error {
	if err := msgpack.Unmarshal(d, v); err != nil {
		return errors.Wrap(err, "unmarshalling record")
	}
	return nil
}

func sortRecords(recs []*BlockRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Height != recs[j].Height {
			return recs[i].Height < recs[j].Height
		}
		return recs[i].Seq < recs[j].Seq
	})
}
