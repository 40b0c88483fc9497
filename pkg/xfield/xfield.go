// Package xfield implements the typed header extension carried by every
// block. Known types change federation parameters; unknown types are carried
// as opaque bytes so older nodes keep following the chain.
package xfield

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/cryptography"
)

type Type uint8

const (
	TypeNone Type = iota
	TypeAggPubkey
	TypeMaxBlockSize
)

const (
	// MinMaxBlockSize is the smallest block size limit an xfield may set.
	MinMaxBlockSize = 1000

	// MaxMaxBlockSize keeps the limit under the 4MB P2P message cap.
	MaxMaxBlockSize = 3999500

	AggPubkeyLen = cryptography.CompressedPubkeyLen
)

var (
	ErrInvalidXField       = errors.New("invalid xfield")
	ErrAggPubkeyInvalid    = errors.New("aggregate pubkey is uncompressed or invalid")
	ErrInvalidMaxBlockSize = errors.New("invalid max block size")
)

func (t Type) Known() bool {
	return t <= TypeMaxBlockSize
}

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeAggPubkey:
		return "aggpubkey"
	case TypeMaxBlockSize:
		return "maxblocksize"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// XField is one of None, AggregatePubkey, MaxBlockSize or Unknown.
type XField interface {
	Type() Type
	String() string

	xfield()
}

type None struct{}

func (None) Type() Type     { return TypeNone }
func (None) String() string { return "" }
func (None) xfield()        {}

type AggregatePubkey [AggPubkeyLen]byte

func (AggregatePubkey) Type() Type { return TypeAggPubkey }
func (AggregatePubkey) xfield()    {}

func (a AggregatePubkey) String() string {
	return hex.EncodeToString(a[:])
}

// ParseAggregatePubkey decodes a hex encoded compressed pubkey and checks it
// is a point on the curve.
func ParseAggregatePubkey(h string) (AggregatePubkey, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return AggregatePubkey{}, errors.Wrap(ErrAggPubkeyInvalid, err.Error())
	}

	xf, err := Decode(TypeAggPubkey, b)
	if err != nil {
		return AggregatePubkey{}, err
	}

	return xf.(AggregatePubkey), nil
}

type MaxBlockSize uint32

func (MaxBlockSize) Type() Type { return TypeMaxBlockSize }
func (MaxBlockSize) xfield()    {}

func (m MaxBlockSize) String() string {
	return strconv.FormatUint(uint64(m), 10)
}

// Unknown holds an xfield of a type this node does not interpret.
type Unknown struct {
	Kind    Type
	Payload []byte
}

func (u Unknown) Type() Type { return u.Kind }
func (Unknown) xfield()      {}

func (u Unknown) String() string {
	return hex.EncodeToString(u.Payload)
}

// UnknownPolicy judges the semantics of an unrecognised xfield type. A nil
// policy accepts everything that is structurally valid.
type UnknownPolicy func(Type, []byte) error

// Warning is the advisory surfaced to operators when a block carrying an
// unrecognised xfield type is accepted.
func Warning(t Type, blockHash fmt.Stringer) string {
	return fmt.Sprintf("Warning: Unknown xfieldType [%d] was found in block [%s]. Node software may not be up to date.", uint8(t), blockHash)
}
