package xfield

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/cryptography"
	"github.com/tcfw/fedchain/pkg/wire"
)

// SizeEncoding versions the byte layout of a MaxBlockSize payload.
type SizeEncoding uint8

const (
	// SizeFixed32 encodes the size as 4 little-endian bytes.
	SizeFixed32 SizeEncoding = iota + 1
	// SizeCompact encodes the size as a CompactSize integer.
	SizeCompact
)

const (
	// maxUnknownPayload bounds opaque xfield payloads.
	maxUnknownPayload = 0x10000
)

func (e SizeEncoding) String() string {
	switch e {
	case SizeFixed32:
		return "fixed32"
	case SizeCompact:
		return "compact"
	default:
		return "invalid"
	}
}

func ParseSizeEncoding(s string) (SizeEncoding, error) {
	switch s {
	case "", "fixed32":
		return SizeFixed32, nil
	case "compact":
		return SizeCompact, nil
	default:
		return 0, errors.Errorf("unknown max block size encoding %q", s)
	}
}

type Codec struct {
	SizeEncoding SizeEncoding
	Unknown      UnknownPolicy
}

var DefaultCodec = Codec{SizeEncoding: SizeFixed32}

func Decode(t Type, payload []byte) (XField, error) {
	return DefaultCodec.Decode(t, payload)
}

func Encode(x XField) (Type, []byte) {
	return DefaultCodec.Encode(x)
}

// Decode interprets payload according to t. Known types are fully
// validated; unknown types are only handed to the codec's UnknownPolicy.
func (c Codec) Decode(t Type, payload []byte) (XField, error) {
	switch t {
	case TypeNone:
		if len(payload) != 0 {
			return nil, errors.Wrapf(ErrInvalidXField, "type %d carries %d payload bytes", t, len(payload))
		}
		return None{}, nil

	case TypeAggPubkey:
		if _, err := cryptography.ParseCompressedPubkey(payload); err != nil {
			return nil, errors.Wrap(ErrAggPubkeyInvalid, err.Error())
		}
		var a AggregatePubkey
		copy(a[:], payload)
		return a, nil

	case TypeMaxBlockSize:
		v, err := c.decodeSize(payload)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidMaxBlockSize, err.Error())
		}
		if v < MinMaxBlockSize || v > MaxMaxBlockSize {
			return nil, errors.Wrapf(ErrInvalidMaxBlockSize, "%d outside [%d, %d]", v, MinMaxBlockSize, MaxMaxBlockSize)
		}
		return MaxBlockSize(v), nil

	default:
		if len(payload) > maxUnknownPayload {
			return nil, errors.Wrapf(ErrInvalidXField, "type %d payload is %d bytes, limit %d", t, len(payload), maxUnknownPayload)
		}
		if c.Unknown != nil {
			if err := c.Unknown(t, payload); err != nil {
				return nil, errors.Wrapf(ErrInvalidXField, "type %d: %s", t, err)
			}
		}
		return Unknown{Kind: t, Payload: append([]byte(nil), payload...)}, nil
	}
}

func (c Codec) Encode(x XField) (Type, []byte) {
	switch v := x.(type) {
	case None:
		return TypeNone, nil
	case AggregatePubkey:
		return TypeAggPubkey, append([]byte(nil), v[:]...)
	case MaxBlockSize:
		return TypeMaxBlockSize, c.encodeSize(uint64(v))
	case Unknown:
		return v.Kind, append([]byte(nil), v.Payload...)
	default:
		return TypeNone, nil
	}
}

func (c Codec) decodeSize(payload []byte) (uint64, error) {
	switch c.SizeEncoding {
	case SizeCompact:
		r := bytes.NewReader(payload)
		v, err := wire.ReadCompactSize(r)
		if err != nil {
			return 0, err
		}
		if r.Len() != 0 {
			return 0, errors.Errorf("%d trailing bytes", r.Len())
		}
		return v, nil
	default:
		if len(payload) != 4 {
			return 0, errors.Errorf("expected 4 bytes, got %d", len(payload))
		}
		return uint64(binary.LittleEndian.Uint32(payload)), nil
	}
}

func (c Codec) encodeSize(v uint64) []byte {
	switch c.SizeEncoding {
	case SizeCompact:
		var buf bytes.Buffer
		wire.WriteCompactSize(&buf, v)
		return buf.Bytes()
	default:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return b
	}
}

// WritePayload frames payload on the wire for type t.
func (c Codec) WritePayload(w io.Writer, t Type, payload []byte) error {
	switch t {
	case TypeNone:
		return nil
	case TypeAggPubkey:
		if len(payload) != AggPubkeyLen {
			return errors.Wrapf(ErrAggPubkeyInvalid, "payload is %d bytes", len(payload))
		}
		_, err := w.Write(payload)
		return err
	case TypeMaxBlockSize:
		if c.SizeEncoding == SizeFixed32 && len(payload) != 4 {
			return errors.Wrapf(ErrInvalidMaxBlockSize, "payload is %d bytes", len(payload))
		}
		_, err := w.Write(payload)
		return err
	default:
		if len(payload) > maxUnknownPayload {
			return errors.Wrapf(ErrInvalidXField, "type %d payload is %d bytes, limit %d", t, len(payload), maxUnknownPayload)
		}
		return wire.WriteVarBytes(w, payload)
	}
}

// ReadPayload reads the framed payload of type t without interpreting it.
func (c Codec) ReadPayload(r io.Reader, t Type) ([]byte, error) {
	switch t {
	case TypeNone:
		return nil, nil
	case TypeAggPubkey:
		b := make([]byte, AggPubkeyLen)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		return b, nil
	case TypeMaxBlockSize:
		if c.SizeEncoding == SizeCompact {
			v, err := wire.ReadCompactSize(r)
			if err != nil {
				return nil, err
			}
			var buf bytes.Buffer
			wire.WriteCompactSize(&buf, v)
			return buf.Bytes(), nil
		}
		b := make([]byte, 4)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return wire.ReadVarBytes(r, maxUnknownPayload)
	}
}
