package xfield

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcfw/fedchain/pkg/cryptography"
)

const testKeyHex = "c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3"

func testPubkey(t *testing.T) AggregatePubkey {
	sk, err := cryptography.NewSecp256k1PrivateKeyFromHex(testKeyHex)
	require.NoError(t, err)

	var a AggregatePubkey
	copy(a[:], sk.Public().Bytes())
	return a
}

func TestRoundTrip(t *testing.T) {
	codecs := []Codec{
		{SizeEncoding: SizeFixed32},
		{SizeEncoding: SizeCompact},
	}

	values := []XField{
		None{},
		testPubkey(t),
		MaxBlockSize(MinMaxBlockSize),
		MaxBlockSize(500000),
		MaxBlockSize(MaxMaxBlockSize),
		Unknown{Kind: 3, Payload: []byte{0xde, 0xad}},
		Unknown{Kind: 255, Payload: bytes.Repeat([]byte{1}, 300)},
	}

	for _, c := range codecs {
		for _, x := range values {
			typ, payload := c.Encode(x)
			assert.Equal(t, x.Type(), typ)

			got, err := c.Decode(typ, payload)
			require.NoError(t, err, "%s %s", c.SizeEncoding, x.Type())
			assert.Equal(t, x, got)

			var buf bytes.Buffer
			require.NoError(t, c.WritePayload(&buf, typ, payload))

			framed, err := c.ReadPayload(&buf, typ)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(payload, framed))
			assert.Zero(t, buf.Len())
		}
	}
}

func TestDecodeNone(t *testing.T) {
	_, err := Decode(TypeNone, []byte{0})
	assert.True(t, errors.Is(err, ErrInvalidXField))
}

func TestDecodeAggPubkey(t *testing.T) {
	key := testPubkey(t)

	tests := map[string][]byte{
		"short":        key[:32],
		"long":         append(key[:], 0),
		"uncompressed": append([]byte{0x04}, key[1:]...),
		"not on curve": mustHex("020000000000000000000000000000000000000000000000000000000000000000"),
	}

	for name, payload := range tests {
		_, err := Decode(TypeAggPubkey, payload)
		assert.True(t, errors.Is(err, ErrAggPubkeyInvalid), name)
	}

	parsed, err := ParseAggregatePubkey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestDecodeMaxBlockSize(t *testing.T) {
	_, payload := Encode(MaxBlockSize(100))
	_, err := Decode(TypeMaxBlockSize, payload)
	assert.True(t, errors.Is(err, ErrInvalidMaxBlockSize))

	_, payload = Encode(MaxBlockSize(MaxMaxBlockSize + 1))
	_, err = Decode(TypeMaxBlockSize, payload)
	assert.True(t, errors.Is(err, ErrInvalidMaxBlockSize))

	_, err = Decode(TypeMaxBlockSize, []byte{0x20, 0xa1, 0x07})
	assert.True(t, errors.Is(err, ErrInvalidMaxBlockSize))

	x, err := Decode(TypeMaxBlockSize, []byte{0x20, 0xa1, 0x07, 0x00})
	require.NoError(t, err)
	assert.Equal(t, MaxBlockSize(500000), x)

	compact := Codec{SizeEncoding: SizeCompact}
	_, err = compact.Decode(TypeMaxBlockSize, []byte{0xfe, 0x20, 0xa1, 0x07, 0x00, 0x00})
	assert.True(t, errors.Is(err, ErrInvalidMaxBlockSize), "trailing bytes")
}

func TestDecodeUnknown(t *testing.T) {
	x, err := Decode(Type(7), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, Unknown{Kind: 7, Payload: []byte{1, 2, 3}}, x)
	assert.False(t, x.Type().Known())

	strict := Codec{
		SizeEncoding: SizeFixed32,
		Unknown: func(t Type, b []byte) error {
			if len(b) > 2 {
				return errors.New("too long")
			}
			return nil
		},
	}

	_, err = strict.Decode(Type(7), []byte{1, 2, 3})
	assert.True(t, errors.Is(err, ErrInvalidXField))
}

func TestWarning(t *testing.T) {
	w := Warning(Type(3), MaxBlockSize(1))
	assert.Equal(t, "Warning: Unknown xfieldType [3] was found in block [1]. Node software may not be up to date.", w)
}

func TestParseSizeEncoding(t *testing.T) {
	e, err := ParseSizeEncoding("compact")
	require.NoError(t, err)
	assert.Equal(t, SizeCompact, e)

	e, err = ParseSizeEncoding("")
	require.NoError(t, err)
	assert.Equal(t, SizeFixed32, e)

	_, err = ParseSizeEncoding("varint")
	assert.Error(t, err)
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestUnknownPayloadLimit(t *testing.T) {
	c := DefaultCodec

	at := bytes.Repeat([]byte{7}, maxUnknownPayload)
	over := append(at, 7)

	var buf bytes.Buffer
	require.NoError(t, c.WritePayload(&buf, 9, at))
	framed, err := c.ReadPayload(&buf, 9)
	require.NoError(t, err)
	assert.Len(t, framed, maxUnknownPayload)

	buf.Reset()
	err = c.WritePayload(&buf, 9, over)
	assert.True(t, errors.Is(err, ErrInvalidXField))
	assert.Zero(t, buf.Len())

	_, err = c.Decode(9, over)
	assert.True(t, errors.Is(err, ErrInvalidXField))
}
