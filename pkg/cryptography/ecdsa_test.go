package cryptography

import (
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3"

func testDigest() []byte {
	d := make([]byte, 32)
	for i := range d {
		d[i] = byte(i)
	}
	return d
}

func TestParseCompressedPubkey(t *testing.T) {
	sk, err := NewSecp256k1PrivateKeyFromHex(testKeyHex)
	require.NoError(t, err)

	b := sk.Public().Bytes()
	require.Len(t, b, CompressedPubkeyLen)

	pk, err := ParseCompressedPubkey(b)
	require.NoError(t, err)
	assert.Equal(t, b, pk.Bytes())

	// uncompressed prefix
	bad := append([]byte{0x04}, b[1:]...)
	_, err = ParseCompressedPubkey(bad)
	assert.True(t, errors.Is(err, ErrPubkeyFormat))

	_, err = ParseCompressedPubkey(b[:32])
	assert.True(t, errors.Is(err, ErrPubkeyFormat))

	// secp256k1 has no point with x = 0
	notOnCurve, _ := hex.DecodeString("020000000000000000000000000000000000000000000000000000000000000000")
	_, err = ParseCompressedPubkey(notOnCurve)
	assert.True(t, errors.Is(err, ErrPubkeyNotOnCurve))
}

func TestSignDERVerifies(t *testing.T) {
	sk, err := NewSecp256k1PrivateKeyFromHex(testKeyHex)
	require.NoError(t, err)

	pk, err := sk.Public().Verifier()
	require.NoError(t, err)

	digest := testDigest()

	s0 := sk.SignDER(digest, 0)
	s1 := sk.SignDER(digest, 1)
	assert.NotEqual(t, s0, s1)

	for _, s := range [][]byte{s0, s1} {
		sig, err := ParseCanonicalSignature(s)
		require.NoError(t, err)
		assert.True(t, sig.Verify(digest, pk))
	}
}

func TestParseCanonicalSignatureRejectsHighS(t *testing.T) {
	sk, err := NewSecp256k1PrivateKeyFromHex(testKeyHex)
	require.NoError(t, err)

	der := sk.SignDER(testDigest(), 0)
	sig, err := ParseCanonicalSignature(der)
	require.NoError(t, err)

	r := sig.R()
	s := sig.S()
	s.Negate()

	highS := encodeDER(&r, &s)
	_, err = ParseCanonicalSignature(highS)
	assert.True(t, errors.Is(err, ErrSignatureEncoding))

	_, err = ParseCanonicalSignature(append(der, 0x01))
	assert.True(t, errors.Is(err, ErrSignatureEncoding))
}

// encodeDER serializes r and s without normalizing s.
func encodeDER(r, s *secp256k1.ModNScalar) []byte {
	canon := func(v *secp256k1.ModNScalar) []byte {
		b := v.Bytes()
		i := 0
		for i < len(b)-1 && b[i] == 0 && b[i+1]&0x80 == 0 {
			i++
		}
		out := b[i:]
		if out[0]&0x80 != 0 {
			out = append([]byte{0}, out...)
		}
		return out
	}

	rb, sb := canon(r), canon(s)
	der := []byte{0x30, byte(4 + len(rb) + len(sb)), 0x02, byte(len(rb))}
	der = append(der, rb...)
	der = append(der, 0x02, byte(len(sb)))
	return append(der, sb...)
}
