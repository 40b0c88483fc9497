package signature

import (
	"context"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/cryptography"
	"github.com/tcfw/fedchain/pkg/xfield"
)

const (
	keyHex      = "c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3"
	otherKeyHex = "0000000000000000000000000000000000000000000000000000000000000001"
)

func testKey(t *testing.T, h string) (*cryptography.Secp256k1PrivateKey, xfield.AggregatePubkey) {
	sk, err := cryptography.NewSecp256k1PrivateKeyFromHex(h)
	require.NoError(t, err)

	var agg xfield.AggregatePubkey
	copy(agg[:], sk.Public().Bytes())

	return sk, agg
}

func testBlock() *block.Block {
	txs := [][]byte{[]byte("coinbase")}
	return &block.Block{
		Header: block.Header{
			Version:        1,
			HashPrevBlock:  block.Hash256([]byte("prev")),
			HashMerkleRoot: block.MerkleRoot(txs),
			Time:           1600000000,
		},
		Txs: txs,
	}
}

func sign(t *testing.T, sk *cryptography.Secp256k1PrivateKey, b *block.Block, iter uint32) []byte {
	digest, err := b.Header.SigHash(xfield.DefaultCodec)
	require.NoError(t, err)
	return sk.SignDER(digest[:], iter)
}

func newVerifier(t *testing.T, threshold int) *Verifier {
	cfg := DefaultConfig()
	cfg.Threshold = threshold
	v, err := NewVerifier(cfg)
	require.NoError(t, err)
	return v
}

func TestVerifyThreshold(t *testing.T) {
	sk, agg := testKey(t, keyHex)
	other, _ := testKey(t, otherKeyHex)

	b := testBlock()
	s0, s1, s2 := sign(t, sk, b, 0), sign(t, sk, b, 1), sign(t, sk, b, 2)
	bad := sign(t, other, b, 0)
	corrupt := append([]byte(nil), s0...)
	corrupt[10] ^= 0xff

	v := newVerifier(t, 2)

	tests := []struct {
		name  string
		proof [][]byte
		want  bool
	}{
		{"empty", nil, false},
		{"one", [][]byte{s0}, false},
		{"two", [][]byte{s0, s1}, true},
		{"duplicate counted once", [][]byte{s0, s0}, false},
		{"invalid interspersed", [][]byte{bad, s0, corrupt, s2}, true},
		{"only invalid", [][]byte{bad, corrupt, {0x30}}, false},
	}

	for _, tt := range tests {
		b.Header.Proof = tt.proof
		ok, err := v.Verify(&b.Header, agg, 2)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, tt.name)
	}
}

// the decision depends only on the count of valid signatures, never on their
// position among invalid ones
func TestVerifyThresholdOrderIndependent(t *testing.T) {
	sk, agg := testKey(t, keyHex)
	other, _ := testKey(t, otherKeyHex)

	b := testBlock()
	v := newVerifier(t, 3)
	rnd := rand.New(rand.NewSource(1))

	for round := 0; round < 20; round++ {
		valid := rnd.Intn(5)
		invalid := rnd.Intn(5)

		proof := [][]byte{}
		for i := 0; i < valid; i++ {
			proof = append(proof, sign(t, sk, b, uint32(i)))
		}
		for i := 0; i < invalid; i++ {
			proof = append(proof, sign(t, other, b, uint32(i)))
		}
		rnd.Shuffle(len(proof), func(i, j int) { proof[i], proof[j] = proof[j], proof[i] })

		b.Header.Proof = proof
		ok, err := v.Verify(&b.Header, agg, 3)
		require.NoError(t, err)
		assert.Equal(t, valid >= 3, ok, "valid=%d invalid=%d", valid, invalid)
	}
}

func TestVerifyInvalidKey(t *testing.T) {
	v := newVerifier(t, 1)

	var key xfield.AggregatePubkey
	key[0] = 0x02

	_, err := v.Verify(&testBlock().Header, key, 1)
	assert.True(t, errors.Is(err, ErrInvalidAggPubkey))
}

func TestCombineScenario(t *testing.T) {
	sk, agg := testKey(t, keyHex)

	b := testBlock()
	s0, s1 := sign(t, sk, b, 0), sign(t, sk, b, 1)
	corrupt := append([]byte(nil), sign(t, sk, b, 2)...)
	corrupt[len(corrupt)-1] ^= 0x01

	inLen, err := b.Size(xfield.DefaultCodec)
	require.NoError(t, err)

	v := newVerifier(t, 1)
	res, err := v.Combine(context.Background(), b, [][]byte{s0, corrupt, s1}, agg)
	require.NoError(t, err)

	assert.True(t, res.Complete)
	assert.Contains(t, res.Warning, hex.EncodeToString(corrupt))
	assert.NotContains(t, res.Warning, hex.EncodeToString(s0))
	assert.Equal(t, [][]byte{s0, s1}, res.Block.Header.Proof)

	outLen, err := res.Block.Size(xfield.DefaultCodec)
	require.NoError(t, err)
	assert.Equal(t, inLen+1+len(s0)+1+len(s1), outLen)

	// the input block is untouched
	assert.Empty(t, b.Header.Proof)
	assert.Equal(t, b.Hash(xfield.DefaultCodec), res.Block.Hash(xfield.DefaultCodec))
}

func TestCombineIncomplete(t *testing.T) {
	sk, agg := testKey(t, keyHex)
	other, _ := testKey(t, otherKeyHex)

	b := testBlock()
	v := newVerifier(t, 2)

	res, err := v.Combine(context.Background(), b, [][]byte{sign(t, sk, b, 0), sign(t, other, b, 0)}, agg)
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Len(t, res.Block.Header.Proof, 1)
	assert.NotEmpty(t, res.Warning)

	// a second round completes the proof, ignoring the repeated signature
	res, err = v.Combine(context.Background(), res.Block, [][]byte{sign(t, sk, b, 0), sign(t, sk, b, 1)}, agg)
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Len(t, res.Block.Header.Proof, 2)
	assert.Empty(t, res.Warning)
}

func TestCombineNonCanonical(t *testing.T) {
	sk, agg := testKey(t, keyHex)
	b := testBlock()

	padded := append(sign(t, sk, b, 0), 0x00)

	v := newVerifier(t, 1)
	res, err := v.Combine(context.Background(), b, [][]byte{padded}, agg)
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Empty(t, res.Block.Header.Proof)
	assert.Contains(t, res.Warning, hex.EncodeToString(padded))
	assert.Contains(t, res.Warning, "not canonical")
}

func TestCombineArgs(t *testing.T) {
	_, agg := testKey(t, keyHex)
	v := newVerifier(t, 1)

	_, err := v.Combine(context.Background(), testBlock(), nil, agg)
	assert.Equal(t, ErrEmptySignatures, err)

	sigs := make([][]byte, DefaultMaxSignatures+1)
	_, err = v.Combine(context.Background(), testBlock(), sigs, agg)
	assert.True(t, errors.Is(err, ErrTooManySignatures))
	assert.Contains(t, err.Error(), "Too many signatures")
}

func TestNewVerifierConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 0
	_, err := NewVerifier(cfg)
	assert.Error(t, err)

	cfg.Threshold = 10
	_, err = NewVerifier(cfg)
	assert.Error(t, err)
}

func TestCombineProofLimit(t *testing.T) {
	sk, agg := testKey(t, keyHex)
	b := testBlock()

	for i := 0; i < block.MaxProofSignatures-1; i++ {
		b.Header.Proof = append(b.Header.Proof, sign(t, sk, b, uint32(i)))
	}

	v := newVerifier(t, 1)

	res, err := v.Combine(context.Background(), b, [][]byte{sign(t, sk, b, 100), sign(t, sk, b, 101)}, agg)
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Len(t, res.Block.Header.Proof, block.MaxProofSignatures)
	assert.Contains(t, res.Warning, "proof full")

	raw, err := res.Block.Bytes(xfield.DefaultCodec)
	require.NoError(t, err)

	_, err = block.Parse(raw, xfield.DefaultCodec)
	require.NoError(t, err)
}
