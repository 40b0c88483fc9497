package chain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/cryptography"
	"github.com/tcfw/fedchain/pkg/storage"
	"github.com/tcfw/fedchain/pkg/xfield"
)

const (
	fed0Hex = "c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3"
	fed1Hex = "2222222222222222222222222222222222222222222222222222222222222222"
	fed2Hex = "3333333333333333333333333333333333333333333333333333333333333333"

	genesisTime = 1600000000
)

var testCodec = xfield.DefaultCodec

type signer struct {
	sk  *cryptography.Secp256k1PrivateKey
	agg xfield.AggregatePubkey
}

func newSigner(t *testing.T, h string) *signer {
	sk, err := cryptography.NewSecp256k1PrivateKeyFromHex(h)
	require.NoError(t, err)

	s := &signer{sk: sk}
	copy(s.agg[:], sk.Public().Bytes())
	return s
}

func (s *signer) sign(t *testing.T, b *block.Block) {
	digest, err := b.Header.SigHash(testCodec)
	require.NoError(t, err)
	b.Header.Proof = [][]byte{s.sk.SignDER(digest[:], 0)}
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// unsigned builds a block on parent with a coinbase unique to tag.
func unsigned(parent *block.Block, x xfield.XField, tag string, extra ...[]byte) *block.Block {
	time := uint32(genesisTime)
	prev := block.ZeroHash
	if parent != nil {
		time = parent.Header.Time + 1
		prev = parent.Hash(testCodec)
	}

	txs := append([][]byte{[]byte(fmt.Sprintf("coinbase %s %d", tag, time))}, extra...)

	b := &block.Block{
		Header: block.Header{
			Version:        1,
			HashPrevBlock:  prev,
			HashMerkleRoot: block.MerkleRoot(txs),
			Time:           time,
		},
		Txs: txs,
	}
	if x != nil {
		b.Header.SetXField(testCodec, x)
	}

	return b
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	c       *Chain
	store   storage.Store
	genesis *block.Block
	fed0    *signer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	return newHarnessWithStore(t, storage.NewMemStore(), opts...)
}

func newHarnessWithStore(t *testing.T, store storage.Store, opts ...Option) *harness {
	fed0 := newSigner(t, fed0Hex)

	g := unsigned(nil, fed0.agg, "genesis")
	fed0.sign(t, g)

	h := &harness{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		genesis: g,
		fed0:    fed0,
	}

	h.c = h.open(opts...)
	return h
}

// open starts a chain over the harness store and loads it.
func (h *harness) open(opts ...Option) *Chain {
	base := []Option{
		WithStore(h.store),
		WithRegisterer(prometheus.NewRegistry()),
		WithLogger(testLogger()),
	}

	c, err := New(Params{Genesis: h.genesis}, append(base, opts...)...)
	require.NoError(h.t, err)
	require.NoError(h.t, c.Load(h.ctx))

	return c
}

func (h *harness) build(parent *block.Block, s *signer, x xfield.XField, tag string, extra ...[]byte) *block.Block {
	b := unsigned(parent, x, tag, extra...)
	s.sign(h.t, b)
	return b
}

func (h *harness) raw(b *block.Block) []byte {
	raw, err := b.Bytes(testCodec)
	require.NoError(h.t, err)
	return raw
}

func (h *harness) submit(b *block.Block) (SubmitResult, error) {
	return h.c.SubmitBlock(h.ctx, h.raw(b))
}

func (h *harness) accept(b *block.Block) {
	res, err := h.submit(b)
	require.NoError(h.t, err)
	require.Equal(h.t, SubmitAccepted, res)
}

// extend connects n blocks signed by s on parent and returns them.
func (h *harness) extend(parent *block.Block, s *signer, n int, tag string) []*block.Block {
	out := make([]*block.Block, 0, n)
	for i := 0; i < n; i++ {
		parent = h.build(parent, s, nil, tag)
		h.accept(parent)
		out = append(out, parent)
	}
	return out
}

func (h *harness) headerBytes(b *block.Block) []byte {
	var buf bytes.Buffer
	require.NoError(h.t, b.Header.Serialize(&buf, testCodec))
	return buf.Bytes()
}

func (h *harness) tip() block.Hash {
	return h.c.View().Tip
}

func hashOf(b *block.Block) block.Hash {
	return b.Hash(testCodec)
}
