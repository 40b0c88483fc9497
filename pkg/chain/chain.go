// Package chain keeps the block tree of a federation-signed chain and moves
// its active tip as blocks arrive, are invalidated or reconsidered.
package chain

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/federation"
	"github.com/tcfw/fedchain/pkg/signature"
	"github.com/tcfw/fedchain/pkg/storage"
	"github.com/tcfw/fedchain/pkg/xfield"
)

// metaDroppedHeaders names the saved dropped header filter in the store.
const metaDroppedHeaders = "dropped-headers"

type SubmitResult uint8

const (
	SubmitAccepted SubmitResult = iota + 1
	SubmitDuplicate
	// SubmitSideChain blocks were stored but did not become the tip.
	SubmitSideChain
)

func (r SubmitResult) String() string {
	switch r {
	case SubmitAccepted:
		return "accepted"
	case SubmitDuplicate:
		return "duplicate"
	case SubmitSideChain:
		return "inconclusive"
	default:
		return "unknown"
	}
}

type HeaderVerdict uint8

const (
	// HeaderRequest asks the relay layer to download the full block.
	HeaderRequest HeaderVerdict = iota + 1
	HeaderKnown
	HeaderDropped
)

func (v HeaderVerdict) String() string {
	switch v {
	case HeaderRequest:
		return "request"
	case HeaderKnown:
		return "known"
	case HeaderDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

type HeaderInfo struct {
	Hash    block.Hash
	Height  uint32
	Header  *block.Header
	Active  bool
	Invalid bool
}

type Chain struct {
	mu    sync.Mutex
	state *ChainState

	params   Params
	pipeline *Pipeline
	reorg    *Reorg

	store      storage.Store
	verifier   *signature.Verifier
	body       BodyValidator
	logger     *logrus.Entry
	registerer prometheus.Registerer
	metrics    *metrics

	// headers dropped before relay
	dropped *storage.HashFilter

	view atomic.Pointer[View]
}

func New(params Params, opts ...Option) (*Chain, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	c := &Chain{params: params}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.setDefaults(); err != nil {
		return nil, err
	}

	m, err := newMetrics(c.registerer)
	if err != nil {
		return nil, errors.Wrap(err, "registering metrics")
	}
	c.metrics = m

	c.pipeline = &Pipeline{
		codec:    params.Codec,
		verifier: c.verifier,
		body:     c.body,
		store:    c.store,
		logger:   c.logger.WithField("component", "pipeline"),
		metrics:  m,
		rejected: storage.NewHashFilter(storage.DefaultFilterCapacity),
	}

	c.reorg = &Reorg{
		pipeline: c.pipeline,
		store:    c.store,
		logger:   c.logger.WithField("component", "reorg"),
		metrics:  m,
	}

	if err := c.initGenesis(); err != nil {
		return nil, err
	}

	c.publish()

	return c, nil
}

func (c *Chain) setDefaults() error {
	if c.store == nil {
		c.store = storage.NewMemStore()
	}
	if c.logger == nil {
		c.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if c.body == nil {
		c.body = NewBasicBodyValidator()
	}
	if c.registerer == nil {
		c.registerer = prometheus.NewRegistry()
	}
	if c.dropped == nil {
		c.dropped = storage.NewHashFilter(storage.DefaultFilterCapacity)
	}
	if c.verifier == nil {
		cfg := signature.DefaultConfig()
		cfg.Codec = c.params.Codec

		v, err := signature.NewVerifier(cfg)
		if err != nil {
			return err
		}
		c.verifier = v
	}

	return nil
}

func (c *Chain) initGenesis() error {
	g := c.params.Genesis

	key, err := c.params.genesisKey()
	if err != nil {
		return err
	}

	ok, err := c.verifier.Verify(&g.Header, key, c.verifier.Threshold())
	if err != nil {
		return errors.Wrap(ErrBadGenesis, err.Error())
	}
	if !ok {
		return errors.Wrap(ErrBadGenesis, "proof does not verify against its own aggregate pubkey")
	}

	n := &blockNode{
		hash: g.Hash(c.params.Codec),
		blk:  g,
		undo: &storage.UndoRecord{AggPubkey: append([]byte(nil), key[:]...)},
	}

	c.state = newChainState(n, federation.NewHistory(key, c.params.GenesisMaxBlockSize))
	c.metrics.height.Set(0)

	return nil
}

// Load restores blocks from the store and reconnects the stored active
// chain from genesis, rebuilding the change logs on the way.
func (c *Chain) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publish()

	cs := c.state
	genesis := cs.active[0]

	if _, err := c.store.GetBlock(ctx, genesis.hash); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return errors.Wrap(err, "reading genesis")
		}

		raw, err := genesis.blk.Bytes(c.params.Codec)
		if err != nil {
			return err
		}
		rec := &storage.BlockRecord{ID: genesis.hash, State: storage.BlockStateConnected, Raw: raw}
		if err := c.store.PutBlock(ctx, rec); err != nil {
			return errors.Wrap(err, "storing genesis")
		}
		if err := c.store.UpdateTip(ctx, genesis.hash); err != nil {
			return errors.Wrap(err, "storing tip")
		}
	}

	recs, err := c.store.Blocks(ctx)
	if err != nil {
		return errors.Wrap(err, "listing stored blocks")
	}

	for _, rec := range recs {
		if rec.Height == 0 {
			if rec.ID != genesis.hash {
				return errors.Wrapf(ErrBadGenesis, "store holds genesis %s, want %s", rec.ID, genesis.hash)
			}
			continue
		}
		if _, ok := cs.index[rec.ID]; ok {
			continue
		}

		l := c.logger.WithFields(logrus.Fields{"block": rec.ID, "height": rec.Height})

		blk, err := block.Parse(rec.Raw, c.params.Codec)
		if err != nil {
			l.WithError(err).Warn("skipping undecodable stored block")
			continue
		}

		parent, ok := cs.index[blk.Header.HashPrevBlock]
		if !ok {
			l.Warn("skipping stored block with unknown parent")
			continue
		}

		n := cs.addNode(rec.ID, parent, blk)
		n.seq = rec.Seq
		if rec.Seq >= cs.seq {
			cs.seq = rec.Seq + 1
		}

		if rec.State == storage.BlockStateInvalid && !n.invalid {
			n.invalid = true
			n.reject = Reject(RejectInvalid, ReasonInvalidated, "marked invalid in store")
		}
	}

	if err := c.loadDropped(ctx); err != nil {
		return err
	}

	if err := c.reconnectStoredTip(ctx); err != nil {
		return err
	}

	if err := c.reorg.activateBestChain(ctx, cs); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"height": cs.height(),
		"tip":    cs.tip().hash,
		"blocks": len(cs.index),
	}).Info("loaded chain")

	return nil
}

func (c *Chain) reconnectStoredTip(ctx context.Context) error {
	cs := c.state

	id, err := c.store.GetTip(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoTip) {
			return nil
		}
		return errors.Wrap(err, "reading tip")
	}

	tip, ok := cs.index[id]
	if !ok || tip.invalid || cs.contains(tip) || cs.fork(tip) != cs.tip() {
		return nil
	}

	var path []*blockNode
	for n := tip; n != cs.tip(); n = n.parent {
		path = append(path, n)
	}

	for i := len(path) - 1; i >= 0; i-- {
		err := c.pipeline.advance(ctx, cs, nodeAcceptance(path[i]), StageConnected)
		if err == nil {
			continue
		}

		rej, ok := AsReject(err)
		if !ok {
			return err
		}
		return c.reorg.fail(ctx, cs, path[i], rej)
	}

	return nil
}

func (c *Chain) publish() {
	cs := c.state

	c.view.Store(&View{
		ChainID: c.params.ChainID,
		Tip:     cs.tip().hash,
		Height:  cs.height(),
		History: cs.history.Snapshot(),
		Warning: cs.warning,
	})
}

// View returns the latest published snapshot of the active chain.
func (c *Chain) View() *View {
	return c.view.Load()
}

func (c *Chain) ChainInfo() ChainInfo {
	return c.View().Info()
}

// SubmitBlock decodes raw and runs it through the pipeline, connecting it
// (and possibly reorganizing onto its branch) when it is part of the best
// valid chain.
func (c *Chain) SubmitBlock(ctx context.Context, raw []byte) (SubmitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publish()

	cs := c.state

	a := newAcceptance(append([]byte(nil), raw...))
	if err := c.pipeline.advance(ctx, cs, a, StageHeaderDecoded); err != nil {
		return 0, err
	}

	if n, ok := cs.index[a.hash]; ok {
		if n.invalid {
			return 0, Reject(RejectDuplicate, "duplicate-invalid", n.reject.Error())
		}
		return SubmitDuplicate, nil
	}

	parent, ok := cs.index[a.blk.Header.HashPrevBlock]
	if !ok {
		rej := Reject(RejectInvalid, ReasonPrevNotFound, "previous block "+a.blk.Header.HashPrevBlock.String()+" unknown")
		c.pipeline.reject(a, rej)
		return 0, rej
	}

	a.parent = parent
	a.height = parent.height + 1

	if parent.invalid {
		rej := Reject(RejectInvalid, ReasonBadPrevBlock, "parent block is invalid")
		c.pipeline.reject(a, rej)
		return 0, rej
	}

	if err := c.pipeline.advance(ctx, cs, a, StageXFieldValidated); err != nil {
		return 0, err
	}

	rec := &storage.BlockRecord{
		ID:     a.hash,
		Height: a.height,
		Seq:    cs.seq,
		State:  storage.BlockStateStored,
		Raw:    a.raw,
	}
	if err := c.store.PutBlock(ctx, rec); err != nil {
		return 0, errors.Wrap(err, "storing block")
	}

	n := cs.addNode(a.hash, parent, a.blk)

	if err := c.reorg.activateBestChain(ctx, cs); err != nil {
		return 0, err
	}

	switch {
	case n.invalid:
		return 0, n.reject
	case cs.contains(n):
		return SubmitAccepted, nil
	default:
		return SubmitSideChain, nil
	}
}

// CombineBlockSigs merges sigs into the proof of the block in raw. Keys come
// from the published view: the aggregate pubkey active at the tip.
func (c *Chain) CombineBlockSigs(ctx context.Context, raw []byte, sigs [][]byte) (*signature.CombineResult, error) {
	blk, err := block.Parse(raw, c.params.Codec)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}

	v := c.View()

	key, _, err := v.History.Params(v.Height + 1)
	if err != nil {
		return nil, err
	}

	return c.verifier.Combine(ctx, blk, sigs, key)
}

// TestProposedBlock checks that raw would be accepted on top of the current
// tip, ignoring its proof. Nothing is stored or connected.
func (c *Chain) TestProposedBlock(ctx context.Context, raw []byte, acceptNonStandard bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs := c.state

	a := newAcceptance(raw)
	a.dryRun = true

	if err := c.pipeline.advance(ctx, cs, a, StageHeaderDecoded); err != nil {
		return err
	}

	tip := cs.tip()
	if a.blk.Header.HashPrevBlock != tip.hash {
		return ErrNotBestChain
	}

	a.parent = tip
	a.height = tip.height + 1

	if err := c.pipeline.advance(ctx, cs, a, StageBodyValidated); err != nil {
		return err
	}

	if !acceptNonStandard {
		if err := c.body.CheckStandard(ctx, a.blk); err != nil {
			return errors.Wrap(ErrNonStandard, err.Error())
		}
	}

	return nil
}

// ProcessHeader judges a relayed header before its block is requested.
// Headers with malformed xfields are dropped and never requested.
func (c *Chain) ProcessHeader(ctx context.Context, raw []byte) (HeaderVerdict, error) {
	h, err := block.ParseHeader(raw, c.params.Codec)
	if err != nil {
		return HeaderDropped, errors.Wrap(ErrDecode, err.Error())
	}

	hash := h.BlockHash(c.params.Codec)

	c.mu.Lock()
	defer c.mu.Unlock()

	cs := c.state

	if n, ok := cs.index[hash]; ok {
		if n.invalid {
			return HeaderDropped, n.reject
		}
		return HeaderKnown, nil
	}

	l := c.logger.WithField("block", hash)

	// a false positive only costs the header relay, SubmitBlock still takes
	// the full block
	if c.dropped.Contains(hash) {
		c.metrics.rejected.WithLabelValues(ReasonBadXField).Inc()
		l.Debug("dropped header again")
		return HeaderDropped, Reject(RejectInvalid, ReasonBadXField, "header dropped before")
	}

	if _, err := h.XField(c.params.Codec); err != nil {
		rej := Reject(RejectInvalid, ReasonBadXField, err.Error())
		c.metrics.rejected.WithLabelValues(rej.Reason).Inc()

		c.dropped.Add(hash)
		l.WithField("reason", rej.Reason).Warn("dropped header")
		return HeaderDropped, rej
	}

	if parent, ok := cs.index[h.HashPrevBlock]; ok && parent.invalid {
		return HeaderDropped, Reject(RejectInvalid, ReasonBadPrevBlock, "parent block is invalid")
	}

	return HeaderRequest, nil
}

// InvalidateBlock marks a block invalid and moves the tip off it. Blocks
// that would roll back a federation change are refused.
func (c *Chain) InvalidateBlock(ctx context.Context, id block.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publish()

	n, ok := c.state.index[id]
	if !ok {
		return errors.Wrap(ErrUnknownBlock, id.String())
	}

	return c.reorg.invalidate(ctx, c.state, n)
}

func (c *Chain) ReconsiderBlock(ctx context.Context, id block.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.publish()

	n, ok := c.state.index[id]
	if !ok {
		return errors.Wrap(ErrUnknownBlock, id.String())
	}

	return c.reorg.reconsider(ctx, c.state, n)
}

func (c *Chain) BlockHeader(id block.Hash) (*HeaderInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.state.index[id]
	if !ok {
		return nil, errors.Wrap(ErrUnknownBlock, id.String())
	}

	return &HeaderInfo{
		Hash:    n.hash,
		Height:  n.height,
		Header:  n.blk.Header.Copy(),
		Active:  c.state.contains(n),
		Invalid: n.invalid,
	}, nil
}

// BlockHash returns the hash of the active block at height.
func (c *Chain) BlockHash(height uint32) (block.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if int(height) >= len(c.state.active) {
		return block.Hash{}, errors.Wrapf(ErrUnknownBlock, "height %d", height)
	}

	return c.state.active[height].hash, nil
}

// loadDropped restores the dropped header filter saved by Stop.
func (c *Chain) loadDropped(ctx context.Context) error {
	b, err := c.store.GetMeta(ctx, metaDroppedHeaders)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "reading dropped headers")
	}

	if err := c.dropped.Decode(b); err != nil {
		c.logger.WithError(err).Warn("discarding saved dropped headers")
	}
	return nil
}

// Stop saves the dropped header filter and closes the store.
func (c *Chain) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.dropped.Encode()
	if err == nil {
		err = c.store.PutMeta(context.Background(), metaDroppedHeaders, b)
	}
	if err != nil {
		c.logger.WithError(err).Warn("saving dropped headers")
	}

	return c.store.Stop()
}

func (c *Chain) Codec() xfield.Codec {
	return c.params.Codec
}
