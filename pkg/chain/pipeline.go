package chain

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/signature"
	"github.com/tcfw/fedchain/pkg/storage"
	"github.com/tcfw/fedchain/pkg/xfield"
)

// Stage is a block's position in the acceptance pipeline. Stages only move
// forward; StageRejected is terminal.
type Stage uint8

const (
	StageReceived Stage = iota
	StageHeaderDecoded
	StageXFieldValidated
	StageSignatureVerified
	StageBodyValidated
	StageConnected
	StageRejected
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageHeaderDecoded:
		return "header-decoded"
	case StageXFieldValidated:
		return "xfield-validated"
	case StageSignatureVerified:
		return "signature-verified"
	case StageBodyValidated:
		return "body-validated"
	case StageConnected:
		return "connected"
	case StageRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// acceptance tracks one block through the pipeline.
type acceptance struct {
	stage Stage
	trace []Stage

	raw  []byte
	blk  *block.Block
	hash block.Hash
	xf   xfield.XField

	parent *blockNode
	height uint32
	node   *blockNode

	// dry runs skip the proof check and never commit
	dryRun bool

	err error
}

func newAcceptance(raw []byte) *acceptance {
	return &acceptance{stage: StageReceived, trace: []Stage{StageReceived}, raw: raw}
}

// nodeAcceptance resumes a block already in the index at the xfield stage.
func nodeAcceptance(n *blockNode) *acceptance {
	return &acceptance{
		stage:  StageHeaderDecoded,
		trace:  []Stage{StageHeaderDecoded},
		blk:    n.blk,
		hash:   n.hash,
		parent: n.parent,
		height: n.height,
		node:   n,
	}
}

func (a *acceptance) set(s Stage) {
	a.stage = s
	a.trace = append(a.trace, s)
}

// Pipeline validates blocks stage by stage and commits them to a
// ChainState. Callers hold the chain lock.
type Pipeline struct {
	codec    xfield.Codec
	verifier *signature.Verifier
	body     BodyValidator
	store    storage.Store
	logger   *logrus.Entry
	metrics  *metrics

	rejected *storage.HashFilter
}

// advance runs a until it reaches stage until. A *RejectError or decode
// failure moves a to StageRejected; other errors leave it where it was.
func (p *Pipeline) advance(ctx context.Context, cs *ChainState, a *acceptance, until Stage) error {
	if a.stage == StageRejected {
		return a.err
	}

	for a.stage < until {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error

		switch a.stage {
		case StageReceived:
			err = p.decode(a)
		case StageHeaderDecoded:
			err = p.checkXField(a)
		case StageXFieldValidated:
			err = p.checkProof(cs, a)
		case StageSignatureVerified:
			err = p.checkBody(ctx, cs, a)
		case StageBodyValidated:
			err = p.commit(ctx, cs, a)
		}

		if err != nil {
			if rej, ok := AsReject(err); ok {
				p.reject(a, rej)
				return rej
			}
			if errors.Is(err, ErrDecode) {
				a.err = err
				a.set(StageRejected)
			}
			return err
		}

		a.set(a.stage + 1)

		p.logger.WithFields(logrus.Fields{
			"block": a.hash,
			"stage": a.stage,
		}).Debug("block advanced")
	}

	return nil
}

func (p *Pipeline) reject(a *acceptance, rej *RejectError) {
	from := a.stage
	a.err = rej
	a.set(StageRejected)

	p.metrics.rejected.WithLabelValues(rej.Reason).Inc()

	l := p.logger.WithFields(logrus.Fields{
		"block":  a.hash,
		"height": a.height,
		"stage":  from,
		"reason": rej.Reason,
	})

	// repeats of the same bad block are only worth a debug line
	if p.rejected.Add(a.hash) {
		l.Debug("rejected block again")
		return
	}
	l.WithField("debug", rej.Debug).Warn("rejected block")
}

func (p *Pipeline) decode(a *acceptance) error {
	blk, err := block.Parse(a.raw, p.codec)
	if err != nil {
		return errors.Wrap(ErrDecode, err.Error())
	}

	a.blk = blk
	a.hash = blk.Hash(p.codec)

	return nil
}

func (p *Pipeline) checkXField(a *acceptance) error {
	x, err := a.blk.Header.XField(p.codec)
	if err != nil {
		return Reject(RejectInvalid, ReasonBadXField, err.Error())
	}

	a.xf = x
	return nil
}

func (p *Pipeline) checkProof(cs *ChainState, a *acceptance) error {
	if a.parent == nil {
		return errors.Errorf("block %s has no parent in the index", a.hash)
	}

	if mtp := medianTime(a.parent); a.blk.Header.Time <= mtp {
		return Reject(RejectInvalid, ReasonTimeTooOld, "block's timestamp is too early")
	}

	if a.dryRun {
		return nil
	}

	key, _, err := cs.history.Params(a.height)
	if err != nil {
		return err
	}

	ok, err := p.verifier.Verify(&a.blk.Header, key, p.verifier.Threshold())
	if err != nil {
		if errors.Is(err, signature.ErrInvalidAggPubkey) {
			return Reject(RejectInvalid, ReasonBadAggPubkey, "invalid aggpubkey")
		}
		return Reject(RejectInvalid, ReasonBadProof, err.Error())
	}
	if !ok {
		return Reject(RejectInvalid, ReasonBadProof, "proof verification failed")
	}

	return nil
}

func (p *Pipeline) checkBody(ctx context.Context, cs *ChainState, a *acceptance) error {
	_, maxSize, err := cs.history.Params(a.height)
	if err != nil {
		return err
	}

	size, err := a.blk.Size(p.codec)
	if err != nil {
		return errors.Wrap(err, "sizing block")
	}
	if size > int(maxSize) {
		return Reject(RejectInvalid, ReasonBadLength, "max block size exceeded")
	}

	return p.body.CheckBody(ctx, a.blk, a.height)
}

// commit connects a on top of the active tip, recording governance changes
// and the undo data needed to reverse them.
func (p *Pipeline) commit(ctx context.Context, cs *ChainState, a *acceptance) error {
	n := a.node
	if n == nil || n.parent != cs.tip() {
		return errors.Errorf("block %s does not extend the active tip", a.hash)
	}

	undo := &storage.UndoRecord{Height: a.height}
	warning := ""

	switch x := a.xf.(type) {
	case xfield.AggregatePubkey:
		if cur, _ := cs.history.AggPubkeys.Active(a.height - 1); cur != x {
			undo.AggPubkey = append([]byte(nil), x[:]...)
		}
	case xfield.MaxBlockSize:
		if cur, _ := cs.history.MaxBlockSizes.Active(a.height - 1); cur != x {
			undo.MaxBlockSize = uint32(x)
			undo.HasMaxBlockSize = true
		}
	case xfield.Unknown:
		warning = xfield.Warning(x.Kind, a.hash)
	}

	if err := p.store.PutUndo(ctx, a.hash, undo); err != nil {
		return errors.Wrap(err, "storing undo record")
	}
	if err := p.store.MarkBlock(ctx, a.hash, storage.BlockStateConnected); err != nil {
		return errors.Wrap(err, "marking block connected")
	}
	if err := p.store.UpdateTip(ctx, a.hash); err != nil {
		return errors.Wrap(err, "updating tip")
	}

	l := p.logger.WithFields(logrus.Fields{"block": a.hash, "height": a.height})

	if undo.Federation() {
		if err := cs.history.AggPubkeys.Append(a.height, a.xf.(xfield.AggregatePubkey)); err != nil {
			return err
		}
		p.metrics.changes.WithLabelValues(xfield.TypeAggPubkey.String()).Inc()
		l.WithField("aggpubkey", a.xf).Info("federation changed")
	}
	if undo.HasMaxBlockSize {
		if err := cs.history.MaxBlockSizes.Append(a.height, xfield.MaxBlockSize(undo.MaxBlockSize)); err != nil {
			return err
		}
		p.metrics.changes.WithLabelValues(xfield.TypeMaxBlockSize.String()).Inc()
		l.WithField("maxBlockSize", undo.MaxBlockSize).Info("max block size changed")
	}
	if warning != "" {
		cs.warning = warning
		l.Warn(warning)
	}

	n.undo = undo
	cs.active = append(cs.active, n)

	p.metrics.connected.Inc()
	p.metrics.height.Set(float64(a.height))

	l.Info("connected block")

	return nil
}
