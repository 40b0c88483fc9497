package chain

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/fedchain/pkg/storage"
	"github.com/tcfw/fedchain/pkg/xfield"
)

// Reorg moves the active chain between branches of the block tree, keeping
// the governance history in step with the active tip.
type Reorg struct {
	pipeline *Pipeline
	store    storage.Store
	logger   *logrus.Entry
	metrics  *metrics
}

// federationSuffix reports whether disconnecting down to (and including) n
// would remove an aggregate pubkey change.
func federationSuffix(cs *ChainState, n *blockNode) bool {
	if cs.history.AggPubkeys.Contains(n.height) {
		return true
	}
	return cs.contains(n) && cs.history.AggPubkeys.Last().Height >= n.height
}

// disconnectTip removes the active tip and rolls both change logs back to
// before its height. explicit disconnects refuse federation blocks.
func (r *Reorg) disconnectTip(ctx context.Context, cs *ChainState, explicit bool) error {
	tip := cs.tip()
	if tip.parent == nil {
		return ErrGenesis
	}
	if explicit && cs.history.AggPubkeys.Contains(tip.height) {
		return errors.Wrapf(ErrFederationBlock, "block %s at height %d", tip.hash, tip.height)
	}

	if err := r.store.DeleteUndo(ctx, tip.hash); err != nil {
		return errors.Wrap(err, "deleting undo record")
	}
	if err := r.store.MarkBlock(ctx, tip.hash, storage.BlockStateStored); err != nil {
		return errors.Wrap(err, "marking block stored")
	}
	if err := r.store.UpdateTip(ctx, tip.parent.hash); err != nil {
		return errors.Wrap(err, "updating tip")
	}

	keys, sizes := cs.history.RemoveFrom(tip.height)

	l := r.logger.WithFields(logrus.Fields{"block": tip.hash, "height": tip.height})

	if undo := tip.undo; undo != nil {
		keyChanged := len(keys) == 1 && bytes.Equal(keys[0].Value[:], undo.AggPubkey)
		sizeChanged := len(sizes) == 1 && sizes[0].Value == xfield.MaxBlockSize(undo.MaxBlockSize)
		if keyChanged != undo.Federation() || sizeChanged != undo.HasMaxBlockSize {
			l.WithFields(logrus.Fields{
				"keys":  len(keys),
				"sizes": len(sizes),
			}).Error("change log rollback does not match undo record")
		}
	}

	tip.undo = nil
	cs.active = cs.active[:len(cs.active)-1]

	r.metrics.disconnected.Inc()
	r.metrics.height.Set(float64(cs.height()))

	l.Info("disconnected block")

	return nil
}

// activateBestChain switches to the best valid branch. A branch block that
// fails validation is disposed of together with its descendants and the
// best branch is chosen again, which may reconnect the previous chain.
func (r *Reorg) activateBestChain(ctx context.Context, cs *ChainState) error {
	for {
		best := cs.best()
		if best == cs.tip() {
			return nil
		}

		fork := cs.fork(best)
		oldTip := cs.tip()

		disconnected := 0
		for cs.tip() != fork {
			if err := r.disconnectTip(ctx, cs, false); err != nil {
				return err
			}
			disconnected++
		}

		path := make([]*blockNode, 0, best.height-fork.height)
		for n := best; n != fork; n = n.parent {
			path = append(path, n)
		}

		failed := false
		for i := len(path) - 1; i >= 0; i-- {
			n := path[i]

			err := r.pipeline.advance(ctx, cs, nodeAcceptance(n), StageConnected)
			if err == nil {
				continue
			}

			rej, ok := AsReject(err)
			if !ok {
				return err
			}
			if err := r.fail(ctx, cs, n, rej); err != nil {
				return err
			}
			failed = true
			break
		}

		if disconnected > 0 {
			r.metrics.reorgs.Inc()
			r.logger.WithFields(logrus.Fields{
				"from":         oldTip.hash,
				"to":           cs.tip().hash,
				"fork":         fork.height,
				"disconnected": disconnected,
			}).Info("reorganized chain")
		}

		if !failed && cs.tip() == best {
			return nil
		}
	}
}

// fail disposes of a branch block that did not validate.
func (r *Reorg) fail(ctx context.Context, cs *ChainState, n *blockNode, rej *RejectError) error {
	if rej.Mutated() {
		return r.forget(ctx, cs, n, rej)
	}
	return r.markInvalid(ctx, cs, n, rej)
}

// forget removes n and its descendants from the index and the store, so an
// intact copy of n can still be accepted. The detached nodes keep the
// rejection for callers holding them.
func (r *Reorg) forget(ctx context.Context, cs *ChainState, n *blockNode, rej *RejectError) error {
	nodes := append([]*blockNode{n}, cs.descendants(n)...)

	for _, d := range nodes {
		if err := r.store.DeleteBlock(ctx, d.hash); err != nil {
			return errors.Wrap(err, "deleting block")
		}
		delete(cs.index, d.hash)

		d.invalid = true
		d.reject = Reject(RejectInvalid, ReasonBadPrevBlock, "descends from dropped block "+n.hash.String())
	}
	n.reject = rej

	if p := n.parent; p != nil {
		for i, c := range p.children {
			if c == n {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}

	r.logger.WithFields(logrus.Fields{
		"block":       n.hash,
		"height":      n.height,
		"reason":      rej.Reason,
		"descendants": len(nodes) - 1,
	}).Info("dropped block")

	return nil
}

// markInvalid flags n and every descendant so they are never selected
// again until reconsidered.
func (r *Reorg) markInvalid(ctx context.Context, cs *ChainState, n *blockNode, rej *RejectError) error {
	n.invalid = true
	n.reject = rej
	if err := r.store.MarkBlock(ctx, n.hash, storage.BlockStateInvalid); err != nil {
		return errors.Wrap(err, "marking block invalid")
	}

	for _, d := range cs.descendants(n) {
		if d.invalid {
			continue
		}
		d.invalid = true
		d.reject = Reject(RejectInvalid, ReasonBadPrevBlock, "descends from invalid block "+n.hash.String())
		if err := r.store.MarkBlock(ctx, d.hash, storage.BlockStateInvalid); err != nil {
			return errors.Wrap(err, "marking descendant invalid")
		}
	}

	return nil
}

// invalidate disconnects n (if active) and marks it invalid. Blocks whose
// removal would drop an aggregate pubkey change are refused.
func (r *Reorg) invalidate(ctx context.Context, cs *ChainState, n *blockNode) error {
	if federationSuffix(cs, n) {
		return errors.Wrapf(ErrFederationBlock, "block %s at height %d", n.hash, n.height)
	}

	for cs.contains(n) {
		if err := r.disconnectTip(ctx, cs, true); err != nil {
			return err
		}
	}

	if err := r.markInvalid(ctx, cs, n, Reject(RejectInvalid, ReasonInvalidated, "invalidated by operator")); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{"block": n.hash, "height": n.height}).Info("invalidated block")

	return r.activateBestChain(ctx, cs)
}

// reconsider clears invalid flags on n, its ancestors and descendants.
func (r *Reorg) reconsider(ctx context.Context, cs *ChainState, n *blockNode) error {
	unmark := func(b *blockNode) error {
		if !b.invalid {
			return nil
		}
		b.invalid = false
		b.reject = nil
		return errors.Wrap(r.store.MarkBlock(ctx, b.hash, storage.BlockStateStored), "clearing invalid flag")
	}

	for b := n; b != nil; b = b.parent {
		if err := unmark(b); err != nil {
			return err
		}
	}
	for _, d := range cs.descendants(n) {
		if err := unmark(d); err != nil {
			return err
		}
	}

	r.logger.WithFields(logrus.Fields{"block": n.hash, "height": n.height}).Info("reconsidered block")

	return r.activateBestChain(ctx, cs)
}
