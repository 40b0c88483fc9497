package chain

import (
	"sort"

	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/federation"
	"github.com/tcfw/fedchain/pkg/storage"
)

type blockNode struct {
	hash   block.Hash
	parent *blockNode
	height uint32
	seq    uint64
	blk    *block.Block

	children []*blockNode

	invalid bool
	reject  *RejectError

	// set while the node is on the active chain
	undo *storage.UndoRecord
}

// ChainState is the node's view of the block tree: every known block, the
// active chain and the governance history along it. Owned by the Chain
// mutex.
type ChainState struct {
	index   map[block.Hash]*blockNode
	active  []*blockNode
	history *federation.History

	seq     uint64
	warning string
}

func newChainState(genesis *blockNode, history *federation.History) *ChainState {
	cs := &ChainState{
		index:   map[block.Hash]*blockNode{genesis.hash: genesis},
		active:  []*blockNode{genesis},
		history: history,
		seq:     genesis.seq + 1,
	}
	return cs
}

func (cs *ChainState) tip() *blockNode {
	return cs.active[len(cs.active)-1]
}

func (cs *ChainState) height() uint32 {
	return cs.tip().height
}

func (cs *ChainState) contains(n *blockNode) bool {
	return int(n.height) < len(cs.active) && cs.active[n.height] == n
}

// fork returns the last block n shares with the active chain.
func (cs *ChainState) fork(n *blockNode) *blockNode {
	for n != nil && !cs.contains(n) {
		n = n.parent
	}
	return n
}

func (cs *ChainState) addNode(hash block.Hash, parent *blockNode, blk *block.Block) *blockNode {
	n := &blockNode{
		hash:   hash,
		parent: parent,
		height: parent.height + 1,
		seq:    cs.seq,
		blk:    blk,
	}
	cs.seq++

	parent.children = append(parent.children, n)
	cs.index[hash] = n

	if parent.invalid {
		n.invalid = true
		n.reject = Reject(RejectInvalid, ReasonBadPrevBlock, "parent block is invalid")
	}

	return n
}

func (cs *ChainState) descendants(n *blockNode) []*blockNode {
	var out []*blockNode
	queue := append([]*blockNode(nil), n.children...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		out = append(out, c)
		queue = append(queue, c.children...)
	}
	return out
}

// best picks the valid block with the greatest height. On a tie the
// current tip wins, then the block seen first.
func (cs *ChainState) best() *blockNode {
	tip := cs.tip()
	best := tip

	for _, n := range cs.index {
		if n.invalid || n == tip {
			continue
		}
		switch {
		case n.height > best.height:
			best = n
		case n.height == best.height && best != tip && n.seq < best.seq:
			best = n
		}
	}

	return best
}

// medianTime returns the median timestamp of n and up to ten of its
// ancestors.
func medianTime(n *blockNode) uint32 {
	times := make([]uint32, 0, medianTimeSpan)
	for i := 0; i < medianTimeSpan && n != nil; i++ {
		times = append(times, n.blk.Header.Time)
		n = n.parent
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times[len(times)/2]
}
