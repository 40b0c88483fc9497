package chain

import (
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/federation"
)

// View is an immutable snapshot of the active chain published after every
// change. Readers never take the chain lock.
type View struct {
	ChainID string
	Tip     block.Hash
	Height  uint32
	History *federation.HistorySnapshot
	Warning string
}

type ChainInfo struct {
	Chain            string              `json:"chain"`
	Blocks           uint32              `json:"blocks"`
	BestBlockHash    string              `json:"bestblockhash"`
	AggregatePubkeys []map[string]uint32 `json:"aggregatePubkeys"`
	MaxBlockSizes    []map[string]uint32 `json:"maxBlockSizes"`
	Warnings         string              `json:"warnings"`
}

// Info renders the view as reported by getblockchaininfo. Each change log
// entry is a single-key object mapping the value to its activation height.
func (v *View) Info() ChainInfo {
	info := ChainInfo{
		Chain:         v.ChainID,
		Blocks:        v.Height,
		BestBlockHash: v.Tip.String(),
		Warnings:      v.Warning,
	}

	for _, e := range v.History.AggPubkeys.Entries() {
		info.AggregatePubkeys = append(info.AggregatePubkeys, map[string]uint32{e.Value.String(): e.Height})
	}
	for _, e := range v.History.MaxBlockSizes.Entries() {
		info.MaxBlockSizes = append(info.MaxBlockSizes, map[string]uint32{e.Value.String(): e.Height})
	}

	return info
}
