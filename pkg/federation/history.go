package federation

import (
	"github.com/tcfw/fedchain/pkg/xfield"
)

// History holds the two governance change logs of a chain.
type History struct {
	AggPubkeys    *ChangeLog[xfield.AggregatePubkey]
	MaxBlockSizes *ChangeLog[xfield.MaxBlockSize]
}

func NewHistory(key xfield.AggregatePubkey, size xfield.MaxBlockSize) *History {
	return &History{
		AggPubkeys:    NewChangeLog(key),
		MaxBlockSizes: NewChangeLog(size),
	}
}

// Params returns the aggregate pubkey and max block size that a block at
// height must satisfy: the values active at height-1.
func (h *History) Params(height uint32) (xfield.AggregatePubkey, xfield.MaxBlockSize, error) {
	return params(h.AggPubkeys.Active, h.MaxBlockSizes.Active, height)
}

// RemoveFrom rolls both logs back to before height.
func (h *History) RemoveFrom(height uint32) ([]Entry[xfield.AggregatePubkey], []Entry[xfield.MaxBlockSize]) {
	return h.AggPubkeys.RemoveFrom(height), h.MaxBlockSizes.RemoveFrom(height)
}

func (h *History) Snapshot() *HistorySnapshot {
	return &HistorySnapshot{
		AggPubkeys:    h.AggPubkeys.Snapshot(),
		MaxBlockSizes: h.MaxBlockSizes.Snapshot(),
	}
}

type HistorySnapshot struct {
	AggPubkeys    *Snapshot[xfield.AggregatePubkey]
	MaxBlockSizes *Snapshot[xfield.MaxBlockSize]
}

func (h *HistorySnapshot) Params(height uint32) (xfield.AggregatePubkey, xfield.MaxBlockSize, error) {
	return params(h.AggPubkeys.Active, h.MaxBlockSizes.Active, height)
}

func params(
	keyAt func(uint32) (xfield.AggregatePubkey, bool),
	sizeAt func(uint32) (xfield.MaxBlockSize, bool),
	height uint32,
) (xfield.AggregatePubkey, xfield.MaxBlockSize, error) {
	prev := height
	if prev > 0 {
		prev--
	}

	key, ok := keyAt(prev)
	if !ok {
		return key, 0, ErrEmptyLog
	}

	size, ok := sizeAt(prev)
	if !ok {
		return key, 0, ErrEmptyLog
	}

	return key, size, nil
}
