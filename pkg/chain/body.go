//go:generate go run github.com/vektra/mockery/v2 --name BodyValidator

package chain

import (
	"context"
	"fmt"

	"github.com/tcfw/fedchain/pkg/block"
)

// BodyValidator checks block contents. Transaction semantics live outside
// this package; the chain only needs a verdict.
type BodyValidator interface {
	// CheckBody returns a *RejectError for consensus-invalid bodies. Any
	// other error aborts acceptance without marking the block invalid.
	CheckBody(ctx context.Context, blk *block.Block, height uint32) error

	// CheckStandard reports whether every transaction passes relay policy.
	CheckStandard(ctx context.Context, blk *block.Block) error
}

var _ BodyValidator = (*BasicBodyValidator)(nil)

// BasicBodyValidator treats transactions as opaque and only checks the
// structure binding them to the header.
type BasicBodyValidator struct{}

func NewBasicBodyValidator() *BasicBodyValidator {
	return &BasicBodyValidator{}
}

func (BasicBodyValidator) CheckBody(ctx context.Context, blk *block.Block, height uint32) error {
	if len(blk.Txs) == 0 {
		return Reject(RejectInvalid, ReasonCoinbase, "first tx is not coinbase")
	}

	seen := make(map[block.Hash]struct{}, len(blk.Txs))
	for i, tx := range blk.Txs {
		id := block.Hash256(tx)
		if _, ok := seen[id]; ok {
			return Reject(RejectInvalid, ReasonDuplicateTxs, fmt.Sprintf("duplicate transaction at index %d", i))
		}
		seen[id] = struct{}{}
	}

	if root := block.MerkleRoot(blk.Txs); root != blk.Header.HashMerkleRoot {
		return Reject(RejectInvalid, ReasonMerkleRoot, "hashMerkleRoot mismatch")
	}

	return nil
}

func (BasicBodyValidator) CheckStandard(ctx context.Context, blk *block.Block) error {
	return nil
}
