package chain

import (
	"fmt"

	"github.com/pkg/errors"
)

// RejectCode classifies why a block was refused, following the reject
// codes exchanged between peers.
type RejectCode uint8

const (
	RejectMalformed   RejectCode = 0x01
	RejectInvalid     RejectCode = 0x10
	RejectDuplicate   RejectCode = 0x12
	RejectNonstandard RejectCode = 0x40
)

const (
	ReasonBadXField     = "bad-xfieldType-xfield"
	ReasonBadProof      = "bad-proof"
	ReasonBadAggPubkey  = "bad-aggpubkey"
	ReasonBadLength     = "bad-blk-length"
	ReasonTimeTooOld    = "time-too-old"
	ReasonPrevNotFound  = "prev-blk-not-found"
	ReasonBadPrevBlock  = "bad-prevblk"
	ReasonInvalidated   = "invalidated"
	ReasonCoinbase      = "bad-cb-missing"
	ReasonMerkleRoot    = "bad-txnmrklroot"
	ReasonDuplicateTxs  = "bad-txns-duplicate"
	ReasonDuplicateBlk  = "duplicate"
	ReasonNonStandardTx = "non-standard"
)

var (
	ErrDecode          = errors.New("Block decode failed")
	ErrFederationBlock = errors.New("Federation block found")
	ErrNotBestChain    = errors.New("proposal was not based on our best chain")
	ErrNonStandard     = errors.New("Block proposal included a non-standard transaction")
	ErrUnknownBlock    = errors.New("Block not found")
	ErrGenesis         = errors.New("genesis block cannot be disconnected")
	ErrBadGenesis      = errors.New("invalid genesis block")
)

// RejectError is a consensus rejection. Blocks failing with a RejectError
// are marked invalid and never reconsidered automatically, unless the
// failure lies in bytes the block hash does not commit to (see Mutated).
type RejectError struct {
	Code   RejectCode
	Reason string
	Debug  string
}

func Reject(code RejectCode, reason, debug string) *RejectError {
	return &RejectError{Code: code, Reason: reason, Debug: debug}
}

func (e *RejectError) Error() string {
	if e.Debug == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s, %s", e.Reason, e.Debug)
}

// Mutated reports whether the rejection may come from a copy of the block
// whose proof or transactions were altered in transit. The hash covers
// neither, so such failures must not condemn the hash.
func (e *RejectError) Mutated() bool {
	switch e.Reason {
	case ReasonBadProof, ReasonBadAggPubkey, ReasonBadLength,
		ReasonCoinbase, ReasonMerkleRoot, ReasonDuplicateTxs:
		return true
	}
	return false
}

// AsReject extracts a RejectError from err's chain.
func AsReject(err error) (*RejectError, bool) {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
