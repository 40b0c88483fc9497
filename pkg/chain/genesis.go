package chain

import (
	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/cryptography"
	"github.com/tcfw/fedchain/pkg/xfield"
)

// NewGenesis builds a genesis block declaring the aggregate pubkey of sk
// and signed by it.
func NewGenesis(sk *cryptography.Secp256k1PrivateKey, time uint32, codec xfield.Codec, coinbase []byte) (*block.Block, error) {
	var agg xfield.AggregatePubkey
	copy(agg[:], sk.Public().Bytes())

	txs := [][]byte{coinbase}

	b := &block.Block{
		Header: block.Header{
			Version:        1,
			HashMerkleRoot: block.MerkleRoot(txs),
			Time:           time,
		},
		Txs: txs,
	}
	b.Header.SetXField(codec, agg)

	digest, err := b.Header.SigHash(codec)
	if err != nil {
		return nil, errors.Wrap(err, "computing genesis sighash")
	}
	b.Header.Proof = [][]byte{sk.SignDER(digest[:], 0)}

	return b, nil
}
