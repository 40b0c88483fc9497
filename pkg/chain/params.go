package chain

import (
	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/xfield"
)

const (
	DefaultChainID = "prod"

	// DefaultMaxBlockSize applies from genesis until a block changes it.
	DefaultMaxBlockSize xfield.MaxBlockSize = 1000000

	// medianTimeSpan is the number of ancestors whose median time a new
	// block must exceed.
	medianTimeSpan = 11
)

// Params are the fixed consensus parameters of a chain.
type Params struct {
	ChainID string
	Genesis *block.Block

	// GenesisMaxBlockSize seeds the max block size change log.
	GenesisMaxBlockSize xfield.MaxBlockSize

	Codec xfield.Codec
}

func (p *Params) validate() error {
	if p.Genesis == nil {
		return errors.Wrap(ErrBadGenesis, "no genesis block")
	}
	if p.ChainID == "" {
		p.ChainID = DefaultChainID
	}
	if p.GenesisMaxBlockSize == 0 {
		p.GenesisMaxBlockSize = DefaultMaxBlockSize
	}
	if p.GenesisMaxBlockSize < xfield.MinMaxBlockSize || p.GenesisMaxBlockSize > xfield.MaxMaxBlockSize {
		return errors.Wrapf(ErrBadGenesis, "max block size %d out of range", p.GenesisMaxBlockSize)
	}
	if p.Codec.SizeEncoding == 0 {
		p.Codec.SizeEncoding = xfield.SizeFixed32
	}
	if !p.Genesis.Header.HashPrevBlock.IsZero() {
		return errors.Wrap(ErrBadGenesis, "genesis has a parent")
	}

	return nil
}

// genesisKey returns the aggregate pubkey a genesis block declares.
func (p *Params) genesisKey() (xfield.AggregatePubkey, error) {
	x, err := p.Genesis.Header.XField(p.Codec)
	if err != nil {
		return xfield.AggregatePubkey{}, errors.Wrap(ErrBadGenesis, err.Error())
	}

	key, ok := x.(xfield.AggregatePubkey)
	if !ok {
		return key, errors.Wrapf(ErrBadGenesis, "genesis xfield is %s, want aggregate pubkey", x.Type())
	}

	return key, nil
}
