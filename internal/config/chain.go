package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/chain"
	"github.com/tcfw/fedchain/pkg/signature"
	"github.com/tcfw/fedchain/pkg/xfield"
	"gopkg.in/yaml.v3"
)

type Chain struct {
	Genesis              *Genesis
	Threshold            int
	MaxCombineSignatures int
	SizeEncoding         xfield.SizeEncoding
}

// Genesis is the yaml document naming a chain and its first block.
type Genesis struct {
	ChainID      string `yaml:"chainId"`
	Block        string `yaml:"block"`
	MaxBlockSize uint32 `yaml:"maxBlockSize,omitempty"`
}

const (
	Cfg_chain_genesisFile          = "chain.genesisFile"
	Cfg_chain_threshold            = "chain.threshold"
	Cfg_chain_maxCombineSignatures = "chain.maxCombineSignatures"
	Cfg_chain_sizeEncoding         = "chain.sizeEncoding"
)

var (
	chainDefaults = map[string]interface{}{
		Cfg_chain_genesisFile:          "genesis.yaml",
		Cfg_chain_threshold:            signature.DefaultThreshold,
		Cfg_chain_maxCombineSignatures: signature.DefaultMaxSignatures,
		Cfg_chain_sizeEncoding:         xfield.SizeFixed32.String(),
	}
)

func buildChainConfig() (*Chain, error) {
	c := &Chain{
		Threshold:            viper.GetInt(Cfg_chain_threshold),
		MaxCombineSignatures: viper.GetInt(Cfg_chain_maxCombineSignatures),
	}

	enc, err := xfield.ParseSizeEncoding(viper.GetString(Cfg_chain_sizeEncoding))
	if err != nil {
		return nil, err
	}
	c.SizeEncoding = enc

	c.Genesis, err = LoadGenesis(os.ExpandEnv(viper.GetString(Cfg_chain_genesisFile)))
	if err != nil {
		return nil, err
	}

	return c, nil
}

func LoadGenesis(path string) (*Genesis, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading genesis file")
	}

	return ParseGenesis(b)
}

func ParseGenesis(b []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := yaml.Unmarshal(b, g); err != nil {
		return nil, errors.Wrap(err, "unmarshalling genesis")
	}
	if g.Block == "" {
		return nil, errors.New("genesis has no block")
	}

	return g, nil
}

func (g *Genesis) Marshal() ([]byte, error) {
	return yaml.Marshal(g)
}

func (c *Chain) Codec() xfield.Codec {
	return xfield.Codec{SizeEncoding: c.SizeEncoding}
}

// Params decodes the genesis block into chain parameters.
func (c *Chain) Params() (chain.Params, error) {
	codec := c.Codec()

	blk, err := block.ParseHex(c.Genesis.Block, codec)
	if err != nil {
		return chain.Params{}, errors.Wrap(err, "decoding genesis block")
	}

	return chain.Params{
		ChainID:             c.Genesis.ChainID,
		Genesis:             blk,
		GenesisMaxBlockSize: xfield.MaxBlockSize(c.Genesis.MaxBlockSize),
		Codec:               codec,
	}, nil
}

func (c *Chain) SignatureConfig() signature.Config {
	cfg := signature.DefaultConfig()
	cfg.Threshold = c.Threshold
	cfg.MaxSignatures = c.MaxCombineSignatures
	cfg.Codec = c.Codec()
	return cfg
}
