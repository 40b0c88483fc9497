package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/cryptography"
	"github.com/tcfw/fedchain/pkg/xfield"
)

const keyHex = "c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3"

func genesisHex(t *testing.T) string {
	sk, err := cryptography.NewSecp256k1PrivateKeyFromHex(keyHex)
	require.NoError(t, err)

	var agg xfield.AggregatePubkey
	copy(agg[:], sk.Public().Bytes())

	txs := [][]byte{[]byte("genesis")}
	b := &block.Block{
		Header: block.Header{Version: 1, HashMerkleRoot: block.MerkleRoot(txs), Time: 1600000000},
		Txs:    txs,
	}
	b.Header.SetXField(xfield.DefaultCodec, agg)

	digest, err := b.Header.SigHash(xfield.DefaultCodec)
	require.NoError(t, err)
	b.Header.Proof = [][]byte{sk.SignDER(digest[:], 0)}

	h, err := b.Hex(xfield.DefaultCodec)
	require.NoError(t, err)
	return h
}

func reset() {
	viper.Reset()
	SetDefaults()
}

func TestGenesisRoundTrip(t *testing.T) {
	g := &Genesis{ChainID: "dev", Block: genesisHex(t), MaxBlockSize: 2000}

	b, err := g.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(b), "chainId: dev")

	got, err := ParseGenesis(b)
	require.NoError(t, err)
	assert.Equal(t, g, got)

	_, err = ParseGenesis([]byte("chainId: dev\n"))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")

	g := &Genesis{ChainID: "dev", Block: genesisHex(t)}
	b, err := g.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))

	viper.Set(Cfg_chain_genesisFile, path)
	viper.Set(Cfg_chain_threshold, 2)
	viper.Set(Cfg_chain_sizeEncoding, "compact")
	viper.Set(Cfg_storage_engine, EngineMemory)
	viper.Set(Cfg_api_listen, "127.0.0.1:0")
	t.Cleanup(reset)

	c, err := Build()
	require.NoError(t, err)

	assert.Equal(t, 2, c.Chain.Threshold)
	assert.Equal(t, 9, c.Chain.MaxCombineSignatures)
	assert.Equal(t, xfield.SizeCompact, c.Chain.SizeEncoding)
	assert.Equal(t, EngineMemory, c.Storage.Engine)
	assert.Equal(t, "127.0.0.1:0", c.API.Listen)

	p, err := c.Chain.Params()
	require.NoError(t, err)
	assert.Equal(t, "dev", p.ChainID)
	assert.Equal(t, xfield.TypeAggPubkey, p.Genesis.Header.XFieldType)

	sig := c.Chain.SignatureConfig()
	assert.Equal(t, 2, sig.Threshold)
	assert.Equal(t, xfield.SizeCompact, sig.Codec.SizeEncoding)
}

func TestBuildErrors(t *testing.T) {
	t.Cleanup(reset)

	viper.Set(Cfg_chain_genesisFile, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Build()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("block: 00\n"), 0o600))
	viper.Set(Cfg_chain_genesisFile, path)

	viper.Set(Cfg_chain_sizeEncoding, "varint")
	_, err = Build()
	assert.Error(t, err)

	viper.Set(Cfg_chain_sizeEncoding, "fixed32")
	viper.Set(Cfg_storage_engine, "leveldb")
	_, err = Build()
	assert.Error(t, err)
}
