package node

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcfw/fedchain/internal/config"
	"github.com/tcfw/fedchain/pkg/chain"
	"github.com/tcfw/fedchain/pkg/cryptography"
	"github.com/tcfw/fedchain/pkg/xfield"
)

const keyHex = "c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3"

func testConfig(t *testing.T, engine string) *config.Config {
	sk, err := cryptography.NewSecp256k1PrivateKeyFromHex(keyHex)
	require.NoError(t, err)

	g, err := chain.NewGenesis(sk, 1600000000, xfield.DefaultCodec, []byte("genesis"))
	require.NoError(t, err)

	h, err := g.Hex(xfield.DefaultCodec)
	require.NoError(t, err)

	return &config.Config{
		Chain: &config.Chain{
			Genesis:              &config.Genesis{ChainID: "test", Block: h},
			Threshold:            1,
			MaxCombineSignatures: 9,
			SizeEncoding:         xfield.SizeFixed32,
		},
		Storage: &config.Storage{Engine: engine, DataDir: t.TempDir()},
		API:     &config.API{Listen: "127.0.0.1:0"},
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewNode(t *testing.T) {
	for _, engine := range []string{config.EngineMemory, config.EnginePebble} {
		t.Run(engine, func(t *testing.T) {
			n, err := NewNode(context.Background(), WithConfig(testConfig(t, engine)), WithLogger(testLogger()))
			require.NoError(t, err)
			defer n.Stop()

			info := n.Chain().ChainInfo()
			assert.Equal(t, "test", info.Chain)
			assert.Equal(t, uint32(0), info.Blocks)

			mfs, err := n.Registry().Gather()
			require.NoError(t, err)

			names := map[string]bool{}
			for _, mf := range mfs {
				names[mf.GetName()] = true
			}
			assert.True(t, names["fedchain_chain_height"])
		})
	}
}

func TestNewNodeBadConfig(t *testing.T) {
	cfg := testConfig(t, config.EngineMemory)
	cfg.Chain.Threshold = 0

	_, err := NewNode(context.Background(), WithConfig(cfg), WithLogger(testLogger()))
	assert.Error(t, err)

	cfg = testConfig(t, "leveldb")
	_, err = NewNode(context.Background(), WithConfig(cfg), WithLogger(testLogger()))
	assert.Error(t, err)
}

func TestNewNodeReleasesStoreOnError(t *testing.T) {
	cfg := testConfig(t, config.EnginePebble)
	cfg.Chain.Threshold = 0

	_, err := NewNode(context.Background(), WithConfig(cfg), WithLogger(testLogger()))
	require.Error(t, err)

	// the data directory lock is free again
	cfg.Chain.Threshold = 1
	n, err := NewNode(context.Background(), WithConfig(cfg), WithLogger(testLogger()))
	require.NoError(t, err)
	require.NoError(t, n.Stop())
}
