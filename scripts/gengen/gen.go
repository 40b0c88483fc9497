package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/tcfw/fedchain/internal/config"
	"github.com/tcfw/fedchain/pkg/chain"
	"github.com/tcfw/fedchain/pkg/cryptography"
	"github.com/tcfw/fedchain/pkg/xfield"
)

var (
	chainID      string
	keyHex       string
	coinbase     string
	encoding     string
	maxBlockSize uint32
)

func main() {
	cmd := &cobra.Command{
		Use:   "gengen",
		Short: "generate a genesis file signed by a single federation key",
		RunE:  run,
	}

	cmd.Flags().StringVar(&chainID, "chain", "testnet", "chain id")
	cmd.Flags().StringVar(&keyHex, "key", "", "federation private key hex; generated when empty")
	cmd.Flags().StringVar(&coinbase, "coinbase", "genesis", "coinbase payload")
	cmd.Flags().StringVar(&encoding, "size-encoding", xfield.SizeFixed32.String(), "max block size xfield encoding")
	cmd.Flags().Uint32Var(&maxBlockSize, "max-block-size", 0, "initial max block size; 0 uses the default")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if keyHex == "" {
		k, err := ethCrypto.GenerateKey()
		if err != nil {
			return err
		}
		keyHex = hexutil.Encode(ethCrypto.FromECDSA(k))[2:]
		fmt.Fprintf(os.Stderr, "Federation key: %s\n", keyHex)
	}

	sk, err := cryptography.NewSecp256k1PrivateKeyFromHex(keyHex)
	if err != nil {
		return err
	}

	enc, err := xfield.ParseSizeEncoding(encoding)
	if err != nil {
		return err
	}
	codec := xfield.Codec{SizeEncoding: enc}

	g, err := chain.NewGenesis(sk, uint32(time.Now().Unix()), codec, []byte(coinbase))
	if err != nil {
		return err
	}

	h, err := g.Hex(codec)
	if err != nil {
		return err
	}

	out, err := (&config.Genesis{ChainID: chainID, Block: h, MaxBlockSize: maxBlockSize}).Marshal()
	if err != nil {
		return err
	}

	fmt.Printf("%s", out)
	return nil
}
