package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tcfw/fedchain/internal/api"
	"github.com/tcfw/fedchain/internal/utils/logging"
)

var (
	chainCmd = &cobra.Command{
		Use:   "chain",
		Short: "Chain commands",
	}

	chain_submitCmd = &cobra.Command{
		Use:   "submit <blockhex|->",
		Short: "submit a signed block",
		Args:  cobra.ExactArgs(1),
		Run:   runChainSubmit,
	}

	chain_combineCmd = &cobra.Command{
		Use:   "combine <blockhex> <signature>...",
		Short: "add federation signatures to a block's proof",
		Args:  cobra.MinimumNArgs(2),
		Run:   runChainCombine,
	}

	chain_testCmd = &cobra.Command{
		Use:   "testproposed <blockhex|->",
		Short: "check an unsigned block would extend the tip",
		Args:  cobra.ExactArgs(1),
		Run:   runChainTestProposed,
	}

	chain_infoCmd = &cobra.Command{
		Use:   "info",
		Short: "show the active chain and federation history",
		Run:   runChainInfo,
	}

	chain_invalidateCmd = &cobra.Command{
		Use:   "invalidate <blockhash>",
		Short: "mark a block and its descendants invalid",
		Args:  cobra.ExactArgs(1),
		Run:   runChainInvalidate,
	}

	chain_reconsiderCmd = &cobra.Command{
		Use:   "reconsider <blockhash>",
		Short: "clear invalid marks from a block and its descendants",
		Args:  cobra.ExactArgs(1),
		Run:   runChainReconsider,
	}

	chain_headerCmd = &cobra.Command{
		Use:   "header <blockhash>",
		Short: "show a block header",
		Args:  cobra.ExactArgs(1),
		Run:   runChainHeader,
	}

	chain_hashCmd = &cobra.Command{
		Use:   "hash <height>",
		Short: "show the hash of the active block at a height",
		Args:  cobra.ExactArgs(1),
		Run:   runChainHash,
	}
)

func init() {
	chain_testCmd.Flags().Bool("accept-nonstd", false, "skip standardness checks")
}

func client() (*api.Client, context.Context, context.CancelFunc, bool) {
	c, err := api.NewClient()
	if err != nil {
		logging.WithError(err).Error("constructing client")
		return nil, nil, nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	return c, ctx, cancel, true
}

// readHexArg returns arg, or stdin when arg is "-".
func readHexArg(arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}

	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", errors.Wrap(err, "reading stdin")
	}
	return strings.TrimSpace(string(b)), nil
}

func printJSON(v interface{}) {
	s, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logging.WithError(err).Error("encoding output")
		return
	}

	fmt.Printf("%s\n", s)
}

func runChainSubmit(cmd *cobra.Command, args []string) {
	blk, err := readHexArg(args[0])
	if err != nil {
		logging.WithError(err).Error("reading block")
		return
	}

	c, ctx, cancel, ok := client()
	if !ok {
		return
	}
	defer cancel()

	res, err := c.SubmitBlock(ctx, blk)
	if err != nil {
		logging.WithError(err).Error("submitting block")
		return
	}

	printJSON(res)
}

func runChainCombine(cmd *cobra.Command, args []string) {
	c, ctx, cancel, ok := client()
	if !ok {
		return
	}
	defer cancel()

	res, err := c.CombineBlockSigs(ctx, args[0], args[1:])
	if err != nil {
		logging.WithError(err).Error("combining signatures")
		return
	}

	printJSON(res)
}

func runChainTestProposed(cmd *cobra.Command, args []string) {
	blk, err := readHexArg(args[0])
	if err != nil {
		logging.WithError(err).Error("reading block")
		return
	}

	nonstd, _ := cmd.Flags().GetBool("accept-nonstd")

	c, ctx, cancel, ok := client()
	if !ok {
		return
	}
	defer cancel()

	res, err := c.TestProposedBlock(ctx, blk, nonstd)
	if err != nil {
		logging.WithError(err).Error("testing block")
		return
	}

	printJSON(res)
}

func runChainInfo(cmd *cobra.Command, args []string) {
	c, ctx, cancel, ok := client()
	if !ok {
		return
	}
	defer cancel()

	info, err := c.GetBlockchainInfo(ctx)
	if err != nil {
		logging.WithError(err).Error("fetching chain info")
		return
	}

	printJSON(info)
}

func runChainInvalidate(cmd *cobra.Command, args []string) {
	c, ctx, cancel, ok := client()
	if !ok {
		return
	}
	defer cancel()

	if err := c.InvalidateBlock(ctx, args[0]); err != nil {
		logging.WithError(err).Error("invalidating block")
	}
}

func runChainReconsider(cmd *cobra.Command, args []string) {
	c, ctx, cancel, ok := client()
	if !ok {
		return
	}
	defer cancel()

	if err := c.ReconsiderBlock(ctx, args[0]); err != nil {
		logging.WithError(err).Error("reconsidering block")
	}
}

func runChainHeader(cmd *cobra.Command, args []string) {
	c, ctx, cancel, ok := client()
	if !ok {
		return
	}
	defer cancel()

	hdr, err := c.GetBlockHeader(ctx, args[0])
	if err != nil {
		logging.WithError(err).Error("fetching header")
		return
	}

	printJSON(hdr)
}

func runChainHash(cmd *cobra.Command, args []string) {
	height, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		logging.WithError(err).Error("parsing height")
		return
	}

	c, ctx, cancel, ok := client()
	if !ok {
		return
	}
	defer cancel()

	id, err := c.GetBlockHash(ctx, uint32(height))
	if err != nil {
		logging.WithError(err).Error("fetching block hash")
		return
	}

	fmt.Println(id)
}
