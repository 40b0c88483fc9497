package api

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/tcfw/fedchain/internal/config"
	"github.com/tcfw/fedchain/pkg/chain"
)

// Client calls the daemon's JSON-RPC endpoint.
type Client struct {
	url string
	hc  *http.Client
}

func NewClient() (*Client, error) {
	addr := viper.GetString(config.Cfg_api_listen)
	if addr == "" {
		return nil, errors.New("no api address configured")
	}

	return NewClientWithURL("http://" + addr + "/"), nil
}

func NewClientWithURL(url string) *Client {
	return &Client{
		url: url,
		hc:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Call invokes method on the chain service and decodes the result into reply.
// Server side failures come back as *json2.Error.
func (c *Client) Call(ctx context.Context, method string, args interface{}, reply interface{}) error {
	body, err := json2.EncodeClientRequest("chain."+method, args)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling daemon")
	}
	defer resp.Body.Close()

	return json2.DecodeClientResponse(resp.Body, reply)
}

func (c *Client) SubmitBlock(ctx context.Context, blockHex string) (*SubmitBlockReply, error) {
	reply := &SubmitBlockReply{}
	return reply, c.Call(ctx, "SubmitBlock", &SubmitBlockArgs{Hex: blockHex}, reply)
}

func (c *Client) CombineBlockSigs(ctx context.Context, blockHex string, sigs []string) (*CombineBlockSigsReply, error) {
	reply := &CombineBlockSigsReply{}
	return reply, c.Call(ctx, "CombineBlockSigs", &CombineBlockSigsArgs{BlockHex: blockHex, Signatures: sigs}, reply)
}

func (c *Client) TestProposedBlock(ctx context.Context, blockHex string, acceptNonStandard bool) (bool, error) {
	reply := &TestProposedBlockReply{}
	err := c.Call(ctx, "TestProposedBlock", &TestProposedBlockArgs{BlockHex: blockHex, AcceptNonStandard: acceptNonStandard}, reply)
	return reply.Result, err
}

func (c *Client) GetBlockchainInfo(ctx context.Context) (*chain.ChainInfo, error) {
	reply := &chain.ChainInfo{}
	return reply, c.Call(ctx, "GetBlockchainInfo", &GetBlockchainInfoArgs{}, reply)
}

func (c *Client) InvalidateBlock(ctx context.Context, hash string) error {
	return c.Call(ctx, "InvalidateBlock", &BlockHashArgs{BlockHash: hash}, &EmptyReply{})
}

func (c *Client) ReconsiderBlock(ctx context.Context, hash string) error {
	return c.Call(ctx, "ReconsiderBlock", &BlockHashArgs{BlockHash: hash}, &EmptyReply{})
}

func (c *Client) GetBlockHeader(ctx context.Context, hash string) (*BlockHeaderReply, error) {
	reply := &BlockHeaderReply{}
	return reply, c.Call(ctx, "GetBlockHeader", &BlockHashArgs{BlockHash: hash}, reply)
}

func (c *Client) GetBlockHash(ctx context.Context, height uint32) (string, error) {
	reply := &BlockHashReply{}
	err := c.Call(ctx, "GetBlockHash", &BlockHeightArgs{Height: height}, reply)
	return reply.Hash, err
}
