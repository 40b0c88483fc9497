package api

import (
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/tcfw/fedchain/pkg/block"
	"github.com/tcfw/fedchain/pkg/chain"
)

func init() {
	reg = append(reg, func() APIHandler { return &ChainService{} })
}

// ChainService exposes block submission and chain queries.
type ChainService struct {
	BaseHandler
}

func (s *ChainService) Name() string {
	return "chain"
}

func (s *ChainService) chain() *chain.Chain {
	return s.a.n.Chain()
}

type SubmitBlockArgs struct {
	Hex string `json:"hex"`
}

type SubmitBlockReply struct {
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

// SubmitBlock reports consensus rejections in the reply rather than as an
// error, so callers can tell a bad block from a bad request.
func (s *ChainService) SubmitBlock(r *http.Request, args *SubmitBlockArgs, reply *SubmitBlockReply) error {
	raw, err := hex.DecodeString(args.Hex)
	if err != nil {
		return rpcError(codeDeserialization, chain.ErrDecode.Error())
	}

	res, err := s.chain().SubmitBlock(r.Context(), raw)
	if rej, ok := chain.AsReject(err); ok {
		reply.Result = "invalid"
		reply.Reason = rej.Error()
		return nil
	}
	if err != nil {
		return toRPC(err, codeVerify)
	}

	reply.Result = res.String()
	return nil
}

type CombineBlockSigsArgs struct {
	BlockHex   string   `json:"blockhex"`
	Signatures []string `json:"signatures"`
}

type CombineBlockSigsReply struct {
	Hex      string `json:"hex"`
	Complete bool   `json:"complete"`
	Warning  string `json:"warning,omitempty"`
}

func (s *ChainService) CombineBlockSigs(r *http.Request, args *CombineBlockSigsArgs, reply *CombineBlockSigsReply) error {
	raw, err := hex.DecodeString(args.BlockHex)
	if err != nil {
		return rpcError(codeDeserialization, chain.ErrDecode.Error())
	}

	sigs := make([][]byte, 0, len(args.Signatures))
	for _, sh := range args.Signatures {
		sig, err := hex.DecodeString(sh)
		if err != nil {
			return rpcError(codeDeserialization, "Signature decode failed")
		}
		sigs = append(sigs, sig)
	}

	c := s.chain()

	res, err := c.CombineBlockSigs(r.Context(), raw, sigs)
	if err != nil {
		return toRPC(err, codeVerify)
	}

	out, err := res.Block.Hex(c.Codec())
	if err != nil {
		return toRPC(err, codeVerify)
	}

	reply.Hex = out
	reply.Complete = res.Complete
	reply.Warning = res.Warning
	return nil
}

type TestProposedBlockArgs struct {
	BlockHex          string `json:"blockhex"`
	AcceptNonStandard bool   `json:"acceptnonstd"`
}

type TestProposedBlockReply struct {
	Result bool `json:"result"`
}

func (s *ChainService) TestProposedBlock(r *http.Request, args *TestProposedBlockArgs, reply *TestProposedBlockReply) error {
	raw, err := hex.DecodeString(args.BlockHex)
	if err != nil {
		return rpcError(codeDeserialization, chain.ErrDecode.Error())
	}

	if err := s.chain().TestProposedBlock(r.Context(), raw, args.AcceptNonStandard); err != nil {
		return toRPC(err, codeVerify)
	}

	reply.Result = true
	return nil
}

type GetBlockchainInfoArgs struct{}

func (s *ChainService) GetBlockchainInfo(r *http.Request, args *GetBlockchainInfoArgs, reply *chain.ChainInfo) error {
	*reply = s.chain().ChainInfo()
	return nil
}

type BlockHashArgs struct {
	BlockHash string `json:"blockhash"`
}

func (a *BlockHashArgs) hash() (block.Hash, error) {
	id, err := block.NewHashFromStr(a.BlockHash)
	if err != nil {
		return block.Hash{}, rpcError(codeInvalidParameter, "blockhash must be of length 64 (not "+strconv.Itoa(len(a.BlockHash))+")")
	}
	return id, nil
}

type EmptyReply struct{}

func (s *ChainService) InvalidateBlock(r *http.Request, args *BlockHashArgs, reply *EmptyReply) error {
	id, err := args.hash()
	if err != nil {
		return err
	}

	return toRPC(s.chain().InvalidateBlock(r.Context(), id), codeVerify)
}

func (s *ChainService) ReconsiderBlock(r *http.Request, args *BlockHashArgs, reply *EmptyReply) error {
	id, err := args.hash()
	if err != nil {
		return err
	}

	return toRPC(s.chain().ReconsiderBlock(r.Context(), id), codeVerify)
}

type BlockHeaderReply struct {
	Hash              string   `json:"hash"`
	Height            uint32   `json:"height"`
	Version           int32    `json:"version"`
	PreviousBlockHash string   `json:"previousblockhash,omitempty"`
	MerkleRoot        string   `json:"merkleroot"`
	ImMerkleRoot      string   `json:"immutablemerkleroot"`
	Time              uint32   `json:"time"`
	XFieldType        uint8    `json:"xfieldType"`
	XField            string   `json:"xfield,omitempty"`
	Proof             []string `json:"proof"`
	Active            bool     `json:"active"`
	Invalid           bool     `json:"invalid"`
}

func (s *ChainService) GetBlockHeader(r *http.Request, args *BlockHashArgs, reply *BlockHeaderReply) error {
	id, err := args.hash()
	if err != nil {
		return err
	}

	c := s.chain()

	hi, err := c.BlockHeader(id)
	if err != nil {
		return toRPC(err, codeVerify)
	}

	h := hi.Header

	reply.Hash = hi.Hash.String()
	reply.Height = hi.Height
	reply.Version = h.Version
	if !h.HashPrevBlock.IsZero() {
		reply.PreviousBlockHash = h.HashPrevBlock.String()
	}
	reply.MerkleRoot = h.HashMerkleRoot.String()
	reply.ImMerkleRoot = h.HashImmutableMerkleRoot.String()
	reply.Time = h.Time
	reply.XFieldType = uint8(h.XFieldType)
	if x, err := h.XField(c.Codec()); err == nil {
		reply.XField = x.String()
	} else {
		reply.XField = hex.EncodeToString(h.XFieldPayload)
	}
	reply.Proof = make([]string, 0, len(h.Proof))
	for _, sig := range h.Proof {
		reply.Proof = append(reply.Proof, hex.EncodeToString(sig))
	}
	reply.Active = hi.Active
	reply.Invalid = hi.Invalid

	return nil
}

type BlockHeightArgs struct {
	Height uint32 `json:"height"`
}

type BlockHashReply struct {
	Hash string `json:"hash"`
}

func (s *ChainService) GetBlockHash(r *http.Request, args *BlockHeightArgs, reply *BlockHashReply) error {
	id, err := s.chain().BlockHash(args.Height)
	if err != nil {
		return toRPC(err, codeVerify)
	}

	reply.Hash = id.String()
	return nil
}
