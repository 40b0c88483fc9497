package api

import (
	"github.com/gorilla/rpc/v2/json2"
	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/chain"
	"github.com/tcfw/fedchain/pkg/signature"
)

// JSON-RPC error codes shared with bitcoin-derived node software.
const (
	codeInvalidParams    json2.ErrorCode = -32602
	codeMisc             json2.ErrorCode = -1
	codeInvalidAddrOrKey json2.ErrorCode = -5
	codeInvalidParameter json2.ErrorCode = -8
	codeDeserialization  json2.ErrorCode = -22
	codeVerify           json2.ErrorCode = -25
	codeInternal         json2.ErrorCode = -32603
)

func rpcError(code json2.ErrorCode, msg string) *json2.Error {
	return &json2.Error{Code: code, Message: msg}
}

// toRPC maps chain errors onto their JSON-RPC codes. verify is the code
// used for consensus rejections.
func toRPC(err error, verify json2.ErrorCode) error {
	if err == nil {
		return nil
	}

	if rej, ok := chain.AsReject(err); ok {
		return rpcError(verify, rej.Error())
	}

	switch errors.Cause(err) {
	case chain.ErrDecode:
		return rpcError(codeDeserialization, chain.ErrDecode.Error())
	case chain.ErrFederationBlock:
		return rpcError(codeInvalidParameter, chain.ErrFederationBlock.Error())
	case chain.ErrUnknownBlock:
		return rpcError(codeInvalidAddrOrKey, chain.ErrUnknownBlock.Error())
	case chain.ErrNotBestChain, chain.ErrNonStandard:
		return rpcError(codeVerify, errors.Cause(err).Error())
	case signature.ErrEmptySignatures, signature.ErrTooManySignatures:
		return rpcError(codeInvalidParams, errors.Cause(err).Error())
	case chain.ErrGenesis:
		return rpcError(codeMisc, err.Error())
	}

	return rpcError(codeInternal, err.Error())
}
