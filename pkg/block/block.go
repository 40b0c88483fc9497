package block

import (
	"bytes"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/wire"
	"github.com/tcfw/fedchain/pkg/xfield"
)

const (
	// MaxBlockTxCount bounds the transaction count read off the wire.
	MaxBlockTxCount = 100000

	maxTxSize = 4000000
)

var ErrMalformedBlock = errors.New("malformed block")

// Block is a header plus the opaque transactions it commits to. The
// transaction format belongs to the body validator.
type Block struct {
	Header Header
	Txs    [][]byte
}

func (b *Block) Hash(c xfield.Codec) Hash {
	return b.Header.BlockHash(c)
}

func (b *Block) Serialize(w io.Writer, c xfield.Codec) error {
	if err := b.Header.Serialize(w, c); err != nil {
		return err
	}

	if err := wire.WriteCompactSize(w, uint64(len(b.Txs))); err != nil {
		return err
	}
	for _, tx := range b.Txs {
		if err := wire.WriteVarBytes(w, tx); err != nil {
			return err
		}
	}

	return nil
}

func (b *Block) Bytes(c xfield.Codec) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Serialize(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Size is the serialized size used for max block size checks.
func (b *Block) Size(c xfield.Codec) (int, error) {
	raw, err := b.Bytes(c)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

func (b *Block) Hex(c xfield.Codec) (string, error) {
	raw, err := b.Bytes(c)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func (b *Block) Deserialize(r io.Reader, c xfield.Codec) error {
	if err := b.Header.Deserialize(r, c); err != nil {
		return err
	}

	n, err := wire.ReadCompactSize(r)
	if err != nil {
		return errors.Wrapf(ErrMalformedBlock, "tx count: %s", err)
	}
	if n > MaxBlockTxCount {
		return errors.Wrapf(ErrMalformedBlock, "%d transactions", n)
	}

	b.Txs = make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		tx, err := wire.ReadVarBytes(r, maxTxSize)
		if err != nil {
			return errors.Wrapf(ErrMalformedBlock, "tx %d: %s", i, err)
		}
		b.Txs = append(b.Txs, tx)
	}

	return nil
}

// Parse decodes a complete block, rejecting trailing bytes.
func Parse(raw []byte, c xfield.Codec) (*Block, error) {
	r := bytes.NewReader(raw)

	b := &Block{}
	if err := b.Deserialize(r, c); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(ErrMalformedBlock, "%d trailing bytes", r.Len())
	}

	return b, nil
}

func ParseHex(s string, c xfield.Codec) (*Block, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedBlock, err.Error())
	}
	return Parse(raw, c)
}

// ParseHeader decodes a lone header as relayed in headers announcements.
func ParseHeader(raw []byte, c xfield.Codec) (*Header, error) {
	r := bytes.NewReader(raw)

	h := &Header{}
	if err := h.Deserialize(r, c); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Wrapf(ErrMalformedHeader, "%d trailing bytes", r.Len())
	}

	return h, nil
}

func (b *Block) Copy() *Block {
	c := &Block{Header: *b.Header.Copy()}
	c.Txs = make([][]byte, len(b.Txs))
	for i, tx := range b.Txs {
		c.Txs[i] = append([]byte(nil), tx...)
	}
	return c
}
