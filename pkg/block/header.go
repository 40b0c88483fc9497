package block

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/wire"
	"github.com/tcfw/fedchain/pkg/xfield"
)

const (
	// MaxProofSignatures bounds the number of signatures a proof may carry.
	MaxProofSignatures = 64

	// maxSignatureLen is the longest DER ECDSA signature.
	maxSignatureLen = 72

	// fixedHeaderLen covers version, the three hashes and time.
	fixedHeaderLen = 4 + 3*HashSize + 4
)

var ErrMalformedHeader = errors.New("malformed block header")

type Header struct {
	Version                 int32
	HashPrevBlock           Hash
	HashMerkleRoot          Hash
	HashImmutableMerkleRoot Hash
	Time                    uint32
	XFieldType              xfield.Type
	XFieldPayload           []byte
	Proof                   [][]byte
}

// SetXField stores x in its wire representation using codec c.
func (h *Header) SetXField(c xfield.Codec, x xfield.XField) {
	h.XFieldType, h.XFieldPayload = c.Encode(x)
}

// XField decodes and validates the header extension.
func (h *Header) XField(c xfield.Codec) (xfield.XField, error) {
	return c.Decode(h.XFieldType, h.XFieldPayload)
}

// SigHash is the digest the federation signs: hash256 over every header
// field up to and including the xfield.
func (h *Header) SigHash(c xfield.Codec) (Hash, error) {
	var buf bytes.Buffer
	if err := h.writeUnsigned(&buf, c); err != nil {
		return Hash{}, err
	}
	return Hash256(buf.Bytes()), nil
}

// BlockHash identifies the block. It is the sighash, so combining
// signatures into the proof does not change a block's identity.
func (h *Header) BlockHash(c xfield.Codec) Hash {
	hash, err := h.SigHash(c)
	if err != nil {
		// unencodable headers never enter the index; hash what we can
		var buf bytes.Buffer
		h.writeFixed(&buf)
		buf.WriteByte(byte(h.XFieldType))
		buf.Write(h.XFieldPayload)
		return Hash256(buf.Bytes())
	}
	return hash
}

func (h *Header) writeFixed(w *bytes.Buffer) {
	var b [4]byte

	binary.LittleEndian.PutUint32(b[:], uint32(h.Version))
	w.Write(b[:])
	w.Write(h.HashPrevBlock[:])
	w.Write(h.HashMerkleRoot[:])
	w.Write(h.HashImmutableMerkleRoot[:])
	binary.LittleEndian.PutUint32(b[:], h.Time)
	w.Write(b[:])
}

func (h *Header) writeUnsigned(w *bytes.Buffer, c xfield.Codec) error {
	h.writeFixed(w)
	w.WriteByte(byte(h.XFieldType))

	return c.WritePayload(w, h.XFieldType, h.XFieldPayload)
}

func (h *Header) Serialize(w io.Writer, c xfield.Codec) error {
	var buf bytes.Buffer
	if err := h.writeUnsigned(&buf, c); err != nil {
		return err
	}

	if err := wire.WriteCompactSize(&buf, uint64(len(h.Proof))); err != nil {
		return err
	}
	for _, sig := range h.Proof {
		if err := wire.WriteVarBytes(&buf, sig); err != nil {
			return err
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func (h *Header) Deserialize(r io.Reader, c xfield.Codec) error {
	var fixed [fixedHeaderLen + 1]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return errors.Wrap(ErrMalformedHeader, err.Error())
	}

	h.Version = int32(binary.LittleEndian.Uint32(fixed[0:4]))
	copy(h.HashPrevBlock[:], fixed[4:36])
	copy(h.HashMerkleRoot[:], fixed[36:68])
	copy(h.HashImmutableMerkleRoot[:], fixed[68:100])
	h.Time = binary.LittleEndian.Uint32(fixed[100:104])
	h.XFieldType = xfield.Type(fixed[104])

	payload, err := c.ReadPayload(r, h.XFieldType)
	if err != nil {
		return errors.Wrapf(ErrMalformedHeader, "xfield type %d: %s", h.XFieldType, err)
	}
	h.XFieldPayload = payload

	n, err := wire.ReadCompactSize(r)
	if err != nil {
		return errors.Wrapf(ErrMalformedHeader, "proof length: %s", err)
	}
	if n > MaxProofSignatures {
		return errors.Wrapf(ErrMalformedHeader, "proof has %d signatures", n)
	}

	h.Proof = make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		sig, err := wire.ReadVarBytes(r, maxSignatureLen)
		if err != nil {
			return errors.Wrapf(ErrMalformedHeader, "proof signature %d: %s", i, err)
		}
		h.Proof = append(h.Proof, sig)
	}

	return nil
}

func (h *Header) Copy() *Header {
	c := *h
	c.XFieldPayload = append([]byte(nil), h.XFieldPayload...)
	c.Proof = make([][]byte, len(h.Proof))
	for i, sig := range h.Proof {
		c.Proof[i] = append([]byte(nil), sig...)
	}
	return &c
}
