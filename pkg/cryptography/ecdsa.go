package cryptography

import (
	"bytes"
	"crypto/ecdsa"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	dcrecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	CompressedPubkeyLen = 33

	pubkeyEven = 0x02
	pubkeyOdd  = 0x03
)

var (
	ErrPubkeyFormat      = errors.New("public key is not compressed")
	ErrPubkeyNotOnCurve  = errors.New("public key is not a valid curve point")
	ErrSignatureEncoding = errors.New("signature is not canonical DER")
)

type Secp256k1PrivateKey struct {
	*ecdsa.PrivateKey
}

// NewSecp256k1PrivateKeyFromHex loads a private key from a 32 byte hex scalar.
func NewSecp256k1PrivateKeyFromHex(h string) (*Secp256k1PrivateKey, error) {
	pk, err := ethCrypto.HexToECDSA(h)
	if err != nil {
		return nil, errors.Wrap(err, "decoding ecdsa key")
	}

	return &Secp256k1PrivateKey{pk}, nil
}

func (p *Secp256k1PrivateKey) Bytes() []byte {
	return ethCrypto.FromECDSA(p.PrivateKey)
}

func (p *Secp256k1PrivateKey) Public() *Secp256k1PublicKey {
	return &Secp256k1PublicKey{p.PublicKey}
}

// SignDER signs a 32 byte digest and returns a canonical (low-S) DER
// signature. The nonce is derived per RFC6979; iteration selects a later
// nonce from the same stream so a single key can produce several distinct
// valid signatures over one digest.
func (p *Secp256k1PrivateKey) SignDER(hash []byte, iteration uint32) []byte {
	priv := secp256k1.PrivKeyFromBytes(p.Bytes())
	defer priv.Zero()

	var privBytes [32]byte
	priv.Key.PutBytes(&privBytes)

	var e secp256k1.ModNScalar
	e.SetByteSlice(hash)

	for iter := iteration; ; iter++ {
		k := secp256k1.NonceRFC6979(privBytes[:], hash, nil, nil, iter)

		var R secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(k, &R)
		R.ToAffine()

		var r secp256k1.ModNScalar
		r.SetByteSlice(R.X.Bytes()[:])
		if r.IsZero() {
			k.Zero()
			continue
		}

		kinv := new(secp256k1.ModNScalar).InverseValNonConst(k)
		k.Zero()

		s := new(secp256k1.ModNScalar).Mul2(&priv.Key, &r).Add(&e).Mul(kinv)
		if s.IsZero() {
			continue
		}

		return dcrecdsa.NewSignature(&r, s).Serialize()
	}
}

type Secp256k1PublicKey struct {
	ecdsa.PublicKey
}

// ParseCompressedPubkey validates a 33 byte compressed secp256k1 point.
func ParseCompressedPubkey(d []byte) (*Secp256k1PublicKey, error) {
	if len(d) != CompressedPubkeyLen || (d[0] != pubkeyEven && d[0] != pubkeyOdd) {
		return nil, ErrPubkeyFormat
	}

	pub, err := ethCrypto.DecompressPubkey(d)
	if err != nil {
		return nil, errors.Wrap(ErrPubkeyNotOnCurve, err.Error())
	}

	return &Secp256k1PublicKey{*pub}, nil
}

func (p *Secp256k1PublicKey) Bytes() []byte {
	return ethCrypto.CompressPubkey(&p.PublicKey)
}

// Verifier returns the key in the form used by signature checks.
func (p *Secp256k1PublicKey) Verifier() (*secp256k1.PublicKey, error) {
	return secp256k1.ParsePubKey(p.Bytes())
}

// ParseCanonicalSignature parses a strict DER signature and additionally
// requires it to be in its canonical low-S serialization.
func ParseCanonicalSignature(sig []byte) (*dcrecdsa.Signature, error) {
	s, err := dcrecdsa.ParseDERSignature(sig)
	if err != nil {
		return nil, errors.Wrap(ErrSignatureEncoding, err.Error())
	}

	if !bytes.Equal(s.Serialize(), sig) {
		return nil, errors.Wrap(ErrSignatureEncoding, "high S value")
	}

	return s, nil
}
