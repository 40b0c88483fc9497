package block

import (
	"encoding/hex"

	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
)

const HashSize = 32

// Hash is a double-SHA256 digest. Its string form is byte-reversed hex, the
// way block hashes are displayed on the RPC surface.
type Hash [HashSize]byte

var ZeroHash Hash

func (h Hash) String() string {
	var r [HashSize]byte
	for i := 0; i < HashSize; i++ {
		r[i] = h[HashSize-1-i]
	}
	return hex.EncodeToString(r[:])
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// NewHashFromStr parses the reversed-hex form produced by String.
func NewHashFromStr(s string) (Hash, error) {
	var h Hash

	b, err := hex.DecodeString(s)
	if err != nil {
		return h, errors.Wrap(err, "decoding hash")
	}
	if len(b) != HashSize {
		return h, errors.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}

	for i := 0; i < HashSize; i++ {
		h[i] = b[HashSize-1-i]
	}

	return h, nil
}

// Hash256 is SHA256(SHA256(b)).
func Hash256(b []byte) Hash {
	first := sha256.Sum256(b)
	return Hash(sha256.Sum256(first[:]))
}
