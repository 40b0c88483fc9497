package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	// MaxSize caps any length-prefixed item read off the wire.
	MaxSize = 0x02000000
)

var (
	ErrNonCanonical = errors.New("non-canonical compact size")
	ErrTooLarge     = errors.New("compact size exceeds limit")
)

// WriteCompactSize writes v using the Bitcoin CompactSize encoding.
func WriteCompactSize(w io.Writer, v uint64) error {
	var buf [9]byte

	switch {
	case v < 0xfd:
		buf[0] = byte(v)
		_, err := w.Write(buf[:1])
		return err
	case v <= 0xffff:
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:], uint16(v))
		_, err := w.Write(buf[:3])
		return err
	case v <= 0xffffffff:
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:], uint32(v))
		_, err := w.Write(buf[:5])
		return err
	default:
		buf[0] = 0xff
		binary.LittleEndian.PutUint64(buf[1:], v)
		_, err := w.Write(buf[:9])
		return err
	}
}

// ReadCompactSize reads a CompactSize integer, rejecting encodings that
// are not minimal.
func ReadCompactSize(r io.Reader) (uint64, error) {
	var buf [8]byte

	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return 0, err
	}

	var (
		v   uint64
		min uint64
	)

	switch buf[0] {
	case 0xfd:
		if _, err := io.ReadFull(r, buf[:2]); err != nil {
			return 0, noEOF(err)
		}
		v = uint64(binary.LittleEndian.Uint16(buf[:2]))
		min = 0xfd
	case 0xfe:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return 0, noEOF(err)
		}
		v = uint64(binary.LittleEndian.Uint32(buf[:4]))
		min = 0x10000
	case 0xff:
		if _, err := io.ReadFull(r, buf[:8]); err != nil {
			return 0, noEOF(err)
		}
		v = binary.LittleEndian.Uint64(buf[:8])
		min = 0x100000000
	default:
		return uint64(buf[0]), nil
	}

	if v < min {
		return 0, errors.Wrapf(ErrNonCanonical, "value %d encoded with prefix %#x", v, buf[0])
	}

	return v, nil
}

// CompactSizeLen returns the number of bytes WriteCompactSize uses for v.
func CompactSizeLen(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteCompactSize(w, uint64(len(b))); err != nil {
		return err
	}

	_, err := w.Write(b)
	return err
}

// ReadVarBytes reads a CompactSize length followed by that many bytes. Lengths
// above max are rejected before any allocation.
func ReadVarBytes(r io.Reader, max uint64) ([]byte, error) {
	n, err := ReadCompactSize(r)
	if err != nil {
		return nil, err
	}

	if n > max {
		return nil, errors.Wrapf(ErrTooLarge, "%d > %d", n, max)
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, noEOF(err)
	}

	return b, nil
}

// a short read past the first byte is always a truncated item
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
