package storage

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/tcfw/fedchain/pkg/block"
)

const (
	falsePositive = 0.01

	// DefaultFilterCapacity is the number of hashes a HashFilter holds
	// before it is reset.
	DefaultFilterCapacity = 10000
)

// HashFilter is a probabilistic set of block hashes. A positive answer may
// be false, so it must only guide behaviour where a mistake is harmless,
// such as skipping a header relay the full block can still make up for.
type HashFilter struct {
	mu       sync.Mutex
	capacity uint
	count    uint
	f        *bloom.BloomFilter
}

func NewHashFilter(capacity uint) *HashFilter {
	if capacity == 0 {
		capacity = DefaultFilterCapacity
	}

	return &HashFilter{
		capacity: capacity,
		f:        bloom.NewWithEstimates(capacity, falsePositive),
	}
}

// Add records id and reports whether it was possibly seen before.
func (h *HashFilter) Add(id block.Hash) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count >= h.capacity {
		h.f.ClearAll()
		h.count = 0
	}

	seen := h.f.TestAndAdd(id[:])
	if !seen {
		h.count++
	}

	return seen
}

func (h *HashFilter) Contains(id block.Hash) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.f.Test(id[:])
}

// Encode serialises the filter so it can be carried across restarts.
func (h *HashFilter) Encode() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.f.GobEncode()
}

func (h *HashFilter) Decode(b []byte) error {
	f := bloom.NewWithEstimates(h.capacity, falsePositive)
	if err := f.GobDecode(b); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.f = f
	h.count = uint(f.ApproximatedSize())

	return nil
}
