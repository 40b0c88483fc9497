package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tcfw/fedchain/pkg/block"
)

func TestHashFilter(t *testing.T) {
	f := NewHashFilter(100)

	a := block.Hash256([]byte{1})
	b := block.Hash256([]byte{2})

	assert.False(t, f.Add(a))
	assert.True(t, f.Add(a))
	assert.True(t, f.Contains(a))
	assert.False(t, f.Contains(b))

	enc, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}

	g := NewHashFilter(100)
	if err := g.Decode(enc); err != nil {
		t.Fatal(err)
	}

	assert.True(t, g.Contains(a))
	assert.False(t, g.Contains(b))
}

func TestHashFilterReset(t *testing.T) {
	f := NewHashFilter(2)

	a := block.Hash256([]byte{1})
	f.Add(a)
	f.Add(block.Hash256([]byte{2}))

	// third distinct insert clears the filter first
	f.Add(block.Hash256([]byte{3}))

	assert.False(t, f.Contains(a))
}

func TestHashFilterDecodeKeepsCount(t *testing.T) {
	f := NewHashFilter(100)
	for i := byte(0); i < 20; i++ {
		f.Add(block.Hash256([]byte{i}))
	}

	enc, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}

	g := NewHashFilter(100)
	if err := g.Decode(enc); err != nil {
		t.Fatal(err)
	}

	assert.InDelta(t, 20, g.count, 3)
}
