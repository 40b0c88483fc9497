package federation

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcfw/fedchain/pkg/xfield"
)

func TestChangeLogActive(t *testing.T) {
	l := NewChangeLog("P0")
	require.NoError(t, l.Append(11, "P1"))
	require.NoError(t, l.Append(20, "P2"))
	// a previously used key may return
	require.NoError(t, l.Append(30, "P0"))

	tests := map[uint32]string{
		0:    "P0",
		10:   "P0",
		11:   "P1",
		19:   "P1",
		20:   "P2",
		29:   "P2",
		30:   "P0",
		1000: "P0",
	}

	for h, want := range tests {
		got, ok := l.Active(h)
		assert.True(t, ok)
		assert.Equal(t, want, got, "height %d", h)
	}

	assert.Equal(t, 4, l.Len())
	assert.Equal(t, Entry[string]{Height: 30, Value: "P0"}, l.Last())
	assert.True(t, l.Contains(11))
	assert.False(t, l.Contains(12))
}

func TestChangeLogAppendOrder(t *testing.T) {
	l := NewChangeLog(1)
	require.NoError(t, l.Append(5, 2))

	err := l.Append(4, 3)
	assert.True(t, errors.Is(err, ErrHeightOrder))

	// same height replaces the tail
	require.NoError(t, l.Append(5, 4))
	assert.Equal(t, []Entry[int]{{0, 1}, {5, 4}}, l.Entries())
}

func TestChangeLogRemoveFrom(t *testing.T) {
	l := NewChangeLog("P0")
	require.NoError(t, l.Append(11, "P1"))
	require.NoError(t, l.Append(20, "P2"))
	require.NoError(t, l.Append(30, "P3"))

	removed := l.RemoveFrom(20)
	assert.Equal(t, []Entry[string]{{20, "P2"}, {30, "P3"}}, removed)
	assert.Equal(t, []Entry[string]{{0, "P0"}, {11, "P1"}}, l.Entries())

	assert.Empty(t, l.RemoveFrom(15))

	// genesis is never removed
	l.RemoveFrom(0)
	assert.Equal(t, []Entry[string]{{0, "P0"}}, l.Entries())

	// heights are free again after rollback
	require.NoError(t, l.Append(12, "P4"))
	v, _ := l.Active(12)
	assert.Equal(t, "P4", v)
}

func TestSnapshotIsolation(t *testing.T) {
	l := NewChangeLog("P0")
	require.NoError(t, l.Append(11, "P1"))

	snap := l.Snapshot()

	require.NoError(t, l.Append(20, "P2"))
	l.RemoveFrom(11)

	assert.Equal(t, []Entry[string]{{0, "P0"}, {11, "P1"}}, snap.Entries())
	v, _ := snap.Active(25)
	assert.Equal(t, "P1", v)
	assert.True(t, snap.Contains(11))

	assert.Equal(t, []Entry[string]{{0, "P0"}}, l.Entries())
}

func TestSnapshotConcurrentReads(t *testing.T) {
	l := NewChangeLog(0)
	for h := uint32(1); h <= 100; h++ {
		require.NoError(t, l.Append(h*10, int(h)))
	}

	snap := l.Snapshot()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := uint32(0); h < 1000; h++ {
				v, ok := snap.Active(h)
				assert.True(t, ok)
				assert.Equal(t, int(h/10), v)
			}
		}()
	}

	for h := uint32(1001); h < 1100; h++ {
		require.NoError(t, l.Append(h, -1))
	}
	l.RemoveFrom(500)

	wg.Wait()
}

func TestHistoryParams(t *testing.T) {
	var p0, p1 xfield.AggregatePubkey
	p0[0], p1[0] = 0x02, 0x03

	h := NewHistory(p0, 1000000)
	require.NoError(t, h.AggPubkeys.Append(11, p1))
	require.NoError(t, h.MaxBlockSizes.Append(11, 500000))

	// block 11 is checked against the values active at 10
	key, size, err := h.Params(11)
	require.NoError(t, err)
	assert.Equal(t, p0, key)
	assert.Equal(t, xfield.MaxBlockSize(1000000), size)

	key, size, err = h.Snapshot().Params(12)
	require.NoError(t, err)
	assert.Equal(t, p1, key)
	assert.Equal(t, xfield.MaxBlockSize(500000), size)

	keys, sizes := h.RemoveFrom(11)
	assert.Len(t, keys, 1)
	assert.Len(t, sizes, 1)

	key, _, err = h.Params(12)
	require.NoError(t, err)
	assert.Equal(t, p0, key)
}
