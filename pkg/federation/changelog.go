// Package federation keeps the height indexed history of governance
// parameters set through block xfields.
package federation

import (
	"github.com/google/btree"
	"github.com/pkg/errors"
)

const defaultTreeDegree = 8

var (
	ErrHeightOrder = errors.New("change log entries must be appended in height order")
	ErrEmptyLog    = errors.New("change log has no genesis entry")
)

// Entry is a parameter value and the height of the block that introduced it.
type Entry[V comparable] struct {
	Height uint32
	Value  V
}

func lessEntry[V comparable](a, b Entry[V]) bool {
	return a.Height < b.Height
}

// ChangeLog is an append-only, height ordered sequence of parameter values.
// Only the chain-state owner may mutate it; readers take a Snapshot.
type ChangeLog[V comparable] struct {
	tree *btree.BTreeG[Entry[V]]
}

// NewChangeLog creates a log whose genesis value is active from height 0.
func NewChangeLog[V comparable](genesis V) *ChangeLog[V] {
	l := &ChangeLog[V]{
		tree: btree.NewG(defaultTreeDegree, lessEntry[V]),
	}
	l.tree.ReplaceOrInsert(Entry[V]{Height: 0, Value: genesis})

	return l
}

// Append records v as active from height. Heights lower than the last entry
// are refused. Appending at the last entry's height replaces it.
func (l *ChangeLog[V]) Append(height uint32, v V) error {
	if last, ok := l.tree.Max(); ok && height < last.Height {
		return errors.Wrapf(ErrHeightOrder, "height %d before last entry at %d", height, last.Height)
	}

	l.tree.ReplaceOrInsert(Entry[V]{Height: height, Value: v})
	return nil
}

// Active returns the value in force at height.
func (l *ChangeLog[V]) Active(height uint32) (V, bool) {
	return active(l.tree, height)
}

// RemoveFrom deletes every entry at or above height and returns them in
// height order. The genesis entry survives.
func (l *ChangeLog[V]) RemoveFrom(height uint32) []Entry[V] {
	if height == 0 {
		height = 1
	}

	var removed []Entry[V]
	l.tree.AscendGreaterOrEqual(Entry[V]{Height: height}, func(e Entry[V]) bool {
		removed = append(removed, e)
		return true
	})

	for _, e := range removed {
		l.tree.Delete(e)
	}

	return removed
}

func (l *ChangeLog[V]) Last() Entry[V] {
	e, _ := l.tree.Max()
	return e
}

func (l *ChangeLog[V]) Len() int {
	return l.tree.Len()
}

// Contains reports whether an entry was introduced at exactly height.
func (l *ChangeLog[V]) Contains(height uint32) bool {
	_, ok := l.tree.Get(Entry[V]{Height: height})
	return ok
}

func (l *ChangeLog[V]) Entries() []Entry[V] {
	return entries(l.tree)
}

// Snapshot returns an immutable view. The underlying tree is cloned lazily,
// so taking a snapshot is O(1) and later appends copy only touched nodes.
func (l *ChangeLog[V]) Snapshot() *Snapshot[V] {
	return &Snapshot[V]{tree: l.tree.Clone()}
}

// Snapshot is a read-only view of a ChangeLog safe for concurrent readers.
type Snapshot[V comparable] struct {
	tree *btree.BTreeG[Entry[V]]
}

func (s *Snapshot[V]) Active(height uint32) (V, bool) {
	return active(s.tree, height)
}

func (s *Snapshot[V]) Contains(height uint32) bool {
	_, ok := s.tree.Get(Entry[V]{Height: height})
	return ok
}

func (s *Snapshot[V]) Entries() []Entry[V] {
	return entries(s.tree)
}

func (s *Snapshot[V]) Len() int {
	return s.tree.Len()
}

func active[V comparable](tree *btree.BTreeG[Entry[V]], height uint32) (V, bool) {
	var (
		found Entry[V]
		ok    bool
	)

	tree.DescendLessOrEqual(Entry[V]{Height: height}, func(e Entry[V]) bool {
		found, ok = e, true
		return false
	})

	return found.Value, ok
}

func entries[V comparable](tree *btree.BTreeG[Entry[V]]) []Entry[V] {
	out := make([]Entry[V], 0, tree.Len())
	tree.Ascend(func(e Entry[V]) bool {
		out = append(out, e)
		return true
	})
	return out
}
