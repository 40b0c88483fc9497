package storage

import (
	"context"
	"sync"

	"github.com/tcfw/fedchain/pkg/block"
)

var (
	_ Store = (*MemStore)(nil)
)

// MemStore keeps msgpack encoded records in maps. Used for tests and
// ephemeral nodes.
type MemStore struct {
	mu sync.RWMutex

	blocks map[block.Hash][]byte
	undo   map[block.Hash][]byte
	meta   map[string][]byte

	tip    block.Hash
	hasTip bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		blocks: make(map[block.Hash][]byte),
		undo:   make(map[block.Hash][]byte),
		meta:   make(map[string][]byte),
	}
}

func (m *MemStore) PutBlock(_ context.Context, rec *BlockRecord) error {
	d, err := marshal(rec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks[rec.ID] = d
	return nil
}

func (m *MemStore) GetBlock(_ context.Context, id block.Hash) (*BlockRecord, error) {
	m.mu.RLock()
	d, ok := m.blocks[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	rec := &BlockRecord{}
	if err := unmarshal(d, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (m *MemStore) MarkBlock(ctx context.Context, id block.Hash, s BlockState) error {
	rec, err := m.GetBlock(ctx, id)
	if err != nil {
		return err
	}

	rec.State = s
	return m.PutBlock(ctx, rec)
}

func (m *MemStore) DeleteBlock(_ context.Context, id block.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blocks, id)
	return nil
}

func (m *MemStore) Blocks(_ context.Context) ([]*BlockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]*BlockRecord, 0, len(m.blocks))
	for _, d := range m.blocks {
		rec := &BlockRecord{}
		if err := unmarshal(d, rec); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	sortRecords(recs)

	return recs, nil
}

func (m *MemStore) PutUndo(_ context.Context, id block.Hash, u *UndoRecord) error {
	d, err := marshal(u)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.undo[id] = d
	return nil
}

func (m *MemStore) GetUndo(_ context.Context, id block.Hash) (*UndoRecord, error) {
	m.mu.RLock()
	d, ok := m.undo[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	u := &UndoRecord{}
	if err := unmarshal(d, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (m *MemStore) DeleteUndo(_ context.Context, id block.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.undo, id)
	return nil
}

func (m *MemStore) UpdateTip(_ context.Context, id block.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tip = id
	m.hasTip = true
	return nil
}

func (m *MemStore) GetTip(_ context.Context) (block.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.hasTip {
		return block.Hash{}, ErrNoTip
	}

	return m.tip, nil
}

func (m *MemStore) PutMeta(_ context.Context, name string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.meta[name] = append([]byte(nil), value...)
	return nil
}

func (m *MemStore) GetMeta(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.meta[name]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

func (m *MemStore) Stop() error {
	return nil
}
