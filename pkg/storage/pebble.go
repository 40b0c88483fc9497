package storage

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/tcfw/fedchain/pkg/block"
)

var (
	_ Store = (*PebbleStore)(nil)

	prefixBlock = []byte{'b'}
	prefixUndo  = []byte{'u'}
	prefixMeta  = []byte{'m'}
	keyTip      = []byte("tip")
)

type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens (or creates) a pebble database at dir. opts may be
// nil; tests pass options with an in-memory vfs.
func NewPebbleStore(dir string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble")
	}

	return &PebbleStore{db: db}, nil
}

func key(prefix []byte, id block.Hash) []byte {
	k := make([]byte, 0, len(prefix)+block.HashSize)
	k = append(k, prefix...)
	return append(k, id[:]...)
}

func (p *PebbleStore) get(k []byte, v interface{}) error {
	d, closer, err := p.db.Get(k)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "reading pebble")
	}
	defer closer.Close()

	return unmarshal(d, v)
}

func (p *PebbleStore) put(k []byte, v interface{}) error {
	d, err := marshal(v)
	if err != nil {
		return err
	}

	return errors.Wrap(p.db.Set(k, d, pebble.Sync), "writing pebble")
}

func (p *PebbleStore) PutBlock(_ context.Context, rec *BlockRecord) error {
	return p.put(key(prefixBlock, rec.ID), rec)
}

func (p *PebbleStore) GetBlock(_ context.Context, id block.Hash) (*BlockRecord, error) {
	rec := &BlockRecord{}
	if err := p.get(key(prefixBlock, id), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *PebbleStore) MarkBlock(ctx context.Context, id block.Hash, s BlockState) error {
	rec, err := p.GetBlock(ctx, id)
	if err != nil {
		return err
	}

	rec.State = s
	return p.PutBlock(ctx, rec)
}

func (p *PebbleStore) DeleteBlock(_ context.Context, id block.Hash) error {
	return errors.Wrap(p.db.Delete(key(prefixBlock, id), pebble.Sync), "deleting block")
}

func (p *PebbleStore) Blocks(ctx context.Context) ([]*BlockRecord, error) {
	iter := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixBlock,
		UpperBound: []byte{prefixBlock[0] + 1},
	})
	defer iter.Close()

	recs := []*BlockRecord{}
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec := &BlockRecord{}
		if err := unmarshal(iter.Value(), rec); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	sortRecords(recs)

	return recs, nil
}

func (p *PebbleStore) PutUndo(_ context.Context, id block.Hash, u *UndoRecord) error {
	return p.put(key(prefixUndo, id), u)
}

func (p *PebbleStore) GetUndo(_ context.Context, id block.Hash) (*UndoRecord, error) {
	u := &UndoRecord{}
	if err := p.get(key(prefixUndo, id), u); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *PebbleStore) DeleteUndo(_ context.Context, id block.Hash) error {
	return errors.Wrap(p.db.Delete(key(prefixUndo, id), pebble.Sync), "deleting undo")
}

func (p *PebbleStore) UpdateTip(_ context.Context, id block.Hash) error {
	return errors.Wrap(p.db.Set(keyTip, id[:], pebble.Sync), "writing tip")
}

func (p *PebbleStore) GetTip(_ context.Context) (block.Hash, error) {
	var id block.Hash

	d, closer, err := p.db.Get(keyTip)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return id, ErrNoTip
		}
		return id, errors.Wrap(err, "reading tip")
	}
	defer closer.Close()

	copy(id[:], d)
	return id, nil
}

func metaKey(name string) []byte {
	return append(append([]byte(nil), prefixMeta...), name...)
}

func (p *PebbleStore) PutMeta(_ context.Context, name string, value []byte) error {
	return errors.Wrap(p.db.Set(metaKey(name), value, pebble.Sync), "writing meta")
}

func (p *PebbleStore) GetMeta(_ context.Context, name string) ([]byte, error) {
	d, closer, err := p.db.Get(metaKey(name))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "reading meta")
	}
	defer closer.Close()

	return append([]byte(nil), d...), nil
}

func (p *PebbleStore) Stop() error {
	return p.db.Close()
}
