package storage

import (
	"context"

	"github.com/tcfw/fedchain/pkg/block"
)

// Store persists blocks, their connection state and the undo records needed
// to roll governance changes back on disconnect.
type Store interface {
	PutBlock(context.Context, *BlockRecord) error
	GetBlock(context.Context, block.Hash) (*BlockRecord, error)
	MarkBlock(context.Context, block.Hash, BlockState) error
	DeleteBlock(context.Context, block.Hash) error

	// Blocks returns every stored block ordered by height, then arrival.
	Blocks(context.Context) ([]*BlockRecord, error)

	PutUndo(context.Context, block.Hash, *UndoRecord) error
	GetUndo(context.Context, block.Hash) (*UndoRecord, error)
	DeleteUndo(context.Context, block.Hash) error

	UpdateTip(context.Context, block.Hash) error
	GetTip(context.Context) (block.Hash, error)

	// PutMeta and GetMeta hold small opaque values keyed by name.
	PutMeta(ctx context.Context, name string, value []byte) error
	GetMeta(ctx context.Context, name string) ([]byte, error)

	Stop() error
}
