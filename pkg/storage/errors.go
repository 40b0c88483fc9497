package storage

import "github.com/pkg/errors"

var (
	ErrNotFound = errors.New("not found")
	ErrNoTip    = errors.New("no tip recorded")
)
