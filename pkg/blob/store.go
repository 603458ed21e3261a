// pkg/blob/store.go

// Package blob holds the tiered block stores a buffered file keeps its blocks in.
// A store groups fixed-size blocks into named containers, one per logical file.
package blob

import (
	"context"
	"strconv"

	"TierBuf/pkg/utils"

	"github.com/pkg/errors"
)

var logger = utils.GetLogger("tierbuf")

// ErrNotFound is returned by Get when the container holds no block under the key.
var ErrNotFound = errors.New("block not found")

// Store is a key-value store of whole blocks. Implementations are safe for concurrent use.
type Store interface {
	Name() string
	CreateContainer(ctx context.Context, name string) error
	DestroyContainer(ctx context.Context, name string) error
	Contains(ctx context.Context, container, key string) (bool, error)
	// Get fills buf with the block stored under key.
	Get(ctx context.Context, container, key string, buf []byte) error
	// Put stores a copy of buf under key.
	Put(ctx context.Context, container, key string, buf []byte) error
}

// BlockKey is the key of the block at index.
func BlockKey(index uint64) string {
	return strconv.FormatUint(index, 10)
}
