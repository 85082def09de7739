// Package storage defines the blob store abstraction used for small state
// objects such as the publish ledger and the feed description. Backends live
// in the local, gcs, and memory subpackages.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound signals that the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// BlobStore reads and replaces whole objects by name.
type BlobStore interface {
	// Get returns the object content or ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put replaces the object content.
	Put(ctx context.Context, name string, data []byte) error
}
