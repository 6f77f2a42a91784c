// Package store provides the hierarchical blob store the chat core is
// built on: whole-value reads and writes addressed by slash-delimited
// paths, plus change subscriptions that re-deliver the full value on
// every write. There is no multi-path transaction; callers that need
// read-modify-write use Update, which serializes writers of one path
// within this process.
package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Store is the blob store adapter consumed by the chat core.
type Store interface {
	// ReadOnce returns the value at path. ok is false when the path has
	// no value; that is not an error.
	ReadOnce(path string) (value []byte, ok bool, err error)

	// Write replaces the value at path and notifies subscribers.
	Write(path string, value []byte) error

	// Update runs fn under the per-path write lock. fn receives the
	// current value (ok=false when absent) and returns the replacement.
	// Returning an error from fn aborts without writing.
	Update(path string, fn func(cur []byte, ok bool) ([]byte, error)) error

	// Watch delivers the current value (if any) and then the full new
	// value after every write to path, until ctx is done. The channel is
	// closed on cancellation; slow receivers miss intermediate values
	// rather than blocking writers.
	Watch(ctx context.Context, path string) (<-chan []byte, error)
}
