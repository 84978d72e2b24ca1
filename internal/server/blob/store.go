// Package blob abstracts the byte store holding encrypted payloads. Keys are
// opaque slash-separated paths; backends exist for S3-compatible object
// storage, the local filesystem, and memory (tests).
package blob

import "context"

// Store is a path-keyed byte store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put writes data under key, replacing any existing payload.
	Put(ctx context.Context, key string, data []byte) error

	// PutIfAbsent writes data under key only when the key is free and
	// returns common.ErrKeyExists otherwise. The check and the write are
	// one atomic operation; the path allocator's probe-then-claim builds
	// on this.
	PutIfAbsent(ctx context.Context, key string, data []byte) error

	// Get returns the payload under key, or common.ErrorNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error, so
	// partially deleted trees can be re-deleted safely.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key holds a payload.
	Exists(ctx context.Context, key string) (bool, error)
}
