package storage

import "context"

// Store is the black-box key/value gateway the connector persists through.
// Values are opaque blobs; no ordering guarantees are provided.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a single key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix. An empty prefix
	// removes everything in the store's namespace.
	DeletePrefix(ctx context.Context, prefix string) error
}
