package storage

import "context"

// Store is a persisted key-value store over named collections. Values are
// raw JSON documents; list handling and shape validation live in the
// ledger layer on top.
type Store interface {
	// GetItem retrieves the raw value stored under key. Returns nil with
	// no error if the key has never been written.
	GetItem(ctx context.Context, key string) ([]byte, error)

	// SetItem stores the raw value under key, replacing any prior value.
	SetItem(ctx context.Context, key string, value []byte) error

	// HasItem reports whether key has been written.
	HasItem(ctx context.Context, key string) (bool, error)

	// Close releases the underlying connection.
	Close() error
}
