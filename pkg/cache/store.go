package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the generation
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a set of named generations.
//
// Implementations must be safe for concurrent use. Two concurrent Put calls for
// the same key in the same generation are allowed; the last write wins.
type Store interface {
	// Open creates the named generation if it does not exist yet.
	Open(ctx context.Context, name string) error

	// Names returns the names of all existing generations, sorted.
	Names(ctx context.Context) ([]string, error)

	// Delete destroys a whole generation and reports whether it existed.
	Delete(ctx context.Context, name string) (bool, error)

	// Match looks up a key in the named generation.
	// Returns ErrCacheMiss if the key or the generation does not exist.
	Match(ctx context.Context, name string, key Key) (*Entry, error)

	// Put inserts or overwrites an entry, creating the generation if needed.
	Put(ctx context.Context, name string, key Key, entry *Entry) error

	// Keys returns the stored keys of one generation.
	Keys(ctx context.Context, name string) ([]Key, error)

	// Close releases the backend.
	Close() error
}
