// Package backend defines the storage abstraction wrapped by ledgercache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key. If a store performs
// internal transforms (compression, encryption), they MUST be fully reversed.
//
// Important: the key "cacheListing" is owned by ledgercache and holds the
// serialized listing of tracked keys. External code MUST NOT write under it.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned at construction time when a backend cannot be
// reached or loaded. It is fatal to initialization, never to later calls.
var ErrUnavailable = errors.New("backend unavailable")

// Backend is a minimal byte store with TTLs. Must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend in status reports and logs.
	Name() string

	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl <= 0 means no expiry.
	// Returns ok=false when the store rejected the write.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key. Returns ok=false when the key was not present.
	Del(ctx context.Context, key string) (ok bool, err error)

	// Exists reports whether the store currently holds key.
	Exists(ctx context.Context, key string) (bool, error)

	// Flush drops every entry in the store's namespace.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// StatsReporter is implemented by backends that expose runtime statistics.
type StatsReporter interface {
	Stats(ctx context.Context) (map[string]any, error)
}

// Pinger is implemented by backends that can check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks b when it implements Pinger. Failures wrap ErrUnavailable.
func Ping(ctx context.Context, b Backend) error {
	p, ok := b.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}
