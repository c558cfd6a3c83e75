package ledgercache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/ledgercache/backend"
	c "github.com/unkn0wn-root/ledgercache/codec"
	"github.com/unkn0wn-root/ledgercache/ledger"
)

// ReservedKey holds the serialized listing in every backend's namespace.
// Callers must never use it for application data.
const ReservedKey = "cacheListing"

// Cache is the backend-agnostic operation set implemented by Adapter.
type Cache[V any] interface {
	Set(ctx context.Context, key string, value V, ttl time.Duration) bool
	Add(ctx context.Context, key string, value V, ttl time.Duration) bool
	Get(ctx context.Context, key string) (V, bool)
	Has(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) bool
	Flush(ctx context.Context) bool

	PersistListing(ctx context.Context) bool
	PruneMatching(ctx context.Context, substrings ...string) int
	Entries() []ledger.Entry
	Status(ctx context.Context) Status

	Name() string
	Connected() bool
	Close(ctx context.Context) error
}

// Options configure an Adapter. Only Backend and Codec are required.
type Options[V any] struct {
	// Required
	Backend backend.Backend
	Codec   c.Codec[V]

	Logger       Logger                  // if nil, NopLogger is used
	Hooks        Hooks                   // if nil, NopHooks is used
	ListingCodec c.Codec[[]ledger.Entry] // nil => deterministic CBOR
	Clock        func() time.Time        // nil => time.Now
}

// Status is a point-in-time report. Stats is always non-nil.
type Status struct {
	Backend   string         `json:"backend"`
	Connected bool           `json:"connected"`
	Tracked   int            `json:"tracked"`
	Stats     map[string]any `json:"stats"`
}

var _ Cache[struct{}] = (*Adapter[struct{}])(nil)

// New loads the listing from the backend and returns a connected Adapter.
// Errors here are fatal to initialization and wrap backend.ErrUnavailable when
// the backend could not be read.
func New[V any](ctx context.Context, opts Options[V]) (*Adapter[V], error) {
	return newAdapter[V](ctx, opts)
}
