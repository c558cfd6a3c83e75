// Package facade binds at most one adapter at a time behind a stable handle.
//
// A Facade moves through init -> active -> destroyed and can be initialized
// again afterwards. While no adapter is bound every operation returns a
// neutral value (false, absent, empty) instead of failing.
package facade

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/ledgercache"
	"github.com/unkn0wn-root/ledgercache/backend"
	"github.com/unkn0wn-root/ledgercache/codec"
	"github.com/unkn0wn-root/ledgercache/config"
	"github.com/unkn0wn-root/ledgercache/factory"
	"github.com/unkn0wn-root/ledgercache/ledger"
)

// Opener builds the backend for Initialize. factory.Open by default.
type Opener func(ctx context.Context, cfg config.Config) (backend.Backend, error)

type settings struct {
	logger       ledgercache.Logger
	hooks        ledgercache.Hooks
	listingCodec codec.Codec[[]ledger.Entry]
	clock        func() time.Time
	open         Opener
}

type Option func(*settings)

func WithLogger(l ledgercache.Logger) Option { return func(s *settings) { s.logger = l } }
func WithHooks(h ledgercache.Hooks) Option   { return func(s *settings) { s.hooks = h } }
func WithClock(now func() time.Time) Option  { return func(s *settings) { s.clock = now } }

func WithListingCodec(c codec.Codec[[]ledger.Entry]) Option {
	return func(s *settings) { s.listingCodec = c }
}

// WithOpener replaces factory.Open, e.g. to hand in a prebuilt backend.
func WithOpener(o Opener) Option {
	return func(s *settings) {
		if o != nil {
			s.open = o
		}
	}
}

type Facade[V any] struct {
	codec codec.Codec[V]
	set   settings

	mu sync.RWMutex
	a  *ledgercache.Adapter[V]
}

func New[V any](c codec.Codec[V], opts ...Option) *Facade[V] {
	s := settings{logger: ledgercache.NopLogger{}, open: factory.Open}
	for _, o := range opts {
		o(&s)
	}
	if s.logger == nil {
		s.logger = ledgercache.NopLogger{}
	}
	return &Facade[V]{codec: c, set: s}
}

// Initialize opens the configured backend and binds an adapter to it. When an
// adapter is already bound it returns f unchanged and cfg is ignored.
func (f *Facade[V]) Initialize(ctx context.Context, cfg config.Config) (*Facade[V], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.a != nil {
		return f, nil
	}

	be, err := f.set.open(ctx, cfg)
	if err != nil {
		f.set.logger.Error("cache initialization failed", ledgercache.Fields{"kind": cfg.Kind, "err": err})
		return nil, err
	}
	a, err := ledgercache.New[V](ctx, ledgercache.Options[V]{
		Backend:      be,
		Codec:        f.codec,
		Logger:       f.set.logger,
		Hooks:        f.set.hooks,
		ListingCodec: f.set.listingCodec,
		Clock:        f.set.clock,
	})
	if err != nil {
		_ = be.Close(ctx)
		f.set.logger.Error("cache initialization failed", ledgercache.Fields{"backend": be.Name(), "err": err})
		return nil, err
	}
	f.a = a
	f.set.logger.Info("cache initialized", ledgercache.Fields{"backend": be.Name(), "tracked": len(a.Entries())})
	return f, nil
}

// Destroy closes and unbinds the adapter. It is a no-op when nothing is bound.
func (f *Facade[V]) Destroy(ctx context.Context) error {
	f.mu.Lock()
	a := f.a
	f.a = nil
	f.mu.Unlock()
	if a == nil {
		return nil
	}
	return a.Close(ctx)
}

func (f *Facade[V]) adapter() *ledgercache.Adapter[V] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.a
}

// Adapter returns the bound adapter, if any.
func (f *Facade[V]) Adapter() (*ledgercache.Adapter[V], bool) {
	a := f.adapter()
	return a, a != nil
}

// Name is the bound backend's name, or "" when unbound.
func (f *Facade[V]) Name() string {
	if a := f.adapter(); a != nil {
		return a.Name()
	}
	return ""
}

func (f *Facade[V]) Connected() bool {
	a := f.adapter()
	return a != nil && a.Connected()
}

func (f *Facade[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) bool {
	a := f.adapter()
	return a != nil && a.Set(ctx, key, v, ttl)
}

func (f *Facade[V]) Add(ctx context.Context, key string, v V, ttl time.Duration) bool {
	a := f.adapter()
	return a != nil && a.Add(ctx, key, v, ttl)
}

func (f *Facade[V]) Get(ctx context.Context, key string) (V, bool) {
	if a := f.adapter(); a != nil {
		return a.Get(ctx, key)
	}
	var zero V
	return zero, false
}

func (f *Facade[V]) Has(ctx context.Context, key string) bool {
	a := f.adapter()
	return a != nil && a.Has(ctx, key)
}

func (f *Facade[V]) Delete(ctx context.Context, key string) bool {
	a := f.adapter()
	return a != nil && a.Delete(ctx, key)
}

func (f *Facade[V]) Flush(ctx context.Context) bool {
	a := f.adapter()
	return a != nil && a.Flush(ctx)
}

func (f *Facade[V]) PersistListing(ctx context.Context) bool {
	a := f.adapter()
	return a != nil && a.PersistListing(ctx)
}

func (f *Facade[V]) PruneMatching(ctx context.Context, substrings ...string) int {
	if a := f.adapter(); a != nil {
		return a.PruneMatching(ctx, substrings...)
	}
	return 0
}

func (f *Facade[V]) Entries() []ledger.Entry {
	if a := f.adapter(); a != nil {
		return a.Entries()
	}
	return nil
}

// Status is well formed even when unbound.
func (f *Facade[V]) Status(ctx context.Context) ledgercache.Status {
	if a := f.adapter(); a != nil {
		return a.Status(ctx)
	}
	return ledgercache.Status{Stats: map[string]any{}}
}
