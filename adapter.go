package ledgercache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/ledgercache/backend"
	c "github.com/unkn0wn-root/ledgercache/codec"
	"github.com/unkn0wn-root/ledgercache/internal/wire"
	"github.com/unkn0wn-root/ledgercache/ledger"
)

// Adapter composes one Backend with a Ledger. Every successful Set and Delete
// is mirrored into the ledger, and the ledger is written back to ReservedKey
// only when its fingerprint moved.
//
// Adapter is safe for concurrent use. Mutations hold mu across the backend
// write, the ledger update and the persist, so the persisted listing never
// loses an update to an interleaved caller.
type Adapter[V any] struct {
	be           backend.Backend
	name         string
	codec        c.Codec[V]
	listingCodec c.Codec[[]ledger.Entry]
	log          Logger
	hooks        Hooks

	mu     sync.Mutex
	ledger *ledger.Ledger

	connected atomic.Bool
	closed    atomic.Bool
}

func newAdapter[V any](ctx context.Context, opts Options[V]) (*Adapter[V], error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("ledgercache: backend is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("ledgercache: codec is required")
	}

	a := &Adapter[V]{
		be:     opts.Backend,
		name:   opts.Backend.Name(),
		codec:  opts.Codec,
		ledger: ledger.New(ledger.WithClock(opts.Clock)),
	}
	a.log = coalesce[Logger](opts.Logger, NopLogger{})
	a.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if opts.ListingCodec != nil {
		a.listingCodec = opts.ListingCodec
	} else {
		a.listingCodec = c.MustCBOR[[]ledger.Entry](true)
	}

	if err := a.loadListing(ctx); err != nil {
		return nil, err
	}
	a.connected.Store(true)
	a.log.Debug("adapter connected", Fields{"backend": a.name, "tracked": a.ledger.Len()})
	return a, nil
}

// loadListing reads ReservedKey. A missing listing is seeded empty; a corrupt
// one is reported and treated as empty. Only an I/O error is fatal.
func (a *Adapter[V]) loadListing(ctx context.Context) error {
	raw, ok, err := a.be.Get(ctx, ReservedKey)
	if err != nil {
		return fmt.Errorf("%w: load listing from %s: %w", backend.ErrUnavailable, a.name, err)
	}
	if !ok {
		a.seedListing(ctx)
		return nil
	}

	count, payload, err := wire.DecodeListing(raw)
	if err != nil {
		a.corrupt("frame", err)
		return nil
	}
	entries, err := a.listingCodec.Decode(payload)
	if err != nil {
		a.corrupt("decode", err)
		return nil
	}
	if len(entries) != count {
		a.corrupt("count_mismatch", fmt.Errorf("header says %d entries, payload has %d", count, len(entries)))
		return nil
	}
	a.ledger.Load(withoutReserved(entries, func() {
		a.log.Warn("listing tracks the reserved key; entry ignored", Fields{"backend": a.name})
	}))
	return nil
}

// withoutReserved drops entries keyed ReservedKey, calling found once if any.
func withoutReserved(entries []ledger.Entry, found func()) []ledger.Entry {
	out := entries[:0]
	hit := false
	for _, e := range entries {
		if e.Key == ReservedKey {
			hit = true
			continue
		}
		out = append(out, e)
	}
	if hit {
		found()
	}
	return out
}

func (a *Adapter[V]) seedListing(ctx context.Context) {
	payload, err := a.listingCodec.Encode([]ledger.Entry{})
	if err != nil {
		a.log.Warn("listing seed encode failed", Fields{"backend": a.name, "err": err})
		return
	}
	if ok, err := a.be.Set(ctx, ReservedKey, wire.EncodeListing(0, payload), 0); err != nil || !ok {
		a.log.Warn("listing seed not stored", Fields{"backend": a.name, "ok": ok, "err": err})
	}
}

func (a *Adapter[V]) corrupt(reason string, err error) {
	a.log.Warn("persisted listing unreadable; starting empty", Fields{"backend": a.name, "reason": reason, "err": err})
	a.hooks.ListingCorrupt(reason)
}

// Set writes value under key. The ledger is only touched once the backend
// confirmed the write. ttl is rounded up to whole seconds for the ledger.
func (a *Adapter[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) bool {
	if !a.usable("set", key) {
		return false
	}
	b, err := a.codec.Encode(value)
	if err != nil {
		a.log.Warn("value encode failed", Fields{"key": key, "err": err})
		return false
	}
	if ttl < 0 {
		ttl = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ok, err := a.be.Set(ctx, key, b, ttl)
	if err != nil {
		a.opFailed("set", key, err)
		return false
	}
	if !ok {
		a.log.Debug("set rejected by backend", Fields{"backend": a.name, "key": key})
		a.hooks.BackendRejected("set", key)
		return false
	}
	a.ledger.RecordWrite(key, ceilSeconds(ttl))
	a.persistLocked(ctx)
	return true
}

// Add behaves exactly like Set: an existing value is overwritten.
func (a *Adapter[V]) Add(ctx context.Context, key string, value V, ttl time.Duration) bool {
	return a.Set(ctx, key, value, ttl)
}

// Get returns the backend value only for keys the ledger tracks; untracked
// keys are reported absent without a backend round-trip. A tracked key the
// backend no longer holds is absent too and stays in the ledger.
func (a *Adapter[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if !a.usable("get", key) {
		return zero, false
	}

	a.mu.Lock()
	tracked := a.ledger.Tracks(key)
	a.mu.Unlock()
	if !tracked {
		return zero, false
	}

	raw, ok, err := a.be.Get(ctx, key)
	if err != nil {
		a.opFailed("get", key, err)
		return zero, false
	}
	if !ok {
		a.log.Debug("tracked key missing in backend", Fields{"backend": a.name, "key": key})
		return zero, false
	}
	v, err := a.codec.Decode(raw)
	if err != nil {
		a.log.Warn("value decode failed", Fields{"backend": a.name, "key": key, "err": err})
		return zero, false
	}
	return v, true
}

// Has asks the backend directly; the ledger is not consulted.
func (a *Adapter[V]) Has(ctx context.Context, key string) bool {
	if !a.usable("has", key) {
		return false
	}
	ok, err := a.be.Exists(ctx, key)
	if err != nil {
		a.opFailed("has", key, err)
		return false
	}
	return ok
}

// Delete removes key from the backend and, on success, from the ledger.
func (a *Adapter[V]) Delete(ctx context.Context, key string) bool {
	if !a.usable("delete", key) {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.deleteLocked(ctx, key) {
		return false
	}
	a.persistLocked(ctx)
	return true
}

func (a *Adapter[V]) deleteLocked(ctx context.Context, key string) bool {
	ok, err := a.be.Del(ctx, key)
	if err != nil {
		a.opFailed("delete", key, err)
		return false
	}
	if !ok {
		a.log.Debug("delete: key not in backend", Fields{"backend": a.name, "key": key})
		a.hooks.BackendRejected("delete", key)
		return false
	}
	a.ledger.RecordDelete(key)
	return true
}

// Flush clears the whole backend and then the ledger. The listing is not
// rewritten here; the next mutation or PersistListing stores the empty state.
func (a *Adapter[V]) Flush(ctx context.Context) bool {
	if a.closed.Load() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.be.Flush(ctx); err != nil {
		a.opFailed("flush", "", err)
		return false
	}
	a.ledger.Reset()
	a.log.Debug("flushed", Fields{"backend": a.name})
	return true
}

// PersistListing writes the ledger to ReservedKey if it changed since the last
// successful write. It returns false when there was nothing to write.
func (a *Adapter[V]) PersistListing(ctx context.Context) bool {
	if a.closed.Load() {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.persistLocked(ctx)
}

func (a *Adapter[V]) persistLocked(ctx context.Context) bool {
	if !a.ledger.ShouldPersist() {
		a.log.Debug("listing unchanged; persist skipped", Fields{"backend": a.name})
		return false
	}

	entries := a.ledger.Entries()
	payload, err := a.listingCodec.Encode(entries)
	if err != nil {
		a.persistFailed(&OpError{Op: "persist", Key: ReservedKey, Backend: a.name, Err: err})
		return false
	}
	ok, err := a.be.Set(ctx, ReservedKey, wire.EncodeListing(len(entries), payload), 0)
	if err != nil {
		a.persistFailed(&OpError{Op: "persist", Key: ReservedKey, Backend: a.name, Err: err})
		return false
	}
	if !ok {
		a.hooks.BackendRejected("persist", ReservedKey)
		a.persistFailed(&OpError{Op: "persist", Key: ReservedKey, Backend: a.name, Err: ErrRejected})
		return false
	}
	a.ledger.MarkPersisted()
	return true
}

func (a *Adapter[V]) persistFailed(err *OpError) {
	a.log.Error("listing persist failed", Fields{"backend": a.name, "err": err})
	a.hooks.ListingPersistFailed(err)
}

// PruneMatching deletes every tracked key whose lowercase form contains one of
// the substrings and returns how many deletions the backend confirmed. The
// listing is persisted once at the end.
func (a *Adapter[V]) PruneMatching(ctx context.Context, substrings ...string) int {
	if a.closed.Load() || len(substrings) == 0 {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.ledger.PruneMatching(substrings, func(key string) bool {
		return a.deleteLocked(ctx, key)
	})
	if n > 0 {
		a.persistLocked(ctx)
	}
	return n
}

// Entries returns the tracked entries sorted by key.
func (a *Adapter[V]) Entries() []ledger.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Entries()
}

// Status reports the backend name, connection state, ledger size and whatever
// statistics the backend exposes. It never fails.
func (a *Adapter[V]) Status(ctx context.Context) Status {
	a.mu.Lock()
	tracked := a.ledger.Len()
	a.mu.Unlock()

	st := Status{
		Backend:   a.name,
		Connected: a.Connected(),
		Tracked:   tracked,
		Stats:     map[string]any{},
	}
	if a.closed.Load() {
		return st
	}
	if sr, ok := a.be.(backend.StatsReporter); ok {
		stats, err := sr.Stats(ctx)
		if err != nil {
			st.Stats["error"] = err.Error()
			return st
		}
		for k, v := range stats {
			st.Stats[k] = v
		}
	}
	return st
}

// Name is the backend name captured at construction.
func (a *Adapter[V]) Name() string { return a.name }

func (a *Adapter[V]) Connected() bool { return a.connected.Load() && !a.closed.Load() }

// Close closes the backend. Subsequent operations return neutral values.
func (a *Adapter[V]) Close(ctx context.Context) error {
	if a.closed.Swap(true) {
		return nil
	}
	a.connected.Store(false)
	return a.be.Close(ctx)
}

func (a *Adapter[V]) usable(op, key string) bool {
	if a.closed.Load() {
		a.log.Debug("operation on closed adapter", Fields{"op": op, "key": key, "err": ErrClosed})
		return false
	}
	if key == ReservedKey {
		a.log.Warn("reserved key rejected", Fields{"op": op, "err": ErrReservedKey})
		a.hooks.ReservedKeyRejected(op)
		return false
	}
	return true
}

func (a *Adapter[V]) opFailed(op, key string, err error) {
	oe := &OpError{Op: op, Key: key, Backend: a.name, Err: err}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		a.log.Debug("backend operation aborted", Fields{"op": op, "key": key, "err": oe})
	} else {
		a.log.Warn("backend operation failed", Fields{"op": op, "key": key, "err": oe})
	}
	a.hooks.BackendError(op, key, oe)
}

// ceilSeconds converts a TTL to the ledger's whole-second expiration.
func ceilSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	s := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		s++
	}
	return s
}
