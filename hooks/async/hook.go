// Package asynchook moves hook delivery off the adapter's locked write path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    RejectEvery: 10, // sample logs: ~every 10th rejection
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	a, _ := ledgercache.New[User](ctx, ledgercache.Options[User]{
//	    Backend: be,
//	    Codec:   codec.JSON[User]{},
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
//
// Events are dropped when the queue is full; Dropped reports how many.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/ledgercache"
)

type Hooks struct {
	inner   ledgercache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Uint64
}

var _ ledgercache.Hooks = (*Hooks)(nil)

func New(inner ledgercache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = ledgercache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent afterwards
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns the number of events discarded on a full or closed queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) BackendRejected(op, k string) { h.try(func() { h.inner.BackendRejected(op, k) }) }
func (h *Hooks) BackendError(op, k string, err error) {
	h.try(func() { h.inner.BackendError(op, k, err) })
}
func (h *Hooks) ListingCorrupt(r string)        { h.try(func() { h.inner.ListingCorrupt(r) }) }
func (h *Hooks) ListingPersistFailed(err error) { h.try(func() { h.inner.ListingPersistFailed(err) }) }
func (h *Hooks) ReservedKeyRejected(op string)  { h.try(func() { h.inner.ReservedKeyRejected(op) }) }
