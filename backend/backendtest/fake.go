// Package backendtest provides a scriptable in-memory Backend and a shared
// contract suite for backend implementations.
package backendtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/ledgercache/backend"
)

// ErrInjected is a convenience error for Fail.
var ErrInjected = errors.New("backendtest: injected failure")

// Fake is a map-backed Backend that records every call and lets tests fail or
// reject operations. TTLs are recorded but never enforced; use Drop to
// simulate a backend-side expiry.
type Fake struct {
	mu      sync.Mutex
	name    string
	data    map[string][]byte
	ttls    map[string]time.Duration
	calls   map[string]int // "op" and "op:key"
	fail    map[string]error
	rejects map[string]map[string]bool // op -> keys ("" = every key)
	stats   map[string]any
	closed  bool
}

var (
	_ backend.Backend       = (*Fake)(nil)
	_ backend.StatsReporter = (*Fake)(nil)
	_ backend.Pinger        = (*Fake)(nil)
)

func NewFake() *Fake {
	return &Fake{
		name:    "fake",
		data:    make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
		calls:   make(map[string]int),
		fail:    make(map[string]error),
		rejects: make(map[string]map[string]bool),
	}
}

// WithName sets the name returned by Name.
func (f *Fake) WithName(name string) *Fake {
	f.mu.Lock()
	f.name = name
	f.mu.Unlock()
	return f
}

// Fail makes every later call of op return err; a nil err clears it.
// op is one of get, set, del, exists, flush, close, stats, ping.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Reject makes op ("set" or "del") report ok=false without an error for the
// given keys, or for every key when none are given.
func (f *Fake) Reject(op string, keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.rejects[op]
	if m == nil {
		m = make(map[string]bool)
		f.rejects[op] = m
	}
	if len(keys) == 0 {
		m[""] = true
	}
	for _, k := range keys {
		m[k] = true
	}
}

// Heal clears every injected failure and rejection.
func (f *Fake) Heal() {
	f.mu.Lock()
	f.fail = make(map[string]error)
	f.rejects = make(map[string]map[string]bool)
	f.mu.Unlock()
}

// SetStats fixes the map returned by Stats.
func (f *Fake) SetStats(m map[string]any) {
	f.mu.Lock()
	f.stats = m
	f.mu.Unlock()
}

// Calls returns how often op was invoked, optionally for one key.
func (f *Fake) Calls(op string, key ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(key) > 0 {
		return f.calls[op+":"+key[0]]
	}
	return f.calls[op]
}

// Put stores raw bytes without counting a call.
func (f *Fake) Put(key string, raw []byte) {
	f.mu.Lock()
	f.data[key] = append([]byte(nil), raw...)
	f.mu.Unlock()
}

// Raw returns the stored bytes without counting a call.
func (f *Fake) Raw(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	return b, ok
}

// TTL returns the ttl passed with the last Set of key.
func (f *Fake) TTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

// Drop removes key without counting a call, as if it had expired.
func (f *Fake) Drop(key string) {
	f.mu.Lock()
	delete(f.data, key)
	delete(f.ttls, key)
	f.mu.Unlock()
}

// Keys returns the stored keys, sorted.
func (f *Fake) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.data))
	for k := range f.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

func (f *Fake) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("get", key); err != nil {
		return nil, false, err
	}
	b, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (f *Fake) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("set", key); err != nil {
		return false, err
	}
	if f.rejected("set", key) {
		return false, nil
	}
	f.data[key] = append([]byte(nil), value...)
	f.ttls[key] = ttl
	return true, nil
}

func (f *Fake) Del(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("del", key); err != nil {
		return false, err
	}
	if f.rejected("del", key) {
		return false, nil
	}
	if _, ok := f.data[key]; !ok {
		return false, nil
	}
	delete(f.data, key)
	delete(f.ttls, key)
	return true, nil
}

func (f *Fake) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("exists", key); err != nil {
		return false, err
	}
	_, ok := f.data[key]
	return ok, nil
}

func (f *Fake) Flush(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("flush", ""); err != nil {
		return err
	}
	f.data = make(map[string][]byte)
	f.ttls = make(map[string]time.Duration)
	return nil
}

func (f *Fake) Close(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("close", ""); err != nil {
		return err
	}
	f.closed = true
	return nil
}

func (f *Fake) Stats(_ context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("stats", ""); err != nil {
		return nil, err
	}
	out := map[string]any{"entries": len(f.data)}
	for k, v := range f.stats {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("ping", "")
}

// enter counts the call and returns the injected error for op, if any.
// Callers hold f.mu.
func (f *Fake) enter(op, key string) error {
	f.calls[op]++
	if key != "" {
		f.calls[op+":"+key]++
	}
	return f.fail[op]
}

func (f *Fake) rejected(op, key string) bool {
	m := f.rejects[op]
	return m[""] || m[key]
}
