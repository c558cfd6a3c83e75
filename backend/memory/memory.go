// Package memory is a process-local backend over a plain map.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/ledgercache/backend"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

// Memory keeps entries in a map guarded by a RWMutex. Expired entries are
// dropped lazily on access.
type Memory struct {
	mu sync.RWMutex
	m  map[string]entry

	reads   atomic.Int64
	writes  atomic.Int64
	removes atomic.Int64

	now func() time.Time
}

var (
	_ backend.Backend       = (*Memory)(nil)
	_ backend.StatsReporter = (*Memory)(nil)
)

func New() *Memory {
	return &Memory{m: make(map[string]entry), now: time.Now}
}

func (p *Memory) Name() string { return "memory" }

func (p *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.reads.Add(1)
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if p.expired(e) {
		p.drop(key, e)
		return nil, false, nil
	}
	return append([]byte(nil), e.v...), true, nil
}

func (p *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}
	// copy so callers reusing their buffer cannot mutate stored bytes
	v := append([]byte(nil), value...)

	p.mu.Lock()
	p.m[key] = entry{v: v, exp: exp}
	p.mu.Unlock()
	p.writes.Add(1)
	return true, nil
}

func (p *Memory) Del(_ context.Context, key string) (bool, error) {
	p.mu.Lock()
	e, ok := p.m[key]
	delete(p.m, key)
	p.mu.Unlock()
	if !ok || p.expired(e) {
		return false, nil
	}
	p.removes.Add(1)
	return true, nil
}

func (p *Memory) Exists(_ context.Context, key string) (bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if ok && p.expired(e) {
		p.drop(key, e)
		return false, nil
	}
	return ok, nil
}

func (p *Memory) Flush(_ context.Context) error {
	p.mu.Lock()
	p.m = make(map[string]entry)
	p.mu.Unlock()
	return nil
}

func (p *Memory) Close(_ context.Context) error { return nil }

// Stats reports entries stored and access counters.
func (p *Memory) Stats(_ context.Context) (map[string]any, error) {
	p.mu.RLock()
	n := len(p.m)
	p.mu.RUnlock()
	return map[string]any{
		"entries":  n,
		"accessed": p.reads.Load(),
		"written":  p.writes.Load(),
		"removed":  p.removes.Load(),
	}, nil
}

// ReadCount, WriteCount and RemoveCount expose the raw counters.
func (p *Memory) ReadCount() int64   { return p.reads.Load() }
func (p *Memory) WriteCount() int64  { return p.writes.Load() }
func (p *Memory) RemoveCount() int64 { return p.removes.Load() }

func (p *Memory) expired(e entry) bool {
	return !e.exp.IsZero() && p.now().After(e.exp)
}

// drop removes key only if it still holds the expired entry we observed.
func (p *Memory) drop(key string, seen entry) {
	p.mu.Lock()
	if cur, ok := p.m[key]; ok && cur.exp.Equal(seen.exp) && p.expired(cur) {
		delete(p.m, key)
	}
	p.mu.Unlock()
}
