package ristretto

import (
	"context"
	"errors"
	"fmt"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/ledgercache/backend"
)

// Backend is a shared-memory engine with per-entry TTL and cost-based admission.
// Writes are made visible before Set returns (Wait after every mutation).
type Backend struct {
	c *rc.Cache
}

var (
	_ backend.Backend       = (*Backend)(nil)
	_ backend.StatsReporter = (*Backend)(nil)
)

type Config struct {
	NumCounters int64 `mapstructure:"num_counters"`
	MaxCost     int64 `mapstructure:"max_cost"` // bytes; cost of an entry is len(value)
	BufferItems int64 `mapstructure:"buffer_items"`
	Metrics     bool  `mapstructure:"metrics"`
}

func (c Config) withDefaults() Config {
	if c.NumCounters <= 0 {
		c.NumCounters = 1e5
	}
	if c.MaxCost <= 0 {
		c.MaxCost = 64 << 20
	}
	if c.BufferItems <= 0 {
		c.BufferItems = 64
	}
	return c
}

func New(cfg Config) (*Backend, error) {
	cfg = cfg.withDefaults()
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, errors.Join(backend.ErrUnavailable, fmt.Errorf("ristretto: %w", err))
	}
	return &Backend{c: c}, nil
}

func (p *Backend) Name() string { return "ristretto" }

func (p *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (p *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	v := append([]byte(nil), value...)
	cost := int64(len(v))
	if cost == 0 {
		cost = 1
	}
	ok := p.c.SetWithTTL(key, v, cost, ttl)
	p.c.Wait()
	if !ok {
		return false, nil
	}
	// admission may still refuse the item after buffering
	_, stored := p.c.Get(key)
	return stored, nil
}

func (p *Backend) Del(_ context.Context, key string) (bool, error) {
	_, ok := p.c.Get(key)
	p.c.Del(key)
	p.c.Wait()
	return ok, nil
}

func (p *Backend) Exists(_ context.Context, key string) (bool, error) {
	_, ok := p.c.Get(key)
	return ok, nil
}

func (p *Backend) Flush(_ context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Backend) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Stats is populated only when Config.Metrics was set.
func (p *Backend) Stats(_ context.Context) (map[string]any, error) {
	m := p.c.Metrics
	if m == nil {
		return map[string]any{"metrics": false}, nil
	}
	return map[string]any{
		"metrics":      true,
		"hits":         m.Hits(),
		"misses":       m.Misses(),
		"ratio":        m.Ratio(),
		"keys_added":   m.KeysAdded(),
		"keys_evicted": m.KeysEvicted(),
		"cost_added":   m.CostAdded(),
		"sets_dropped": m.SetsDropped(),
	}, nil
}

// Metrics exposes the raw ristretto metrics (nil unless enabled).
func (p *Backend) Metrics() *rc.Metrics { return p.c.Metrics }
