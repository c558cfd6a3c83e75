package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/ledgercache/backend"
)

// Backend is the default shared-memory engine: one sharded, GC-friendly arena
// shared by every goroutine in the process.
type Backend struct {
	c *bc.BigCache
}

var (
	_ backend.Backend       = (*Backend)(nil)
	_ backend.StatsReporter = (*Backend)(nil)
)

type Config struct {
	LifeWindow         time.Duration `mapstructure:"life_window"`
	CleanWindow        time.Duration `mapstructure:"clean_window"`
	Shards             int           `mapstructure:"shards"` // power of two
	MaxEntriesInWindow int           `mapstructure:"max_entries_in_window"`
	MaxEntrySize       int           `mapstructure:"max_entry_size"`
	HardMaxCacheSizeMB int           `mapstructure:"hard_max_cache_size_mb"` // ~ memory limit; 0 = unlimited
}

const defaultLifeWindow = 24 * time.Hour

func New(ctx context.Context, cfg Config) (*Backend, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = defaultLifeWindow
	}
	conf := bc.DefaultConfig(life)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, errors.Join(backend.ErrUnavailable, err)
	}
	return &Backend{c: c}, nil
}

func (p *Backend) Name() string { return "bigcache" }

func (p *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set ignores ttl: BigCache has no per-entry TTL and uses the global LifeWindow.
func (p *Backend) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Backend) Del(_ context.Context, key string) (bool, error) {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Backend) Flush(_ context.Context) error {
	return p.c.Reset()
}

func (p *Backend) Close(_ context.Context) error {
	return p.c.Close()
}

func (p *Backend) Stats(_ context.Context) (map[string]any, error) {
	s := p.c.Stats()
	return map[string]any{
		"entries":    p.c.Len(),
		"capacity":   p.c.Capacity(),
		"hits":       s.Hits,
		"misses":     s.Misses,
		"del_hits":   s.DelHits,
		"del_misses": s.DelMisses,
		"collisions": s.Collisions,
	}, nil
}
