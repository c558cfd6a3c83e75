// Package factory turns a config.Config into a connected backend.Backend.
//
// Openers are registered by name. Kinds map to names as follows:
//
//	memory          -> "memory"
//	shared-memory   -> options.engine   ("bigcache" default, "ristretto")
//	networked-pool  -> options.protocol ("memcached" default, "redis")
package factory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/unkn0wn-root/ledgercache/backend"
	"github.com/unkn0wn-root/ledgercache/backend/bigcache"
	"github.com/unkn0wn-root/ledgercache/backend/memcached"
	"github.com/unkn0wn-root/ledgercache/backend/memory"
	"github.com/unkn0wn-root/ledgercache/backend/redis"
	"github.com/unkn0wn-root/ledgercache/backend/ristretto"
	"github.com/unkn0wn-root/ledgercache/config"
)

var ErrUnknownBackend = errors.New("backend is not implemented or not installed")

// Opener builds a backend from cfg. It does not need to ping; Open does.
type Opener func(ctx context.Context, cfg config.Config) (backend.Backend, error)

var (
	mu      sync.RWMutex
	openers = make(map[string]Opener)
)

func init() {
	Register("memory", openMemory)
	Register("bigcache", openBigCache)
	Register("ristretto", openRistretto)
	Register("memcached", openMemcached)
	Register("redis", openRedis)
}

// Register makes an opener available under name.
// It panics if the name is already registered or the opener is nil.
func Register(name string, o Opener) {
	mu.Lock()
	defer mu.Unlock()

	if o == nil {
		panic("factory: Register opener is nil")
	}
	if _, exists := openers[name]; exists {
		panic(fmt.Sprintf("factory: opener %q already registered", name))
	}
	openers[name] = o
}

// Registered returns the registered opener names, sorted.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(openers))
	for n := range openers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve maps cfg to the opener name it selects.
func Resolve(cfg config.Config) string {
	switch cfg.Kind {
	case config.KindSharedMemory:
		return cfg.Option("engine", "bigcache")
	case config.KindNetworkedPool:
		return cfg.Option("protocol", "memcached")
	default:
		return string(cfg.Kind)
	}
}

// Open validates cfg, builds the selected backend and pings it. Every
// failure to reach the backend wraps backend.ErrUnavailable.
func Open(ctx context.Context, cfg config.Config) (backend.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := Resolve(cfg)

	mu.RLock()
	o, ok := openers[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("factory: %q: %w (registered: %v)", name, ErrUnknownBackend, Registered())
	}

	b, err := o(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("factory: open %s: %w", name, err)
	}
	if err := backend.Ping(ctx, b); err != nil {
		_ = b.Close(ctx)
		return nil, fmt.Errorf("factory: could not establish connection to %s: %w", name, err)
	}
	return b, nil
}

func openMemory(context.Context, config.Config) (backend.Backend, error) {
	return memory.New(), nil
}

func openBigCache(ctx context.Context, cfg config.Config) (backend.Backend, error) {
	var c bigcache.Config
	if err := config.DecodeOptions(cfg.Options, &c); err != nil {
		return nil, err
	}
	return bigcache.New(ctx, c)
}

func openRistretto(_ context.Context, cfg config.Config) (backend.Backend, error) {
	var c ristretto.Config
	if err := config.DecodeOptions(cfg.Options, &c); err != nil {
		return nil, err
	}
	return ristretto.New(c)
}

func openMemcached(_ context.Context, cfg config.Config) (backend.Backend, error) {
	var c memcached.Config
	if err := config.DecodeOptions(cfg.Options, &c); err != nil {
		return nil, err
	}
	c.PersistentID = cfg.PersistentID
	for _, s := range cfg.Servers {
		c.Servers = append(c.Servers, memcached.Server{Host: s.Host, Port: s.Port, Weight: s.Weight})
	}
	return memcached.New(c)
}

const defaultRedisPort = 6379

// openRedis ignores weights; go-redis has no weighted selection.
func openRedis(_ context.Context, cfg config.Config) (backend.Backend, error) {
	var c redis.Config
	if err := config.DecodeOptions(cfg.Options, &c); err != nil {
		return nil, err
	}
	for _, s := range cfg.Servers {
		port := s.Port
		if port == 0 {
			port = defaultRedisPort
		}
		c.Addrs = append(c.Addrs, net.JoinHostPort(s.Host, strconv.Itoa(port)))
	}
	return redis.New(c)
}
