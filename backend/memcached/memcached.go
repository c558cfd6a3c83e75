// Package memcached is the default networked-pool backend. Servers carry a
// weight, honoured by listing an address weight times in the selector, and
// backends opened with the same PersistentID share one client.
package memcached

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/ledgercache/backend"
	"github.com/unkn0wn-root/ledgercache/internal/util"
)

const (
	DefaultPort = 11211

	// maxKeyLen is the protocol limit; longer keys are hashed.
	maxKeyLen = 250
	// relativeLimit is the largest expiration memcached reads as relative
	// seconds; anything above is a unix timestamp.
	relativeLimit = 30 * 24 * 60 * 60
)

var ErrNoServers = errors.New("memcached backend: no servers configured")

type Server struct {
	Host   string
	Port   int // 0 => DefaultPort
	Weight int // <= 0 => 1
}

type Config struct {
	Servers      []Server      `mapstructure:"-"`
	PersistentID string        `mapstructure:"-"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

type Memcached struct {
	c       *memcache.Client
	addrs   []string
	id      string
	prefix  string
	now     func() time.Time
	closeMu sync.Mutex
	closed  bool
}

var (
	_ backend.Backend       = (*Memcached)(nil)
	_ backend.StatsReporter = (*Memcached)(nil)
	_ backend.Pinger        = (*Memcached)(nil)
)

type shared struct {
	c     *memcache.Client
	addrs []string
	refs  int
}

var (
	poolMu sync.Mutex
	pools  = map[string]*shared{}
)

// New builds a client over cfg.Servers. With a PersistentID, the first call
// creates the client and later calls reuse it; their server lists are ignored.
// New does not dial; use backend.Ping to check reachability.
func New(cfg Config) (*Memcached, error) {
	if cfg.PersistentID != "" {
		poolMu.Lock()
		defer poolMu.Unlock()
		if s, ok := pools[cfg.PersistentID]; ok {
			s.refs++
			return &Memcached{c: s.c, addrs: s.addrs, id: cfg.PersistentID, prefix: cfg.KeyPrefix, now: time.Now}, nil
		}
	}

	addrs, err := expandServers(cfg.Servers)
	if err != nil {
		return nil, errors.Join(backend.ErrUnavailable, err)
	}
	var sl memcache.ServerList
	if err := sl.SetServers(addrs...); err != nil {
		return nil, errors.Join(backend.ErrUnavailable, fmt.Errorf("memcached: %w", err))
	}
	c := memcache.NewFromSelector(&sl)
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}

	if cfg.PersistentID != "" {
		pools[cfg.PersistentID] = &shared{c: c, addrs: addrs, refs: 1}
	}
	return &Memcached{c: c, addrs: addrs, id: cfg.PersistentID, prefix: cfg.KeyPrefix, now: time.Now}, nil
}

// expandServers turns the weighted server list into selector addresses.
func expandServers(servers []Server) ([]string, error) {
	if len(servers) == 0 {
		return nil, ErrNoServers
	}
	var out []string
	for i, s := range servers {
		if s.Host == "" {
			return nil, fmt.Errorf("memcached: server %d: empty host", i)
		}
		port := s.Port
		if port <= 0 {
			port = DefaultPort
		}
		w := s.Weight
		if w <= 0 {
			w = 1
		}
		addr := net.JoinHostPort(s.Host, strconv.Itoa(port))
		for j := 0; j < w; j++ {
			out = append(out, addr)
		}
	}
	return out, nil
}

// expiration maps a TTL onto the protocol's int32 field, rounding up to whole
// seconds and switching to an absolute timestamp past 30 days.
func expiration(ttl time.Duration, now time.Time) int32 {
	if ttl <= 0 {
		return 0
	}
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	if secs > relativeLimit {
		return int32(now.Unix() + secs)
	}
	return int32(secs)
}

func (p *Memcached) Name() string { return "memcached" }

func (p *Memcached) key(k string) string { return util.StorageKey(p.prefix, k, maxKeyLen) }

func (p *Memcached) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := p.c.Get(p.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (p *Memcached) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	err := p.c.Set(&memcache.Item{
		Key:        p.key(key),
		Value:      append([]byte(nil), value...),
		Expiration: expiration(ttl, p.now()),
	})
	if errors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Memcached) Del(_ context.Context, key string) (bool, error) {
	err := p.c.Delete(p.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Exists reads the item; the protocol has no cheaper existence check.
func (p *Memcached) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

// Flush invalidates every item on every server, KeyPrefix notwithstanding.
func (p *Memcached) Flush(_ context.Context) error {
	return p.c.FlushAll()
}

func (p *Memcached) Ping(_ context.Context) error {
	return p.c.Ping()
}

// Stats reports the configured pool; gomemcache exposes no server counters.
func (p *Memcached) Stats(_ context.Context) (map[string]any, error) {
	return map[string]any{
		"servers":       append([]string(nil), p.addrs...),
		"persistent_id": p.id,
	}, nil
}

// Close releases this handle. A shared client is dropped from the registry
// once its last handle is closed.
func (p *Memcached) Close(_ context.Context) error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.id == "" {
		return nil
	}
	poolMu.Lock()
	defer poolMu.Unlock()
	if s, ok := pools[p.id]; ok && s.c == p.c {
		s.refs--
		if s.refs <= 0 {
			delete(pools, p.id)
		}
	}
	return nil
}
