// Package redis is a networked-pool backend over go-redis. It accepts an
// existing UniversalClient or builds one from a server list.
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/ledgercache/backend"
)

var ErrNoServers = errors.New("redis backend: no servers configured")

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	prefix      string
}

var (
	_ backend.Backend       = (*Redis)(nil)
	_ backend.StatsReporter = (*Redis)(nil)
	_ backend.Pinger        = (*Redis)(nil)
)

type Config struct {
	// Client, when set, is used as is and Addrs and the connection knobs are
	// ignored.
	Client      goredis.UniversalClient `mapstructure:"-"`
	CloseClient bool                    `mapstructure:"-"` // set true only if this backend exclusively owns Client

	Addrs        []string      `mapstructure:"-"` // host:port, filled from the server list
	DB           int           `mapstructure:"db"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// KeyPrefix namespaces every key. With a prefix, Flush removes only the
	// prefixed keys instead of the whole database.
	KeyPrefix string `mapstructure:"key_prefix"`
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client != nil {
		return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient, prefix: cfg.KeyPrefix}, nil
	}
	if len(cfg.Addrs) == 0 {
		return nil, errors.Join(backend.ErrUnavailable, ErrNoServers)
	}
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        cfg.Addrs,
		DB:           cfg.DB,
		Username:     cfg.Username,
		Password:     cfg.Password,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return &Redis{rdb: rdb, closeClient: true, prefix: cfg.KeyPrefix}, nil
}

func (p *Redis) Name() string { return "redis" }

func (p *Redis) key(k string) string { return p.prefix + k }

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, p.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0 // no expiry; never KeepTTL
	}
	if err := p.rdb.Set(ctx, p.key(key), value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Del(ctx, p.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, p.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Flush empties the selected database, or only the prefixed keys when a
// KeyPrefix is configured.
func (p *Redis) Flush(ctx context.Context) error {
	if p.prefix == "" {
		return p.rdb.FlushDB(ctx).Err()
	}
	iter := p.rdb.Scan(ctx, 0, globEscape(p.prefix)+"*", 256).Iterator()
	batch := make([]string, 0, 256)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := p.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return p.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

func (p *Redis) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Stats reports the database size and client pool counters.
func (p *Redis) Stats(ctx context.Context) (map[string]any, error) {
	n, err := p.rdb.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	out := map[string]any{"db_keys": n}
	if ps := p.rdb.PoolStats(); ps != nil {
		out["pool_hits"] = ps.Hits
		out["pool_misses"] = ps.Misses
		out["pool_timeouts"] = ps.Timeouts
		out["total_conns"] = ps.TotalConns
		out["idle_conns"] = ps.IdleConns
	}
	return out, nil
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string { return globReplacer.Replace(s) }
