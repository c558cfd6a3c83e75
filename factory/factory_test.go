package factory

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/ledgercache/backend"
	"github.com/unkn0wn-root/ledgercache/config"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		cfg  config.Config
		want string
	}{
		{config.Config{Kind: config.KindMemory}, "memory"},
		{config.Config{Kind: config.KindSharedMemory}, "bigcache"},
		{config.Config{Kind: config.KindSharedMemory, Options: map[string]any{"engine": "Ristretto"}}, "ristretto"},
		{config.Config{Kind: config.KindNetworkedPool}, "memcached"},
		{config.Config{Kind: config.KindNetworkedPool, Options: map[string]any{"protocol": "redis"}}, "redis"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.cfg))
	}
}

func TestOpenInProcess(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"memory", config.Config{Kind: config.KindMemory}, "memory"},
		{"bigcache", config.Config{Kind: config.KindSharedMemory, Options: map[string]any{"shards": "16", "life_window": "1h"}}, "bigcache"},
		{"ristretto", config.Config{Kind: config.KindSharedMemory, Options: map[string]any{"engine": "ristretto", "max_cost": 1 << 20}}, "ristretto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(ctx, tt.cfg)
			require.NoError(t, err)
			defer b.Close(ctx)
			assert.Equal(t, tt.want, b.Name())
		})
	}
}

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	host, portStr, _ := net.SplitHostPort(mr.Addr())
	port, _ := strconv.Atoi(portStr)
	ctx := context.Background()

	b, err := Open(ctx, config.Config{
		Kind:    config.KindNetworkedPool,
		Servers: []config.Server{{Host: host, Port: port}},
		Options: map[string]any{"protocol": "redis", "key_prefix": "app:"},
	})
	require.NoError(t, err)
	defer b.Close(ctx)

	ok, err := b.Set(ctx, "k", []byte("v"), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("app:k"))
}

func TestOpenUnreachableIsUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)
	_, err = Open(context.Background(), config.Config{
		Kind:    config.KindNetworkedPool,
		Servers: []config.Server{{Host: host, Port: port}},
		Options: map[string]any{"protocol": "redis", "dial_timeout": "200ms"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.Contains(t, err.Error(), "could not establish connection")
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, config.Config{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = Open(ctx, config.Config{Kind: config.KindSharedMemory, Options: map[string]any{"engine": "apcu"}})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(ctx, config.Config{Kind: config.KindSharedMemory, Options: map[string]any{"shards": 3}})
	assert.ErrorIs(t, err, backend.ErrUnavailable)

	_, err = Open(ctx, config.Config{Kind: config.KindSharedMemory, Options: map[string]any{"life_window": "forever"}})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRegister(t *testing.T) {
	called := false
	Register("test-only", func(context.Context, config.Config) (backend.Backend, error) {
		called = true
		return nil, errors.New("nope")
	})
	assert.Contains(t, Registered(), "test-only")
	assert.Panics(t, func() { Register("test-only", openMemory) })
	assert.Panics(t, func() { Register("other", nil) })

	// custom names are reachable through the kind's selector option
	_, err := Open(context.Background(), config.Config{Kind: config.KindSharedMemory, Options: map[string]any{"engine": "test-only"}})
	assert.Error(t, err)
	assert.True(t, called)
}
