package facade

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/ledgercache"
	"github.com/unkn0wn-root/ledgercache/codec"
	"github.com/unkn0wn-root/ledgercache/config"
)

// The process-wide facade stores arbitrary values with msgpack.
var std atomic.Pointer[Facade[any]]

func init() {
	std.Store(New[any](codec.Msgpack[any]{}))
}

// Default returns the process-wide facade.
func Default() *Facade[any] { return std.Load() }

// SetDefault replaces the process-wide facade, e.g. to attach a logger. The
// previous facade is not destroyed.
func SetDefault(f *Facade[any]) {
	if f != nil {
		std.Store(f)
	}
}

func Init(ctx context.Context, cfg config.Config) error {
	_, err := Default().Initialize(ctx, cfg)
	return err
}

func Destroy(ctx context.Context) error { return Default().Destroy(ctx) }

func Set(ctx context.Context, key string, v any, ttl time.Duration) bool {
	return Default().Set(ctx, key, v, ttl)
}

func Get(ctx context.Context, key string) (any, bool) { return Default().Get(ctx, key) }
func Delete(ctx context.Context, key string) bool     { return Default().Delete(ctx, key) }
func Has(ctx context.Context, key string) bool        { return Default().Has(ctx, key) }

func Status(ctx context.Context) ledgercache.Status { return Default().Status(ctx) }
