package facade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/ledgercache"
	"github.com/unkn0wn-root/ledgercache/backend"
	"github.com/unkn0wn-root/ledgercache/backend/backendtest"
	"github.com/unkn0wn-root/ledgercache/codec"
	"github.com/unkn0wn-root/ledgercache/config"
)

var memoryCfg = config.Config{Kind: config.KindMemory}

func fakeOpener(fakes *[]*backendtest.Fake) Opener {
	return func(context.Context, config.Config) (backend.Backend, error) {
		f := backendtest.NewFake()
		*fakes = append(*fakes, f)
		return f, nil
	}
}

func TestNeutralWhenUnbound(t *testing.T) {
	ctx := context.Background()
	f := New[string](codec.String{})

	assert.False(t, f.Set(ctx, "k", "v", 0))
	assert.False(t, f.Add(ctx, "k", "v", 0))
	v, ok := f.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.False(t, f.Has(ctx, "k"))
	assert.False(t, f.Delete(ctx, "k"))
	assert.False(t, f.Flush(ctx))
	assert.False(t, f.PersistListing(ctx))
	assert.Zero(t, f.PruneMatching(ctx, "k"))
	assert.Nil(t, f.Entries())
	assert.False(t, f.Connected())
	assert.Equal(t, "", f.Name())
	_, bound := f.Adapter()
	assert.False(t, bound)

	st := f.Status(ctx)
	assert.NotNil(t, st.Stats)
	assert.False(t, st.Connected)

	assert.NoError(t, f.Destroy(ctx))
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	var fakes []*backendtest.Fake
	f := New[string](codec.String{}, WithOpener(fakeOpener(&fakes)))

	got, err := f.Initialize(ctx, memoryCfg)
	require.NoError(t, err)
	assert.Same(t, f, got)
	a1, _ := f.Adapter()

	got, err = f.Initialize(ctx, config.Config{Kind: "ignored"})
	require.NoError(t, err)
	assert.Same(t, f, got)
	a2, _ := f.Adapter()

	assert.Same(t, a1, a2)
	assert.Len(t, fakes, 1, "second Initialize must not open another backend")
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	var fakes []*backendtest.Fake
	f := New[string](codec.String{}, WithOpener(fakeOpener(&fakes)))

	_, err := f.Initialize(ctx, memoryCfg)
	require.NoError(t, err)
	assert.True(t, f.Connected())
	assert.Equal(t, "fake", f.Name())
	assert.Zero(t, fakes[0].Calls("stats"), "Name must not query backend stats")

	require.True(t, f.Set(ctx, "user_42", "12", time.Minute))
	v, ok := f.Get(ctx, "user_42")
	require.True(t, ok)
	assert.Equal(t, "12", v)
	assert.Len(t, f.Entries(), 1)

	require.NoError(t, f.Destroy(ctx))
	assert.True(t, fakes[0].Closed())
	assert.False(t, f.Connected())
	_, ok = f.Get(ctx, "user_42")
	assert.False(t, ok, "destroyed facade must be neutral")

	// destroyed facades can be initialized again
	_, err = f.Initialize(ctx, memoryCfg)
	require.NoError(t, err)
	require.Len(t, fakes, 2)
	assert.True(t, f.Connected())
}

func TestInitializeErrors(t *testing.T) {
	ctx := context.Background()

	boom := errors.New("boom")
	f := New[string](codec.String{}, WithOpener(func(context.Context, config.Config) (backend.Backend, error) {
		return nil, boom
	}))
	_, err := f.Initialize(ctx, memoryCfg)
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.Connected())

	// listing load fails => backend closed, facade stays unbound
	fake := backendtest.NewFake()
	fake.Fail("get", backendtest.ErrInjected)
	f = New[string](codec.String{}, WithOpener(func(context.Context, config.Config) (backend.Backend, error) {
		return fake, nil
	}))
	_, err = f.Initialize(ctx, memoryCfg)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.True(t, fake.Closed())
	_, bound := f.Adapter()
	assert.False(t, bound)

	// real factory path with an invalid config
	f = New[string](codec.String{})
	_, err = f.Initialize(ctx, config.Config{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestInitializeWithFactory(t *testing.T) {
	ctx := context.Background()
	f := New[[]byte](codec.Bytes{}, WithLogger(ledgercache.NopLogger{}), WithHooks(ledgercache.NopHooks{}))

	_, err := f.Initialize(ctx, memoryCfg)
	require.NoError(t, err)
	defer f.Destroy(ctx)

	assert.Equal(t, "memory", f.Name())
	require.True(t, f.Set(ctx, "k", []byte{1, 2}, 0))
	assert.True(t, f.Has(ctx, "k"))
	assert.True(t, f.Delete(ctx, "k"))
	assert.False(t, f.Has(ctx, "k"))

	st := f.Status(ctx)
	assert.Equal(t, "memory", st.Backend)
	assert.Contains(t, st.Stats, "written")
}

func TestGlobal(t *testing.T) {
	ctx := context.Background()
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })
	SetDefault(New[any](codec.Msgpack[any]{}))

	assert.False(t, Set(ctx, "k", "v", 0), "global facade must be neutral before Init")
	_, ok := Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, Init(ctx, memoryCfg))
	require.True(t, Set(ctx, "k", "v", 0))
	v, ok := Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.True(t, Has(ctx, "k"))
	assert.Equal(t, 1, Status(ctx).Tracked)
	assert.True(t, Delete(ctx, "k"))

	require.NoError(t, Destroy(ctx))
	assert.False(t, Has(ctx, "k"))
}
