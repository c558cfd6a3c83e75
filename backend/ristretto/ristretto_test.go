package ristretto

import (
	"context"
	"testing"

	"github.com/unkn0wn-root/ledgercache/backend"
	"github.com/unkn0wn-root/ledgercache/backend/backendtest"
)

func TestContract(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		b, err := New(Config{NumCounters: 1e4, MaxCost: 1 << 20})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return b
	})
}

func TestStatsWithoutMetrics(t *testing.T) {
	ctx := context.Background()
	b, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close(ctx)

	st, _ := b.Stats(ctx)
	if st["metrics"] != false {
		t.Fatalf("stats = %v", st)
	}
	if b.Metrics() != nil {
		t.Fatalf("metrics enabled without Config.Metrics")
	}
}

func TestStatsWithMetrics(t *testing.T) {
	ctx := context.Background()
	b, err := New(Config{Metrics: true})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close(ctx)

	if ok, _ := b.Set(ctx, "a", []byte("1"), 0); !ok {
		t.Fatalf("Set rejected")
	}
	_, _, _ = b.Get(ctx, "a")

	st, _ := b.Stats(ctx)
	if st["metrics"] != true || st["hits"].(uint64) < 1 {
		t.Fatalf("stats = %v", st)
	}
}
