package backendtest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/ledgercache/backend"
)

// Run exercises the Backend contract against a fresh backend per subtest.
// newBackend may register cleanup with t; Run closes the backend itself.
func Run(t *testing.T, newBackend func(t *testing.T) backend.Backend) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, ctx context.Context, b backend.Backend)
	}{
		{"Name", testName},
		{"GetMiss", testGetMiss},
		{"SetGetExact", testSetGetExact},
		{"CopyOnRead", testCopyOnRead},
		{"Overwrite", testOverwrite},
		{"DelPresentAndAbsent", testDel},
		{"Exists", testExists},
		{"Flush", testFlush},
		{"ReservedKeyIsPlainKey", testReservedKey},
		{"Concurrent", testConcurrent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			b := newBackend(t)
			defer func() { _ = b.Close(context.Background()) }()
			tc.fn(t, ctx, b)
		})
	}
}

func mustSet(t *testing.T, ctx context.Context, b backend.Backend, key string, v []byte) {
	t.Helper()
	ok, err := b.Set(ctx, key, v, 0)
	if err != nil || !ok {
		t.Fatalf("Set(%q): ok=%v err=%v", key, ok, err)
	}
}

func testName(t *testing.T, _ context.Context, b backend.Backend) {
	if b.Name() == "" {
		t.Fatalf("Name must not be empty")
	}
}

func testGetMiss(t *testing.T, ctx context.Context, b backend.Backend) {
	v, ok, err := b.Get(ctx, "absent")
	if err != nil || ok || v != nil {
		t.Fatalf("Get(absent) = %v, %v, %v", v, ok, err)
	}
}

func testSetGetExact(t *testing.T, ctx context.Context, b backend.Backend) {
	payload := []byte{0x00, 0xff, 'L', 'D', 0x0a, 0x7f}
	mustSet(t, ctx, b, "bin", payload)

	got, ok, err := b.Get(ctx, "bin")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("bytes changed: got %x want %x", got, payload)
	}

	// the backend must not alias the caller's buffer
	payload[0] = 0x42
	got, _, _ = b.Get(ctx, "bin")
	if got[0] != 0x00 {
		t.Fatalf("stored value aliases caller buffer")
	}
}

func testCopyOnRead(t *testing.T, ctx context.Context, b backend.Backend) {
	mustSet(t, ctx, b, "k", []byte("abc"))
	got, ok, err := b.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	got[0] = 'X'

	again, _, _ := b.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value changed through a returned slice: %q", again)
	}
}

func testOverwrite(t *testing.T, ctx context.Context, b backend.Backend) {
	mustSet(t, ctx, b, "k", []byte("12"))
	mustSet(t, ctx, b, "k", []byte("14"))
	got, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || string(got) != "14" {
		t.Fatalf("Get after overwrite = %q, %v, %v", got, ok, err)
	}
}

func testDel(t *testing.T, ctx context.Context, b backend.Backend) {
	mustSet(t, ctx, b, "k", []byte("v"))
	ok, err := b.Del(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Del(present): ok=%v err=%v", ok, err)
	}
	if _, hit, _ := b.Get(ctx, "k"); hit {
		t.Fatalf("key readable after Del")
	}
	ok, err = b.Del(ctx, "k")
	if err != nil || ok {
		t.Fatalf("Del(absent): ok=%v err=%v, want false, nil", ok, err)
	}
}

func testExists(t *testing.T, ctx context.Context, b backend.Backend) {
	if ok, err := b.Exists(ctx, "k"); err != nil || ok {
		t.Fatalf("Exists before Set: %v, %v", ok, err)
	}
	mustSet(t, ctx, b, "k", []byte("v"))
	if ok, err := b.Exists(ctx, "k"); err != nil || !ok {
		t.Fatalf("Exists after Set: %v, %v", ok, err)
	}
}

func testFlush(t *testing.T, ctx context.Context, b backend.Backend) {
	for i := 0; i < 5; i++ {
		mustSet(t, ctx, b, fmt.Sprintf("k%d", i), []byte("v"))
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	for i := 0; i < 5; i++ {
		if ok, _ := b.Exists(ctx, fmt.Sprintf("k%d", i)); ok {
			t.Fatalf("k%d survived Flush", i)
		}
	}
}

func testReservedKey(t *testing.T, ctx context.Context, b backend.Backend) {
	// backends do not special-case the listing key; the adapter does
	mustSet(t, ctx, b, "cacheListing", []byte("LDGR"))
	got, ok, err := b.Get(ctx, "cacheListing")
	if err != nil || !ok || string(got) != "LDGR" {
		t.Fatalf("Get(cacheListing) = %q, %v, %v", got, ok, err)
	}
}

func testConcurrent(t *testing.T, ctx context.Context, b backend.Backend) {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				k := fmt.Sprintf("g%d-%d", g, i)
				if _, err := b.Set(ctx, k, []byte(k), 0); err != nil {
					t.Errorf("Set(%s): %v", k, err)
					return
				}
				if _, _, err := b.Get(ctx, k); err != nil {
					t.Errorf("Get(%s): %v", k, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}
