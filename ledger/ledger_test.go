package ledger

import (
	"reflect"
	"testing"
	"time"
)

// stepClock advances by one second on every call.
type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestLedger() (*Ledger, *stepClock) {
	clk := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(WithClock(clk.now)), clk
}

func TestRecordWriteCreatesThenUpdates(t *testing.T) {
	l, _ := newTestLedger()

	l.RecordWrite("test", 0)
	first, ok := l.Lookup("test")
	if !ok {
		t.Fatalf("entry missing after first write")
	}
	if !first.Created.Equal(first.Updated) {
		t.Fatalf("new entry: created %v != updated %v", first.Created, first.Updated)
	}

	l.RecordWrite("test", 60)
	second, _ := l.Lookup("test")
	if !second.Created.Equal(first.Created) {
		t.Fatalf("created changed: %v -> %v", first.Created, second.Created)
	}
	if !second.Updated.After(first.Updated) {
		t.Fatalf("updated did not advance: %v -> %v", first.Updated, second.Updated)
	}
	if second.Expiration != 60 {
		t.Fatalf("expiration not merged: %d", second.Expiration)
	}
}

func TestRecordWriteClampsNegativeExpiration(t *testing.T) {
	l, _ := newTestLedger()
	l.RecordWrite("k", -5)
	if e, _ := l.Lookup("k"); e.Expiration != 0 {
		t.Fatalf("expiration = %d, want 0", e.Expiration)
	}
}

func TestRecordDeleteAbsentIsNoop(t *testing.T) {
	l, _ := newTestLedger()
	l.RecordDelete("missing")
	if l.ShouldPersist() {
		t.Fatalf("deleting an absent key must not dirty the ledger")
	}

	l.RecordWrite("k", 0)
	l.RecordDelete("k")
	if l.Tracks("k") {
		t.Fatalf("k still tracked after delete")
	}
}

func TestShouldPersistAndMarkPersisted(t *testing.T) {
	l, _ := newTestLedger()
	if l.ShouldPersist() {
		t.Fatalf("fresh ledger must be clean")
	}

	l.RecordWrite("a", 0)
	if !l.ShouldPersist() {
		t.Fatalf("write must dirty the ledger")
	}
	l.MarkPersisted()
	if l.ShouldPersist() {
		t.Fatalf("ledger dirty right after MarkPersisted")
	}

	// write + delete of another key returns to the persisted content
	l.RecordWrite("b", 0)
	l.RecordDelete("b")
	if l.ShouldPersist() {
		t.Fatalf("content equal to persisted state must be clean")
	}
}

func TestFingerprintCachedBetweenMutations(t *testing.T) {
	l, _ := newTestLedger()
	l.RecordWrite("a", 0)
	if l.fpValid {
		t.Fatalf("write must invalidate the cached fingerprint")
	}
	if !l.ShouldPersist() || !l.fpValid {
		t.Fatalf("ShouldPersist must compute and cache the fingerprint")
	}
	if l.fp != l.Fingerprint() {
		t.Fatalf("cached fingerprint differs from a fresh one")
	}
	l.MarkPersisted()
	if l.persisted != l.fp {
		t.Fatalf("MarkPersisted did not reuse the cached fingerprint")
	}

	l.RecordDelete("absent")
	if !l.fpValid {
		t.Fatalf("deleting an untracked key must keep the cache")
	}
	l.RecordWrite("b", 0)
	if !l.ShouldPersist() {
		t.Fatalf("stale cache hid a write")
	}
	l.MarkPersisted()
	l.Reset()
	if !l.ShouldPersist() {
		t.Fatalf("stale cache hid a reset")
	}
	l.Load([]Entry{{Key: "c"}})
	if l.ShouldPersist() || l.fp != l.Fingerprint() {
		t.Fatalf("load must refresh the cached fingerprint")
	}
}

func TestFingerprintIgnoresInsertionOrder(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Key: "a", Expiration: 1, Created: ts, Updated: ts},
		{Key: "b", Expiration: 2, Created: ts, Updated: ts},
		{Key: "c", Expiration: 3, Created: ts, Updated: ts},
		{Key: "d", Expiration: 0, Created: ts, Updated: ts},
	}
	reversed := make([]Entry, len(entries))
	for i := range entries {
		reversed[len(entries)-1-i] = entries[i]
	}

	l1 := New()
	l1.Load(entries)
	l2 := New()
	l2.Load(reversed)
	if l1.Fingerprint() != l2.Fingerprint() {
		t.Fatalf("fingerprints differ for identical content")
	}

	// repeated hashing of the same ledger is stable (map iteration is random)
	fp := l1.Fingerprint()
	for i := 0; i < 20; i++ {
		if got := l1.Fingerprint(); got != fp {
			t.Fatalf("fingerprint unstable: %x vs %x", got, fp)
		}
	}
}

func TestLoadCapturesFingerprint(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := New()
	l.Load([]Entry{{Key: "a", Created: ts, Updated: ts}, {Key: ""}})
	if l.ShouldPersist() {
		t.Fatalf("freshly loaded ledger must be clean")
	}
	if l.Len() != 1 {
		t.Fatalf("empty keys must be skipped, len=%d", l.Len())
	}
}

func TestResetKeepsPersistedFingerprint(t *testing.T) {
	l, _ := newTestLedger()
	l.RecordWrite("a", 0)
	l.MarkPersisted()

	l.Reset()
	if l.Len() != 0 {
		t.Fatalf("entries survived Reset")
	}
	if !l.ShouldPersist() {
		t.Fatalf("reset of a persisted non-empty ledger must be dirty")
	}
}

func TestEntriesSortedSnapshot(t *testing.T) {
	l, _ := newTestLedger()
	for _, k := range []string{"c", "a", "b"} {
		l.RecordWrite(k, 0)
	}
	got := l.Entries()
	keys := make([]string, len(got))
	for i, e := range got {
		keys[i] = e.Key
	}
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Fatalf("keys = %v", keys)
	}

	// mutating the snapshot must not touch the ledger
	got[0].Expiration = 999
	if e, _ := l.Lookup("a"); e.Expiration == 999 {
		t.Fatalf("snapshot aliases ledger state")
	}
}

func TestMatchingAndPrune(t *testing.T) {
	l, _ := newTestLedger()
	for _, k := range []string{"Profile_User_42", "orders_user_42", "user_7", "session"} {
		l.RecordWrite(k, 0)
	}

	got := l.Matching([]string{"USER_42"})
	want := []string{"Profile_User_42", "orders_user_42"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Matching = %v want %v", got, want)
	}

	if m := l.Matching([]string{""}); len(m) != 0 {
		t.Fatalf("empty substring must match nothing, got %v", m)
	}

	var called []string
	n := l.PruneMatching([]string{"user"}, func(k string) bool {
		called = append(called, k)
		if k == "user_7" {
			return false // backend refused
		}
		l.RecordDelete(k)
		return true
	})
	if n != 2 {
		t.Fatalf("pruned = %d want 2 (calls: %v)", n, called)
	}
	if len(called) != 3 {
		t.Fatalf("del called %d times want 3", len(called))
	}
	if !l.Tracks("user_7") || !l.Tracks("session") {
		t.Fatalf("keys not deleted must stay tracked")
	}
}
