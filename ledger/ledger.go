// Package ledger tracks which keys an adapter has written, with their
// expiration and write timestamps, and decides when that listing needs to be
// persisted again.
//
// The fingerprint is a dirty bit, not an integrity check: it is xxhash64 over
// the RFC 8949 core-deterministic CBOR encoding of the entries sorted by key,
// so two logically identical ledgers always fingerprint the same regardless
// of insertion order.
//
// A Ledger is not safe for concurrent use; callers serialize access.
package ledger

import (
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"

	"github.com/unkn0wn-root/ledgercache/internal/util"
)

// Entry is the bookkeeping record of one tracked key.
type Entry struct {
	Key        string    `json:"key" cbor:"key" msgpack:"key"`
	Expiration int64     `json:"expiration" cbor:"expiration" msgpack:"expiration"` // seconds; 0 = no expiry
	Created    time.Time `json:"created" cbor:"created" msgpack:"created"`
	Updated    time.Time `json:"updated" cbor:"updated" msgpack:"updated"`
}

type Ledger struct {
	entries   map[string]Entry
	persisted uint64 // fingerprint at load or last successful persist
	now       func() time.Time

	fp      uint64 // cached Fingerprint of entries; valid while fpValid
	fpValid bool
}

type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

var fpMode = mustFingerprintMode()

func mustFingerprintMode() cbor.EncMode {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// New returns an empty ledger whose persisted fingerprint is that of the
// empty listing.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	l.persisted = l.current()
	return l
}

// Load replaces the content with entries and captures their fingerprint as
// the persisted state. Later duplicates win.
func (l *Ledger) Load(entries []Entry) {
	l.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		e.Created = e.Created.UTC()
		e.Updated = e.Updated.UTC()
		l.entries[e.Key] = e
	}
	l.fpValid = false
	l.persisted = l.current()
}

// RecordWrite inserts key or refreshes it. Created is set once; Updated moves
// on every call. Negative expiration is treated as no expiry.
func (l *Ledger) RecordWrite(key string, expirationSeconds int64) {
	if expirationSeconds < 0 {
		expirationSeconds = 0
	}
	now := l.now().UTC()
	e, ok := l.entries[key]
	if !ok {
		e = Entry{Key: key, Created: now}
	}
	e.Expiration = expirationSeconds
	e.Updated = now
	l.entries[key] = e
	l.fpValid = false
}

// RecordDelete drops key; absent keys are ignored.
func (l *Ledger) RecordDelete(key string) {
	if _, ok := l.entries[key]; ok {
		delete(l.entries, key)
		l.fpValid = false
	}
}

// Reset drops every entry. The persisted fingerprint is kept, so a ledger that
// was non-empty before reports ShouldPersist afterwards.
func (l *Ledger) Reset() {
	l.entries = make(map[string]Entry)
	l.fpValid = false
}

func (l *Ledger) Tracks(key string) bool {
	_, ok := l.entries[key]
	return ok
}

func (l *Ledger) Lookup(key string) (Entry, bool) {
	e, ok := l.entries[key]
	return e, ok
}

func (l *Ledger) Len() int { return len(l.entries) }

// Entries returns a snapshot sorted by key.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Fingerprint hashes the deterministic serialization of the current entries.
func (l *Ledger) Fingerprint() uint64 {
	b, err := fpMode.Marshal(l.Entries())
	if err != nil {
		// Entry holds only strings, ints and times; encoding cannot fail.
		panic("ledger: fingerprint encode: " + err.Error())
	}
	return xxhash.Sum64(b)
}

// ShouldPersist reports whether the content changed since load or the last
// MarkPersisted.
func (l *Ledger) ShouldPersist() bool {
	return l.current() != l.persisted
}

// MarkPersisted records the current content as persisted.
func (l *Ledger) MarkPersisted() {
	l.persisted = l.current()
}

// current returns the fingerprint of the entries, computing it at most once
// between mutations.
func (l *Ledger) current() uint64 {
	if !l.fpValid {
		l.fp = l.Fingerprint()
		l.fpValid = true
	}
	return l.fp
}

// Matching returns tracked keys (sorted) whose lowercase form contains any of
// the non-empty substrings, compared lowercase.
func (l *Ledger) Matching(substrings []string) []string {
	var out []string
	for k := range l.entries {
		if util.ContainsFold(k, substrings) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// PruneMatching hands every key returned by Matching to del and counts the
// deletions that succeeded. del is expected to call back into RecordDelete.
func (l *Ledger) PruneMatching(substrings []string, del func(key string) bool) int {
	removed := 0
	for _, k := range l.Matching(substrings) {
		if del(k) {
			removed++
		}
	}
	return removed
}
