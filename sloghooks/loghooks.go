// Package sloghooks reports adapter events through log/slog with sampling and
// key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/ledgercache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	RejectEvery uint64
	ErrorEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	rejectCtr atomic.Uint64
	errorCtr  atomic.Uint64
}

var _ ledgercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if k == ledgercache.ReservedKey || k == "" {
		return k
	}
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BackendRejected(op, key string) {
	if h.l == nil || !sample(h.opts.RejectEvery, &h.rejectCtr) {
		return
	}
	h.l.Info("ledgercache.backend_rejected",
		"op", op,
		"key", h.redact(key))
}

func (h *Hooks) BackendError(op, key string, err error) {
	if h.l == nil || !sample(h.opts.ErrorEvery, &h.errorCtr) {
		return
	}
	h.l.Warn("ledgercache.backend_error",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ListingCorrupt(reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("ledgercache.listing_corrupt",
		"reason", reason)
}

func (h *Hooks) ListingPersistFailed(err error) {
	if h.l == nil {
		return
	}
	h.l.Error("ledgercache.listing_persist_failed",
		"err", err)
}

func (h *Hooks) ReservedKeyRejected(op string) {
	if h.l == nil {
		return
	}
	h.l.Warn("ledgercache.reserved_key_rejected",
		"op", op,
		"key", ledgercache.ReservedKey)
}
