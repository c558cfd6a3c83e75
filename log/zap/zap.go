// Package zap adapts a *zap.Logger to ledgercache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/ledgercache"
)

var _ ledgercache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger "ledgercache" so its lines can be filtered.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("ledgercache")} }

func (z Logger) Debug(msg string, f ledgercache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f ledgercache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f ledgercache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f ledgercache.Fields) { z.L.Error(msg, zf(f)...) }

// zf emits fields in key order; errors use NamedError so zap renders the
// message instead of reflecting over the value.
func zf(f ledgercache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
