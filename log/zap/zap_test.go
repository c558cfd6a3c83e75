package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/ledgercache"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", nil)
	l.Info("i", ledgercache.Fields{"tracked": 2})
	l.Warn("w", ledgercache.Fields{"key": "user_42", "err": errors.New("boom")})
	l.Error("e", ledgercache.Fields{})

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("got %d entries", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Fatalf("entry %d level %v want %v", i, e.Level, wantLevels[i])
		}
		if e.LoggerName != "ledgercache" {
			t.Fatalf("logger name %q", e.LoggerName)
		}
	}

	w := entries[2].ContextMap()
	if w["key"] != "user_42" || w["err"] != "boom" {
		t.Fatalf("warn fields = %v", w)
	}
	if entries[2].Context[0].Key != "err" {
		t.Fatalf("fields not sorted: first is %q", entries[2].Context[0].Key)
	}
}
