// Package logrus adapts a *logrus.Entry to ledgercache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/ledgercache"
)

var _ ledgercache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every line with component=ledgercache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "ledgercache")}
}

func (l Logger) Debug(msg string, f ledgercache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f ledgercache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f ledgercache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f ledgercache.Fields) { l.with(f).Error(msg) }

// with maps an "err" field onto logrus' own error key.
func (l Logger) with(f ledgercache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			lf[logrus.ErrorKey] = err
			continue
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
