// Package prom counts adapter events with Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/ledgercache"
)

// Hooks implements ledgercache.Hooks. Counters are cheap and never block, so
// Hooks can be passed to an adapter directly.
type Hooks struct {
	rejectedTotal      *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	listingCorrupt     *prometheus.CounterVec
	persistFailedTotal prometheus.Counter
	reservedTotal      *prometheus.CounterVec
}

var _ ledgercache.Hooks = (*Hooks)(nil)

// New creates the counters and registers them with reg (nil means
// prometheus.DefaultRegisterer). namespace defaults to "ledgercache".
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "ledgercache"
	}
	h := &Hooks{
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_rejected_total",
			Help:      "Backend writes or deletes that reported ok=false.",
		}, []string{"op"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Backend operations that returned an error.",
		}, []string{"op"}),
		listingCorrupt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_corrupt_total",
			Help:      "Persisted listings that could not be read at construction.",
		}, []string{"reason"}),
		persistFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_persist_failed_total",
			Help:      "Failed writes of the listing to the reserved key.",
		}),
		reservedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserved_key_rejected_total",
			Help:      "Caller operations refused because they named the reserved key.",
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{
		h.rejectedTotal,
		h.errorsTotal,
		h.listingCorrupt,
		h.persistFailedTotal,
		h.reservedTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer, namespace string) *Hooks {
	h, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *Hooks) BackendRejected(op, _ string) { h.rejectedTotal.WithLabelValues(op).Inc() }
func (h *Hooks) BackendError(op, _ string, _ error) {
	h.errorsTotal.WithLabelValues(op).Inc()
}
func (h *Hooks) ListingCorrupt(reason string)  { h.listingCorrupt.WithLabelValues(reason).Inc() }
func (h *Hooks) ListingPersistFailed(error)    { h.persistFailedTotal.Inc() }
func (h *Hooks) ReservedKeyRejected(op string) { h.reservedTotal.WithLabelValues(op).Inc() }
