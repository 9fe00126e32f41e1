package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the cart and checkout.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CartMutations   *prometheus.CounterVec
	CartRejections  *prometheus.CounterVec
	Scans           *prometheus.CounterVec
	CheckoutResults *prometheus.CounterVec
	CheckoutLatency prometheus.Histogram
	SalesCommitted  prometheus.Counter
	SalesVoided     prometheus.Counter
	SaleValue       prometheus.Histogram
	LedgerRefreshes *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CartMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Accepted cart mutations by operation.",
		}, []string{"op"}),
		CartRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "cart",
			Name:      "rejections_total",
			Help:      "Rejected cart mutations by operation and error code.",
		}, []string{"op", "code"}),
		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "scanner",
			Name:      "scans_total",
			Help:      "Barcode lookups by outcome.",
		}, []string{"outcome"}),
		CheckoutResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "checkout",
			Name:      "results_total",
			Help:      "Checkout passes by outcome.",
		}, []string{"outcome"}),
		CheckoutLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pos",
			Subsystem: "checkout",
			Name:      "duration_seconds",
			Help:      "Time spent committing a cart.",
			Buckets:   prometheus.DefBuckets,
		}),
		SalesCommitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "sales",
			Name:      "committed_total",
			Help:      "Sale records created.",
		}),
		SalesVoided: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "sales",
			Name:      "voided_total",
			Help:      "Sale records voided by a rollback.",
		}),
		SaleValue: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pos",
			Subsystem: "sales",
			Name:      "value",
			Help:      "Total price of committed sales.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		LedgerRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "ledger",
			Name:      "refreshes_total",
			Help:      "Catalog refreshes by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) CartMutation(op string) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(op).Inc()
}

func (m *Metrics) CartRejection(op, code string) {
	if m == nil {
		return
	}
	m.CartRejections.WithLabelValues(op, code).Inc()
}

func (m *Metrics) Scan(outcome string) {
	if m == nil {
		return
	}
	m.Scans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Checkout(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.CheckoutResults.WithLabelValues(outcome).Inc()
	m.CheckoutLatency.Observe(seconds)
}

func (m *Metrics) SaleCommitted(value float64) {
	if m == nil {
		return
	}
	m.SalesCommitted.Inc()
	m.SaleValue.Observe(value)
}

func (m *Metrics) SaleVoided() {
	if m == nil {
		return
	}
	m.SalesVoided.Inc()
}

func (m *Metrics) LedgerRefresh(outcome string) {
	if m == nil {
		return
	}
	m.LedgerRefreshes.WithLabelValues(outcome).Inc()
}
