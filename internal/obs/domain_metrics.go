package obs

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Mutation results recorded by QuoteMetrics.
const (
	ResultApplied = "applied"
	ResultNoop    = "noop"
)

// QuoteMetrics groups quote domain collectors.
type QuoteMetrics struct {
	// Mutations counts aggregator operations by operation and result (applied or noop).
	Mutations *prometheus.CounterVec
	// SessionsActive tracks the number of live quote sessions.
	SessionsActive prometheus.Gauge
	// QuoteTotal observes cart totals after each applied mutation.
	QuoteTotal *prometheus.HistogramVec
	// Events counts emitted domain events per topic.
	Events *prometheus.CounterVec
}

// NewQuoteMetrics registers and returns quote domain collectors. Collectors already present
// in reg are reused.
func NewQuoteMetrics(namespace string, reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &QuoteMetrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Count of quote cart operations by outcome.",
		}, []string{"op", "result"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live quote builder sessions.",
		}),
		QuoteTotal: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "total_amount",
			Help:      "Quote totals after applied mutations, in whole currency units.",
			Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}, []string{"builder"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Count of emitted quote domain events by topic.",
		}, []string{"topic"}),
	}
	mustRegisterCollector(reg, m.Mutations, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.Mutations = v
		}
	})
	mustRegisterCollector(reg, m.SessionsActive, func(existing prometheus.Collector) {
		if v, ok := existing.(prometheus.Gauge); ok {
			m.SessionsActive = v
		}
	})
	mustRegisterCollector(reg, m.QuoteTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.HistogramVec); ok {
			m.QuoteTotal = v
		}
	})
	mustRegisterCollector(reg, m.Events, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.Events = v
		}
	})
	return m
}

// ObserveMutation records the outcome of an aggregator operation.
func (m *QuoteMetrics) ObserveMutation(op string, applied bool) {
	if m == nil || m.Mutations == nil {
		return
	}
	result := ResultNoop
	if applied {
		result = ResultApplied
	}
	m.Mutations.WithLabelValues(op, result).Inc()
}

// ObserveTotal records a cart total for builder.
func (m *QuoteMetrics) ObserveTotal(builder string, total int64) {
	if m == nil || m.QuoteTotal == nil {
		return
	}
	m.QuoteTotal.WithLabelValues(builder).Observe(float64(total))
}

// SetActiveSessions updates the live session gauge.
func (m *QuoteMetrics) SetActiveSessions(n int) {
	if m == nil || m.SessionsActive == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
