package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ServingMetrics counts ad decisions by outcome.
type ServingMetrics struct {
	serves      *prometheus.CounterVec
	impressions prometheus.Counter
	clicks      prometheus.Counter
}

// NewServingMetrics registers the serving counters on the provided registerer.
func NewServingMetrics(reg prometheus.Registerer) *ServingMetrics {
	if reg == nil {
		return &ServingMetrics{}
	}
	serves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ad_serve_decisions_total",
		Help: "Ad serve decisions by outcome (fill, no_fill).",
	}, []string{"outcome"})
	impressions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ad_impressions_total",
		Help: "Confirmed ad impressions.",
	})
	clicks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ad_clicks_total",
		Help: "Ad click-throughs.",
	})
	reg.MustRegister(serves, impressions, clicks)
	return &ServingMetrics{
		serves:      serves,
		impressions: impressions,
		clicks:      clicks,
	}
}

// IncServe records one serve decision with the given outcome label.
func (m *ServingMetrics) IncServe(outcome string) {
	if m == nil || m.serves == nil {
		return
	}
	m.serves.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncImpression records one confirmed impression.
func (m *ServingMetrics) IncImpression() {
	if m == nil || m.impressions == nil {
		return
	}
	m.impressions.Inc()
}

// IncClick records one click-through.
func (m *ServingMetrics) IncClick() {
	if m == nil || m.clicks == nil {
		return
	}
	m.clicks.Inc()
}
