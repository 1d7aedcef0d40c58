// Package metrics records research pipeline counters with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Provider call outcomes.
const (
	ProviderOK          = "ok"
	ProviderUnavailable = "unavailable"
	ProviderFault       = "fault"
)

// Recorder holds the pipeline metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry         *prometheus.Registry
	cacheLookups     *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	recommendations  *prometheus.CounterVec
	alerts           *prometheus.CounterVec
	researchDuration prometheus.Histogram
}

// New creates a Recorder on its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyresearch_cache_lookups_total",
				Help: "Research cache lookups by result",
			},
			[]string{"result"},
		),
		providerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyresearch_provider_calls_total",
				Help: "Insight provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyresearch_recommendations_total",
				Help: "Recommendations produced by action",
			},
			[]string{"action"},
		),
		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyresearch_alerts_total",
				Help: "Alert deliveries by status",
			},
			[]string{"status"},
		),
		researchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "polyresearch_research_duration_seconds",
				Help:    "Duration of one market research call in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordCacheLookup records a cache lookup result.
func (r *Recorder) RecordCacheLookup(result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// RecordProviderCall records one provider call outcome.
func (r *Recorder) RecordProviderCall(provider, outcome string) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
}

// RecordRecommendation records a produced recommendation.
func (r *Recorder) RecordRecommendation(action string) {
	if r == nil {
		return
	}
	r.recommendations.WithLabelValues(action).Inc()
}

// RecordAlert records an alert delivery status ("sent", "failed", "skipped").
func (r *Recorder) RecordAlert(status string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(status).Inc()
}

// ObserveResearch records how long researching one market took.
func (r *Recorder) ObserveResearch(d time.Duration) {
	if r == nil {
		return
	}
	r.researchDuration.Observe(d.Seconds())
}
