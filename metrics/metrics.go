// Package metrics holds the Prometheus collectors of the news site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alpalo"

// Metrics groups the application collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	publishes    *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	orphans      prometheus.Counter
	listErrors   prometheus.Counter
	cacheLookups *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		publishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish attempts by outcome.",
		}, []string{"result"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_step_duration_seconds",
			Help:      "Duration of the backend steps of a publish.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		orphans: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_images_total",
			Help:      "Images uploaded for a publish whose record insert failed.",
		}),
		listErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_errors_total",
			Help:      "News listing queries that failed and were shown as empty.",
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_cache_lookups_total",
			Help:      "Listing cache lookups by result.",
		}, []string{"result"}),
	}
}

// Published counts one publish attempt. result is "ok", "busy", "invalid"
// or the name of the failed step.
func (m *Metrics) Published(result string) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(result).Inc()
}

// ObserveStep records how long a backend step took.
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// Orphaned counts an uploaded image left without a record.
func (m *Metrics) Orphaned() {
	if m == nil {
		return
	}
	m.orphans.Inc()
}

// ListFailed counts a listing query error.
func (m *Metrics) ListFailed() {
	if m == nil {
		return
	}
	m.listErrors.Inc()
}

// CacheLookup counts a listing cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
