package observability

import (
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	upstreamDuration *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	invalidations    *prometheus.CounterVec
	staleDiscarded   *prometheus.CounterVec
	unauthorized     prometheus.Counter
	writes           *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patorico_upstream_duration_seconds",
				Help:    "Duration of finance API calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		upstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patorico_upstream_errors_total",
				Help: "Failed finance API calls by operation and status class.",
			},
			[]string{"operation", "class"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patorico_query_cache_hits_total",
				Help: "Query cache hits by resource.",
			},
			[]string{"resource"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patorico_query_cache_misses_total",
				Help: "Query cache misses by resource.",
			},
			[]string{"resource"},
		),
		invalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patorico_query_invalidations_total",
				Help: "Cached reads invalidated by resource prefix.",
			},
			[]string{"resource"},
		),
		staleDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patorico_query_stale_discarded_total",
				Help: "Fetch results dropped because a newer generation superseded them.",
			},
			[]string{"resource"},
		),
		unauthorized: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "patorico_unauthorized_total",
				Help: "Sessions ended by an authorization failure.",
			},
		),
		writes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patorico_writes_total",
				Help: "Transaction writes by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
	}
}

// RecordUpstream records the duration of a finance API call.
func (m *Metrics) RecordUpstream(operation string, d time.Duration) {
	m.upstreamDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrUpstreamError counts a failed call. class is "4xx", "5xx" or "transport".
func (m *Metrics) IncrUpstreamError(operation, class string) {
	m.upstreamErrors.WithLabelValues(operation, class).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(resource string) {
	m.cacheHits.WithLabelValues(resource).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(resource string) {
	m.cacheMisses.WithLabelValues(resource).Inc()
}

// IncrInvalidation counts cached reads dropped by an invalidation.
func (m *Metrics) IncrInvalidation(resource string, n int) {
	m.invalidations.WithLabelValues(resource).Add(float64(n))
}

// IncrStaleDiscarded counts a late result that was not applied.
func (m *Metrics) IncrStaleDiscarded(resource string) {
	m.staleDiscarded.WithLabelValues(resource).Inc()
}

// IncrUnauthorized counts a credential invalidation.
func (m *Metrics) IncrUnauthorized() {
	m.unauthorized.Inc()
}

// IncrWrite counts a create/delete with its outcome ("success" or "error").
func (m *Metrics) IncrWrite(operation, outcome string) {
	m.writes.WithLabelValues(operation, outcome).Inc()
}

// QuerySnapshot returns cumulative query-layer figures suitable for the
// GET /v1/metrics/queries endpoint.
func (m *Metrics) QuerySnapshot(activeSessions int) *domain.QueryMetrics {
	hits := sumCounterVec(m.cacheHits)
	misses := sumCounterVec(m.cacheMisses)

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.QueryMetrics{
		CacheHits:      int64(hits),
		CacheMisses:    int64(misses),
		CacheHitRate:   hitRate,
		Invalidations:  int64(sumCounterVec(m.invalidations)),
		StaleDiscarded: int64(sumCounterVec(m.staleDiscarded)),
		UpstreamErrors: int64(sumCounterVec(m.upstreamErrors)),
		Unauthorized:   int64(counterValue(m.unauthorized)),
		ActiveSessions: activeSessions,
		Period:         "all_time",
	}
}

// sumCounterVec adds up every child series of a CounterVec.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		total += metricValue(metric)
	}
	return total
}

func counterValue(c prometheus.Counter) float64 {
	return metricValue(c)
}

// metricValue extracts the current float64 value of a counter metric.
func metricValue(metric prometheus.Metric) float64 {
	m := &dto.Metric{}
	if err := metric.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
