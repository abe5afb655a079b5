package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics records the API client's request and cache behavior.
type ClientMetrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	dedupHits    *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	evictions    prometheus.Counter
	sessionState *prometheus.GaugeVec
}

// NewClientMetrics registers the client metrics on the provided registerer.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		return &ClientMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_requests_total",
		Help: "Requests dispatched to the storefront backend.",
	}, []string{"method", "endpoint", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_duration_seconds",
		Help:    "Duration of backend requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
	dedupHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_request_dedup_hits_total",
		Help: "Callers that joined an already in-flight request.",
	}, []string{"endpoint"})
	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "client_cache_hits_total",
		Help: "Cache hits by cache name (csrf, profile).",
	}, []string{"cache"})
	cacheMisses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "client_cache_misses_total",
		Help: "Cache misses by cache name (csrf, profile).",
	}, []string{"cache"})
	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backend_request_registry_evictions_total",
		Help: "In-flight registry entries evicted before natural cleanup.",
	})
	sessionState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_authenticated",
		Help: "Whether the session is currently authenticated, by role.",
	}, []string{"role"})
	reg.MustRegister(requests, duration, dedupHits, cacheHits, cacheMisses, evictions, sessionState)
	return &ClientMetrics{
		requests:     requests,
		duration:     duration,
		dedupHits:    dedupHits,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
		evictions:    evictions,
		sessionState: sessionState,
	}
}

// ObserveRequest records one settled backend request.
func (m *ClientMetrics) ObserveRequest(method, endpoint, outcome string, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(method), normalizeLabel(endpoint), normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(normalizeLabel(method), normalizeLabel(endpoint)).Observe(elapsed.Seconds())
}

// IncDedupHit counts a caller that was coalesced onto a pending request.
func (m *ClientMetrics) IncDedupHit(endpoint string) {
	if m == nil || m.dedupHits == nil {
		return
	}
	m.dedupHits.WithLabelValues(normalizeLabel(endpoint)).Inc()
}

func (m *ClientMetrics) IncCacheHit(cache string) {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.WithLabelValues(normalizeLabel(cache)).Inc()
}

func (m *ClientMetrics) IncCacheMiss(cache string) {
	if m == nil || m.cacheMisses == nil {
		return
	}
	m.cacheMisses.WithLabelValues(normalizeLabel(cache)).Inc()
}

func (m *ClientMetrics) IncEviction() {
	if m == nil || m.evictions == nil {
		return
	}
	m.evictions.Inc()
}

// SetAuthenticated flips the session gauge for the given role.
func (m *ClientMetrics) SetAuthenticated(role string, authenticated bool) {
	if m == nil || m.sessionState == nil {
		return
	}
	value := 0.0
	if authenticated {
		value = 1.0
	}
	m.sessionState.WithLabelValues(normalizeLabel(role)).Set(value)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
