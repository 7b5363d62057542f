package metrics

import "github.com/prometheus/client_golang/prometheus"

// Source and pipeline Prometheus metrics.
var (
	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snpscope",
			Name:      "source_requests_total",
			Help:      "Total upstream source requests by outcome",
		},
		[]string{"source", "status"},
	)

	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "snpscope",
			Name:      "source_request_duration_seconds",
			Help:      "Upstream source request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	SourceCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snpscope",
			Name:      "source_cache_total",
			Help:      "Source response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	LocalServiceFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snpscope",
			Name:      "local_service_fallbacks_total",
			Help:      "Times a local model service failed and the caller fell back",
		},
		[]string{"service"},
	)

	FullTextResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snpscope",
			Name:      "fulltext_resolved_total",
			Help:      "Full-text resolution outcomes by step",
		},
		[]string{"step"}, // step name, or "none"
	)

	ContradictionsFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "snpscope",
			Name:      "contradictions_found_total",
			Help:      "Contradictions above threshold reported by the detector",
		},
	)

	SynthesisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "snpscope",
			Name:      "synthesis_duration_seconds",
			Help:      "Language model synthesis duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "status"},
	)
)

var sourceMetricsRegistered bool

// RegisterSourceMetrics registers source and pipeline metrics. Must be called once from main.
func RegisterSourceMetrics() {
	if sourceMetricsRegistered {
		return
	}
	prometheus.MustRegister(SourceRequestsTotal)
	prometheus.MustRegister(SourceRequestDuration)
	prometheus.MustRegister(SourceCacheTotal)
	prometheus.MustRegister(LocalServiceFallbacksTotal)
	prometheus.MustRegister(FullTextResolvedTotal)
	prometheus.MustRegister(ContradictionsFoundTotal)
	prometheus.MustRegister(SynthesisDuration)
	sourceMetricsRegistered = true
}
