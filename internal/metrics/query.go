package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query pipeline Prometheus metrics.
var (
	QueryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "polyqa",
			Name:      "query_requests_total",
			Help:      "Total number of processed queries",
		},
		[]string{"status"}, // "success" / "error"
	)

	QueryStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "polyqa",
			Name:      "query_stage_duration_seconds",
			Help:      "Duration of each query pipeline stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"}, // detect, translate, retrieve, complete
	)

	QueryRetrievedDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "polyqa",
			Name:      "query_retrieved_documents",
			Help:      "Number of documents retrieved per query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	TranslationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "polyqa",
			Name:      "translation_requests_total",
			Help:      "Language detection and translation calls",
		},
		[]string{"operation", "detector", "status"},
	)

	DetectedLanguagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "polyqa",
			Name:      "detected_languages_total",
			Help:      "Detected query languages",
		},
		[]string{"language"},
	)

	MemoryOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "polyqa",
			Name:      "memory_operations_total",
			Help:      "Conversation memory reads and writes",
		},
		[]string{"driver", "operation", "status"},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers Prometheus query pipeline metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryRequestsTotal)
	prometheus.MustRegister(QueryStageDuration)
	prometheus.MustRegister(QueryRetrievedDocuments)
	prometheus.MustRegister(TranslationRequestsTotal)
	prometheus.MustRegister(DetectedLanguagesTotal)
	prometheus.MustRegister(MemoryOperationsTotal)
	queryMetricsRegistered = true
}
