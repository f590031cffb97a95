package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/codeintel/internal/retrieval"
	"github.com/dshills/codeintel/pkg/types"
)

const namespace = "codeintel"

// Metrics holds the Prometheus collectors. It implements retrieval.Recorder.
type Metrics struct {
	searchDuration   prometheus.Histogram
	searchResults    prometheus.Histogram
	searchesTotal    *prometheus.CounterVec
	searcherDuration *prometheus.HistogramVec
	searcherFailures *prometheus.CounterVec

	embeddingRequests *prometheus.CounterVec
	embeddingDuration *prometheus.HistogramVec

	documents *prometheus.GaugeVec

	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end retrieval latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}),
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total searches by completeness",
		}, []string{"partial"}),
		searcherDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "searcher_duration_seconds",
			Help:      "Per doc type searcher latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"doc_type", "outcome"}),
		searcherFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searcher_failures_total",
			Help:      "Total searcher failures, timeouts included",
		}, []string{"doc_type"}),
		embeddingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total embedding requests",
		}, []string{"provider", "status"}),
		embeddingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		documents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents",
			Help:      "Vectors stored per doc type",
		}, []string{"doc_type"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path", "status"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		m.searchDuration,
		m.searchResults,
		m.searchesTotal,
		m.searcherDuration,
		m.searcherFailures,
		m.embeddingRequests,
		m.embeddingDuration,
		m.documents,
		m.httpRequestDuration,
		m.httpRequestsTotal,
	)
	return m
}

// ObserveSearch records one completed search
func (m *Metrics) ObserveSearch(d time.Duration, results int, partial bool) {
	m.searchDuration.Observe(d.Seconds())
	m.searchResults.Observe(float64(results))
	label := "false"
	if partial {
		label = "true"
	}
	m.searchesTotal.WithLabelValues(label).Inc()
}

// ObserveSearcher records one searcher run
func (m *Metrics) ObserveSearcher(dt types.DocType, outcome retrieval.Outcome, d time.Duration) {
	m.searcherDuration.WithLabelValues(string(dt), string(outcome)).Observe(d.Seconds())
	if outcome == retrieval.OutcomeFailed {
		m.searcherFailures.WithLabelValues(string(dt)).Inc()
	}
}

// SetDocuments publishes the vector counts per doc type
func (m *Metrics) SetDocuments(counts map[types.DocType]int) {
	for dt, n := range counts {
		m.documents.WithLabelValues(string(dt)).Set(float64(n))
	}
}

var _ retrieval.Recorder = (*Metrics)(nil)
