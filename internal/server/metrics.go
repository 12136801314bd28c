package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TrainDuration tracks how long each index build takes.
	TrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "related_train_duration_seconds",
			Help:    "Duration of index training in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	// CorpusDocuments is the size of the most recently loaded corpus.
	CorpusDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "related_corpus_documents",
			Help: "Number of documents in the most recently loaded corpus",
		},
	)

	// IndexCacheRequests counts index lookups by result (hit, miss).
	IndexCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "related_index_cache_requests_total",
			Help: "Total number of index cache lookups",
		},
		[]string{"result"},
	)

	// QueriesTotal counts similar-document queries by HTTP status.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "related_queries_total",
			Help: "Total number of similar-document queries",
		},
		[]string{"status"},
	)

	// QueryDuration tracks end-to-end query latency, including any retraining.
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "related_query_duration_seconds",
			Help:    "Duration of similar-document queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordTraining records one index build over n documents.
func RecordTraining(n int, d time.Duration) {
	TrainDuration.Observe(d.Seconds())
	CorpusDocuments.Set(float64(n))
}

// RecordCacheLookup records an index cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		IndexCacheRequests.WithLabelValues("hit").Inc()
		return
	}
	IndexCacheRequests.WithLabelValues("miss").Inc()
}
