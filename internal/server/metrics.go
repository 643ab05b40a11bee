package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics tracks ingestion and query outcomes
type metrics struct {
	ingestions  *prometheus.CounterVec
	queries     *prometheus.CounterVec
	datasetRows prometheus.Gauge
	duration    *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridinsight",
			Name:      "ingestions_total",
			Help:      "Upload attempts by outcome.",
		}, []string{"outcome"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridinsight",
			Name:      "queries_total",
			Help:      "Analytics queries by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		datasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridinsight",
			Name:      "dataset_rows",
			Help:      "Rows in the active dataset.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gridinsight",
			Name:      "request_duration_seconds",
			Help:      "Request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	reg.MustRegister(m.ingestions, m.queries, m.datasetRows, m.duration)
	return m
}

// outcome labels an error for the counters
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return fromError(err).ErrorCode
}
