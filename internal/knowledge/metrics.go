package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_ai_requests_total",
			Help: "Calls to the embedding and generative services",
		},
		[]string{"service", "model", "outcome"},
	)

	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobboard_ai_request_duration_seconds",
			Help:    "Latency of embedding and generative calls including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_text_extractions_total",
			Help: "Document text extractions by detected format and outcome",
		},
		[]string{"format", "outcome"},
	)
)

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
