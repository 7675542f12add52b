package errors

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobboard_errors_total",
			Help: "Total number of errors returned by code and type",
		},
		[]string{"code", "type", "endpoint"},
	)

	errorResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobboard_error_response_time_seconds",
			Help:    "Time spent before an error response was written",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"code", "endpoint"},
	)
)

// ErrorStats is the in-memory tally for one code and endpoint.
type ErrorStats struct {
	Code      string    `json:"code"`
	Type      string    `json:"type"`
	Count     int64     `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ErrorMonitor records returned errors in Prometheus and keeps a small
// in-memory summary for the health endpoint.
type ErrorMonitor struct {
	stats map[string]*ErrorStats
	mu    sync.RWMutex
}

// NewErrorMonitor creates an empty monitor.
func NewErrorMonitor() *ErrorMonitor {
	return &ErrorMonitor{stats: make(map[string]*ErrorStats)}
}

// RecordError counts appErr against endpoint.
func (em *ErrorMonitor) RecordError(appErr *AppError, endpoint string, responseTime time.Duration) {
	if appErr == nil {
		return
	}

	errorCounter.WithLabelValues(string(appErr.Code), getErrorTypeString(appErr.Type), endpoint).Inc()
	errorResponseTime.WithLabelValues(string(appErr.Code), endpoint).Observe(responseTime.Seconds())

	em.mu.Lock()
	defer em.mu.Unlock()

	key := string(appErr.Code) + ":" + endpoint
	stats, ok := em.stats[key]
	if !ok {
		stats = &ErrorStats{
			Code:      string(appErr.Code),
			Type:      getErrorTypeString(appErr.Type),
			FirstSeen: time.Now(),
		}
		em.stats[key] = stats
	}
	stats.Count++
	stats.LastSeen = time.Now()
}

// GetStats returns a copy of the current tallies.
func (em *ErrorMonitor) GetStats() map[string]ErrorStats {
	em.mu.RLock()
	defer em.mu.RUnlock()

	result := make(map[string]ErrorStats, len(em.stats))
	for k, v := range em.stats {
		result[k] = *v
	}
	return result
}
