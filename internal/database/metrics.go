package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	dbConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "database_connections_total",
			Help: "Number of database connections in different states",
		},
		[]string{"state"},
	)

	dbQueriesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"operation", "table", "status"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	dbErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation", "error_type"},
	)
)

// RecordQuery records one storage operation. Callers pass a nil error for
// a lookup that simply found nothing.
func RecordQuery(operation, table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		dbErrorsCounter.WithLabelValues(operation, "query_error").Inc()
	}
	dbQueriesCounter.WithLabelValues(operation, table, status).Inc()
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordConnectionError counts a failed ping or dial.
func RecordConnectionError(errorType string) {
	dbErrorsCounter.WithLabelValues("connection", errorType).Inc()
}

// MetricsCollector periodically samples connection pool stats.
type MetricsCollector struct {
	db              *sql.DB
	logger          *logrus.Logger
	collectInterval time.Duration
}

func NewMetricsCollector(db *sql.DB, logger *logrus.Logger) *MetricsCollector {
	if logger == nil {
		logger = logrus.New()
	}
	return &MetricsCollector{
		db:              db,
		logger:          logger,
		collectInterval: 15 * time.Second,
	}
}

// Start collects pool stats until ctx is done.
func (mc *MetricsCollector) Start(ctx context.Context) {
	mc.logger.Info("Starting database metrics collection")

	go func() {
		ticker := time.NewTicker(mc.collectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.Collect()
			}
		}
	}()
}

// Collect publishes the current pool stats.
func (mc *MetricsCollector) Collect() {
	stats := mc.db.Stats()

	dbConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
	dbConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
	dbConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
	dbConnectionsGauge.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
	dbConnectionsGauge.WithLabelValues("max_idle_closed").Set(float64(stats.MaxIdleClosed))
	dbConnectionsGauge.WithLabelValues("max_lifetime_closed").Set(float64(stats.MaxLifetimeClosed))

	mc.logger.WithFields(logrus.Fields{
		"idle":   stats.Idle,
		"in_use": stats.InUse,
		"open":   stats.OpenConnections,
		"wait":   stats.WaitCount,
	}).Debug("Database connection pool stats collected")
}

func (mc *MetricsCollector) GetStats() sql.DBStats {
	return mc.db.Stats()
}
