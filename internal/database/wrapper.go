package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aihub/jobboard-ai/internal/config"
)

// Database bundles the gorm handle with its health checker and pool metrics.
type Database struct {
	db            *gorm.DB
	sqlDB         *sql.DB
	healthChecker *HealthChecker
	metrics       *MetricsCollector
}

// NewDatabase opens PostgreSQL through InitDB.
func NewDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*Database, error) {
	db, err := InitDB(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(db, logger)
}

// Wrap attaches monitoring to an already opened handle.
func Wrap(db *gorm.DB, logger *logrus.Logger) (*Database, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}
	return &Database{
		db:            db,
		sqlDB:         sqlDB,
		healthChecker: NewHealthChecker(sqlDB, logger),
		metrics:       NewMetricsCollector(sqlDB, logger),
	}, nil
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

func (d *Database) Close() error {
	if d.sqlDB == nil {
		return nil
	}
	return d.sqlDB.Close()
}

// HealthCheck trusts the background checker when it reports healthy and
// pings directly otherwise.
func (d *Database) HealthCheck(ctx context.Context) error {
	if d.healthChecker != nil && d.healthChecker.IsHealthy() {
		return nil
	}
	if d.sqlDB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return d.healthChecker.Check(ctx)
}

// StartMonitoring runs the health checker and pool metrics until ctx is done.
func (d *Database) StartMonitoring(ctx context.Context) {
	go d.healthChecker.Start(ctx)
	d.metrics.Start(ctx)
}

func (d *Database) StopHealthCheck() {
	d.healthChecker.Stop()
}

func (d *Database) GetHealthStatus() HealthCheckResult {
	return d.healthChecker.GetHealthResult()
}
