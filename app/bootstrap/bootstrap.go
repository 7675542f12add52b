package bootstrap

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/config"
	"github.com/aihub/jobboard-ai/internal/database"
	"github.com/aihub/jobboard-ai/internal/di"
	"github.com/aihub/jobboard-ai/internal/kafka"
	"github.com/aihub/jobboard-ai/internal/knowledge"
	"github.com/aihub/jobboard-ai/internal/logger"
	"github.com/aihub/jobboard-ai/internal/middleware"
	"github.com/aihub/jobboard-ai/internal/repository"
	"github.com/aihub/jobboard-ai/internal/services"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config    *config.Config
	Container *dig.Container

	cancel       context.CancelFunc
	cleanupTasks []func() error
}

var globalApp *App

// GetApp returns the global app instance.
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance.
func SetGlobalApp(app *App) {
	globalApp = app
}

// components are the optional parts of the graph that need lifecycle handling.
type components struct {
	dig.In

	Database *database.Database
	Store    repository.EmbeddingStore
	RAG      *services.RAGService
	Sync     *services.EmbeddingSync
	Health   *middleware.MiddlewareManager
	Redis    *redis.Client            `optional:"true"`
	Objects  *middleware.MinIOService `optional:"true"`
	Producer *kafka.Producer          `optional:"true"`
	Consumer *kafka.Consumer          `optional:"true"`
}

// Init bootstraps configuration, logging, the dependency graph and the
// background workers.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(logger.Options{}); err != nil {
		return nil, err
	}

	loader := config.NewConfigLoader(os.Getenv("CONFIG_FILE"))
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	config.AppConfig = cfg

	if err := knowledge.ApplyUnidocLicense(cfg.Extractor.UnidocLicenseKey); err != nil {
		logger.Warn("Failed to apply unidoc license, document parsing may be watermarked", zap.Error(err))
	}

	container, err := di.Build(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{Config: cfg, Container: container, cancel: cancel}

	if err := container.Invoke(func(c components) {
		app.start(ctx, c)
	}); err != nil {
		cancel()
		app.Shutdown()
		return nil, err
	}

	if os.Getenv("CONFIG_FILE") != "" {
		if err := container.Invoke(func(rag *services.RAGService) {
			loader.RegisterCallback(func(newCfg *config.Config) {
				rag.ApplyConfig(newCfg)
				logger.Info("Configuration reloaded",
					zap.Int("top_k", newCfg.RAG.TopK),
					zap.Bool("threshold_enabled", newCfg.RAG.RelevanceThresholdEnabled),
					zap.Float64("threshold", newCfg.RAG.RelevanceThreshold))
			})
		}); err != nil {
			logger.Warn("Config hot reload unavailable", zap.Error(err))
		} else if err := loader.StartWatching(func(err error) {
			logger.Warn("Ignoring invalid configuration change", zap.Error(err))
		}); err != nil {
			logger.Warn("Failed to watch configuration", zap.Error(err))
		}
	}

	SetGlobalApp(app)
	return app, nil
}

// start launches background workers and records their cleanup in
// registration order.
func (a *App) start(ctx context.Context, c components) {
	c.Database.StartMonitoring(ctx)
	a.cleanupTasks = append(a.cleanupTasks, c.Database.Close)

	if c.Redis != nil {
		a.cleanupTasks = append(a.cleanupTasks, c.Redis.Close)
		c.Health.Register("redis", func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		})
	}

	if closer, ok := c.Store.(io.Closer); ok {
		a.cleanupTasks = append(a.cleanupTasks, closer.Close)
	}

	// Resume uploads still work if the bucket appears later.
	if c.Objects != nil {
		c.Health.Register("object_storage", c.Objects.HealthCheck)
		go func() {
			ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := c.Objects.EnsureBucket(ensureCtx, 5); err != nil {
				logger.Warn("Failed to ensure resume bucket", zap.String("bucket", c.Objects.Bucket()), zap.Error(err))
			}
		}()
	}

	if c.Producer != nil {
		a.cleanupTasks = append(a.cleanupTasks, c.Producer.Close)
	}

	if c.Consumer != nil {
		c.Consumer.RegisterHandler(a.Config.Kafka.ChangesTopic, c.Sync.HandleEntityChange)
		if c.Producer != nil {
			c.Consumer.SetRetryProducer(c.Producer)
		}
		go c.Consumer.Run(ctx)
		a.cleanupTasks = append(a.cleanupTasks, c.Consumer.Close)
	}

	logger.Info("Application components started",
		zap.String("store", a.Config.Store.Provider),
		zap.Bool("redis", c.Redis != nil),
		zap.Bool("object_storage", c.Objects != nil),
		zap.Bool("kafka", c.Consumer != nil))
}

// Shutdown stops background workers and closes resources gracefully.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}

	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}
	a.cleanupTasks = nil

	// Flush logger buffers.
	logger.Sync()
}
