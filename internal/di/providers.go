package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aihub/jobboard-ai/internal/config"
	"github.com/aihub/jobboard-ai/internal/database"
	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/kafka"
	"github.com/aihub/jobboard-ai/internal/knowledge"
	"github.com/aihub/jobboard-ai/internal/logger"
	"github.com/aihub/jobboard-ai/internal/middleware"
	"github.com/aihub/jobboard-ai/internal/repository"
	"github.com/aihub/jobboard-ai/internal/services"
)

const breakerSuccessThreshold = 2

// RegisterProviders registers every component of the service. Redis, object
// storage and Kafka are only provided when enabled in cfg.
func RegisterProviders(container *dig.Container, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	providers := []interface{}{
		func() *config.Config { return cfg },
		logger.GetLogger,
		newDatabaseLogger,
		provideDatabase,
		func(db *database.Database) *gorm.DB { return db.GetDB() },
		provideEntityLookup,
		provideEmbeddingStore,
		provideExtractor,
		provideEmbedder,
		provideGenerator,
		provideRAGService,
		provideFitScoreService,
		provideFeedbackService,
		provideEmbeddingSync,
		errors.NewErrorMonitor,
		errors.NewErrorHandler,
		errors.NewErrorTranslator,
		middleware.NewMiddlewareManager,
	}
	if cfg.Redis.Enabled {
		providers = append(providers, provideRedis)
	}
	if cfg.Storage.Provider != "" {
		providers = append(providers, provideObjectStorage)
	}
	if cfg.Kafka.Enabled {
		providers = append(providers, provideProducer, provideConsumer)
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

// newDatabaseLogger builds the logrus logger used by the database health
// checker and pool metrics.
func newDatabaseLogger(cfg *config.Config) *logrus.Logger {
	l := &logrus.Logger{
		Out:       os.Stdout,
		Formatter: &logrus.JSONFormatter{},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
	if cfg.Server.Env == "development" {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

func provideDatabase(cfg *config.Config, l *logrus.Logger) (*database.Database, error) {
	return database.NewDatabase(cfg.Database, l)
}

// provideRedis yields nil when Redis is unreachable; the store then runs
// without a cache.
func provideRedis(cfg *config.Config, l *zap.Logger) *redis.Client {
	client, err := database.InitRedis(context.Background(), cfg.Redis)
	if err != nil {
		l.Warn("Failed to initialize Redis, embedding cache disabled", zap.Error(err))
		return nil
	}
	return client
}

func provideObjectStorage(cfg *config.Config, l *zap.Logger) (*middleware.MinIOService, error) {
	return middleware.NewMinIOService(cfg.Storage, l)
}

func provideEntityLookup(db *gorm.DB, cfg *config.Config) *repository.EntityLookup {
	return repository.NewEntityLookup(db, cfg.Store.Timeout)
}

type storeParams struct {
	dig.In

	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger
	Redis  *redis.Client `optional:"true"`
}

func provideEmbeddingStore(p storeParams) (repository.EmbeddingStore, error) {
	var store repository.EmbeddingStore
	switch p.Config.Store.Provider {
	case "milvus":
		opts, err := milvusOptions(p.Config)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c, err := repository.NewMilvusClient(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("connect milvus: %w", err)
		}
		store = repository.NewMilvusEmbeddingStore(c, opts, p.Logger)
	default:
		store = repository.NewGormEmbeddingStore(p.DB, p.Config.Store.Timeout)
	}

	if p.Redis != nil {
		store = repository.NewCachedEmbeddingStore(store, repository.NewRedisEmbeddingCache(p.Redis), p.Config.Redis.TTL, p.Logger)
	}
	return store, nil
}

// milvusOptions sizes the collection from the embedding model unless the
// size is set explicitly, in which case the two must agree.
func milvusOptions(cfg *config.Config) (repository.MilvusOptions, error) {
	m := cfg.Store.Milvus
	dims := knowledge.EmbeddingDimensions(cfg.AI.EmbeddingModel)
	size := m.VectorSize
	if size == 0 {
		size = dims
	} else if size != dims {
		return repository.MilvusOptions{}, fmt.Errorf("store.milvus.vector_size %d does not match %s (%d dimensions)",
			size, cfg.AI.EmbeddingModel, dims)
	}
	return repository.MilvusOptions{
		Address:    m.Address,
		Username:   m.Username,
		Password:   m.Password,
		Database:   m.Database,
		Collection: m.Collection,
		VectorSize: size,
		UseTLS:     m.TLS,
		Timeout:    cfg.Store.Timeout,
	}, nil
}

type extractorParams struct {
	dig.In

	Config  *config.Config
	Logger  *zap.Logger
	Objects *middleware.MinIOService `optional:"true"`
}

func provideExtractor(p extractorParams) knowledge.TextExtractor {
	opts := knowledge.ExtractorOptions{
		Timeout:  p.Config.Extractor.Timeout,
		MaxBytes: p.Config.Extractor.MaxBytes,
		TempDir:  p.Config.Extractor.TempDir,
	}
	// a nil *MinIOService must not reach the interface
	if p.Objects == nil {
		return knowledge.NewExtractor(opts, nil, p.Logger)
	}
	return knowledge.NewExtractor(opts, p.Objects, p.Logger)
}

func openAIOptions(ai config.AIConfig, model string, timeout time.Duration, breaker string) knowledge.OpenAIOptions {
	return knowledge.OpenAIOptions{
		APIKey:  ai.OpenAIAPIKey,
		BaseURL: ai.BaseURL,
		Model:   model,
		Timeout: timeout,
		Retry: knowledge.RetryPolicy{
			MaxRetries: ai.MaxRetries,
			BaseDelay:  ai.RetryBaseDelay,
		},
		Breaker: knowledge.NewCircuitBreaker(breaker, ai.BreakerFailures, breakerSuccessThreshold, ai.BreakerCooldown),
	}
}

func provideEmbedder(cfg *config.Config, l *zap.Logger) knowledge.Embedder {
	return knowledge.NewOpenAIEmbedder(openAIOptions(cfg.AI, cfg.AI.EmbeddingModel, cfg.AI.EmbeddingTimeout, "openai-embeddings"), l)
}

func provideGenerator(cfg *config.Config, l *zap.Logger) knowledge.Generator {
	return knowledge.NewOpenAIGenerator(openAIOptions(cfg.AI, cfg.AI.ChatModel, cfg.AI.ChatTimeout, "openai-chat"), l)
}

func provideProducer(cfg *config.Config, l *zap.Logger) (*kafka.Producer, error) {
	return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, l)
}

func provideConsumer(cfg *config.Config, l *zap.Logger) (*kafka.Consumer, error) {
	return kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.ChangesTopic}, l)
}

type ragParams struct {
	dig.In

	Config    *config.Config
	Logger    *zap.Logger
	Embedder  knowledge.Embedder
	Generator knowledge.Generator
	Store     repository.EmbeddingStore
	Entities  *repository.EntityLookup
	Producer  *kafka.Producer `optional:"true"`
}

func provideRAGService(p ragParams) *services.RAGService {
	deps := services.RAGDeps{
		Embedder:     p.Embedder,
		Generator:    p.Generator,
		Store:        p.Store,
		Applications: p.Entities,
		ChatModel:    p.Config.AI.ChatModel,
		Settings:     services.RAGSettingsFrom(p.Config.RAG),
		Logger:       p.Logger,
	}
	if p.Producer != nil {
		deps.Events = p.Producer
	}
	return services.NewRAGService(deps)
}

func provideFitScoreService(cfg *config.Config, extractor knowledge.TextExtractor, generator knowledge.Generator, l *zap.Logger) *services.FitScoreService {
	return services.NewFitScoreService(extractor, generator, cfg.AI.FitScoreModel, cfg.Server.IsLocal(), l)
}

func provideFeedbackService(cfg *config.Config, generator knowledge.Generator, l *zap.Logger) *services.FeedbackService {
	return services.NewFeedbackService(generator, cfg.AI.FeedbackModel, l)
}

func provideEmbeddingSync(rag *services.RAGService, entities *repository.EntityLookup, extractor knowledge.TextExtractor, l *zap.Logger) *services.EmbeddingSync {
	return services.NewEmbeddingSync(rag, entities, extractor, l)
}
