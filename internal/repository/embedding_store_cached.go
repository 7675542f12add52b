package repository

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/models"
)

// ErrCacheMiss is returned by EmbeddingCache.Get when nothing is cached.
var ErrCacheMiss = stderrors.New("embedding cache miss")

// invalidationTTL bounds how long a write keeps readers on the backend.
const invalidationTTL = 10 * time.Second

// tombstone marks a key written or deleted recently. Fills never replace it.
var tombstone = []byte("-")

// EmbeddingCache holds serialized embeddings by key.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// RedisEmbeddingCache is an EmbeddingCache on go-redis.
type RedisEmbeddingCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisEmbeddingCache(client redis.UniversalClient) *RedisEmbeddingCache {
	return &RedisEmbeddingCache{client: client, prefix: "jobboard:embedding:"}
}

func (c *RedisEmbeddingCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisEmbeddingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *RedisEmbeddingCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+key, value, ttl).Result()
}

func (c *RedisEmbeddingCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// CachedEmbeddingStore puts a read-through cache in front of another
// EmbeddingStore. Writes replace the cached entry with a short-lived
// tombstone, and reads fill the cache only when the key is absent, so a
// fill that raced a write cannot bring back the old record. Cache failures
// are logged and never returned.
type CachedEmbeddingStore struct {
	next   EmbeddingStore
	cache  EmbeddingCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedEmbeddingStore(next EmbeddingStore, cache EmbeddingCache, ttl time.Duration, logger *zap.Logger) *CachedEmbeddingStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbeddingStore{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("embedding_cache"),
	}
}

func cacheKey(entityType models.EntityType, sourceID string) string {
	return fmt.Sprintf("%s:%s", entityType, sourceID)
}

func (s *CachedEmbeddingStore) Upsert(ctx context.Context, entityType models.EntityType, sourceID string, vector []float32, text string) error {
	if err := s.next.Upsert(ctx, entityType, sourceID, vector, text); err != nil {
		return err
	}
	s.invalidate(ctx, cacheKey(entityType, sourceID))
	return nil
}

func (s *CachedEmbeddingStore) GetOne(ctx context.Context, entityType models.EntityType, sourceID string) (*models.Embedding, error) {
	key := cacheKey(entityType, sourceID)
	b, err := s.cache.Get(ctx, key)
	switch {
	case err == nil && bytes.Equal(b, tombstone):
		// Recently written; the backend is authoritative.
	case err == nil:
		var record models.Embedding
		if jsonErr := json.Unmarshal(b, &record); jsonErr == nil {
			return &record, nil
		} else {
			s.logger.Warn("Dropping unreadable cached embedding", zap.String("key", key), zap.Error(jsonErr))
			if delErr := s.cache.Del(ctx, key); delErr != nil {
				s.logger.Warn("Embedding cache evict failed", zap.String("key", key), zap.Error(delErr))
			}
		}
	case !stderrors.Is(err, ErrCacheMiss):
		s.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
	}

	record, err := s.next.GetOne(ctx, entityType, sourceID)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, record)
	return record, nil
}

// GetMany always reads the backend; cross-entity queries are not cached.
func (s *CachedEmbeddingStore) GetMany(ctx context.Context, entityType models.EntityType, sourceIDs []string) ([]models.Embedding, error) {
	return s.next.GetMany(ctx, entityType, sourceIDs)
}

func (s *CachedEmbeddingStore) Delete(ctx context.Context, entityType models.EntityType, sourceID string) error {
	if err := s.next.Delete(ctx, entityType, sourceID); err != nil {
		return err
	}
	s.invalidate(ctx, cacheKey(entityType, sourceID))
	return nil
}

// Close closes the backend when it holds a connection of its own.
func (s *CachedEmbeddingStore) Close() error {
	if closer, ok := s.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *CachedEmbeddingStore) fill(ctx context.Context, record *models.Embedding) {
	key := cacheKey(record.EntityType, record.SourceID)
	b, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn("Embedding cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if _, err := s.cache.SetNX(ctx, key, b, s.ttl); err != nil {
		s.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CachedEmbeddingStore) invalidate(ctx context.Context, key string) {
	ttl := invalidationTTL
	if s.ttl < ttl {
		ttl = s.ttl
	}
	if err := s.cache.Set(ctx, key, tombstone, ttl); err != nil {
		s.logger.Warn("Embedding cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}
