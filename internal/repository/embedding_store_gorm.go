package repository

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aihub/jobboard-ai/internal/database"
	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/models"
)

const embeddingsTable = "embeddings"

// GormEmbeddingStore keeps embeddings in PostgreSQL.
type GormEmbeddingStore struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewGormEmbeddingStore(db *gorm.DB, timeout time.Duration) *GormEmbeddingStore {
	return &GormEmbeddingStore{db: db, timeout: timeout}
}

func (s *GormEmbeddingStore) GetDB() *gorm.DB {
	return s.db
}

func (s *GormEmbeddingStore) Upsert(ctx context.Context, entityType models.EntityType, sourceID string, vector []float32, text string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	record := models.Embedding{
		EntityType: entityType,
		SourceID:   sourceID,
		Vector:     models.Vector(vector),
		Text:       text,
	}

	started := time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}, {Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "text", "update_time"}),
	}).Create(&record).Error
	database.RecordQuery("upsert", embeddingsTable, time.Since(started), err)
	if err != nil {
		return errors.NewStoreUnavailableError().WithCause(err)
	}
	return nil
}

func (s *GormEmbeddingStore) GetOne(ctx context.Context, entityType models.EntityType, sourceID string) (*models.Embedding, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var record models.Embedding
	started := time.Now()
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND source_id = ?", entityType, sourceID).
		First(&record).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		database.RecordQuery("select", embeddingsTable, time.Since(started), nil)
		return nil, errors.NewNotFoundError("embedding " + string(entityType) + "/" + sourceID)
	}
	database.RecordQuery("select", embeddingsTable, time.Since(started), err)
	if err != nil {
		return nil, errors.NewStoreUnavailableError().WithCause(err)
	}
	return &record, nil
}

func (s *GormEmbeddingStore) GetMany(ctx context.Context, entityType models.EntityType, sourceIDs []string) ([]models.Embedding, error) {
	ids := uniqueIDs(sourceIDs)
	if len(ids) == 0 {
		return []models.Embedding{}, nil
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var records []models.Embedding
	started := time.Now()
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND source_id IN ?", entityType, ids).
		Find(&records).Error
	database.RecordQuery("select", embeddingsTable, time.Since(started), err)
	if err != nil {
		return nil, errors.NewStoreUnavailableError().WithCause(err)
	}
	return orderBySourceIDs(records, ids), nil
}

func (s *GormEmbeddingStore) Delete(ctx context.Context, entityType models.EntityType, sourceID string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND source_id = ?", entityType, sourceID).
		Delete(&models.Embedding{}).Error
	database.RecordQuery("delete", embeddingsTable, time.Since(started), err)
	if err != nil {
		return errors.NewStoreUnavailableError().WithCause(err)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func orderBySourceIDs(records []models.Embedding, ids []string) []models.Embedding {
	bySource := make(map[string]models.Embedding, len(records))
	for _, r := range records {
		bySource[r.SourceID] = r
	}
	ordered := make([]models.Embedding, 0, len(records))
	for _, id := range ids {
		if r, ok := bySource[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered
}
