package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aihub/jobboard-ai/internal/models"
)

// Repository exposes the underlying connection.
type Repository interface {
	GetDB() *gorm.DB
}

// EmbeddingStore keeps one vector and text per (entity type, source id).
// Storage failures are reported as STORE_UNAVAILABLE.
type EmbeddingStore interface {
	// Upsert creates or atomically replaces the record.
	Upsert(ctx context.Context, entityType models.EntityType, sourceID string, vector []float32, text string) error
	// GetOne fails with RESOURCE_NOT_FOUND when no record exists.
	GetOne(ctx context.Context, entityType models.EntityType, sourceID string) (*models.Embedding, error)
	// GetMany returns the records that exist, in the order of sourceIDs.
	GetMany(ctx context.Context, entityType models.EntityType, sourceIDs []string) ([]models.Embedding, error)
	// Delete is a no-op for a missing record.
	Delete(ctx context.Context, entityType models.EntityType, sourceID string) error
}

// UserLookup reads jobseeker profiles.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// JobPostLookup reads job posts.
type JobPostLookup interface {
	GetJobPost(ctx context.Context, jobPostID string) (*models.JobPost, error)
}

// ApplicationLookup reads applications and resolves the applications of a job post.
type ApplicationLookup interface {
	GetApplication(ctx context.Context, applicationID string) (*models.Application, error)
	ListApplicationIDs(ctx context.Context, jobPostID string) ([]string, error)
}

var (
	_ EmbeddingStore    = (*GormEmbeddingStore)(nil)
	_ EmbeddingStore    = (*MilvusEmbeddingStore)(nil)
	_ EmbeddingStore    = (*CachedEmbeddingStore)(nil)
	_ Repository        = (*EntityLookup)(nil)
	_ UserLookup        = (*EntityLookup)(nil)
	_ JobPostLookup     = (*EntityLookup)(nil)
	_ ApplicationLookup = (*EntityLookup)(nil)
)
