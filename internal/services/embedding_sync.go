package services

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/kafka"
	"github.com/aihub/jobboard-ai/internal/knowledge"
	"github.com/aihub/jobboard-ai/internal/models"
	"github.com/aihub/jobboard-ai/internal/repository"
)

// EmbeddingWriter stores and removes entity embeddings. RAGService
// implements it.
type EmbeddingWriter interface {
	UpsertEmbedding(ctx context.Context, entityType models.EntityType, sourceID, text string) error
	DeleteEmbedding(ctx context.Context, entityType models.EntityType, sourceID string) error
}

// EntityReader is the read-only view of job-board records.
type EntityReader interface {
	repository.UserLookup
	repository.JobPostLookup
	repository.ApplicationLookup
}

// EmbeddingSync rebuilds embeddings from the current state of an entity.
type EmbeddingSync struct {
	writer    EmbeddingWriter
	entities  EntityReader
	extractor knowledge.TextExtractor
	logger    *zap.Logger
}

func NewEmbeddingSync(writer EmbeddingWriter, entities EntityReader, extractor knowledge.TextExtractor, logger *zap.Logger) *EmbeddingSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingSync{
		writer:    writer,
		entities:  entities,
		extractor: extractor,
		logger:    logger.Named("embedding_sync"),
	}
}

// Refresh re-embeds one entity from its stored record.
func (s *EmbeddingSync) Refresh(ctx context.Context, entityType models.EntityType, sourceID string) error {
	switch entityType {
	case models.EntityCandidateProfile:
		return s.RefreshCandidate(ctx, sourceID)
	case models.EntityJobPost:
		return s.RefreshJobPost(ctx, sourceID)
	case models.EntityApplication:
		return s.RefreshApplication(ctx, sourceID)
	}
	return errors.NewInvalidInputError("entityType", fmt.Sprintf("unknown entity type %q", entityType))
}

func (s *EmbeddingSync) RefreshCandidate(ctx context.Context, userID string) error {
	user, err := s.entities.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	text := knowledge.CandidateText(user, s.resumeText(ctx, user))
	return s.writer.UpsertEmbedding(ctx, models.EntityCandidateProfile, userID, text)
}

func (s *EmbeddingSync) RefreshJobPost(ctx context.Context, jobPostID string) error {
	job, err := s.entities.GetJobPost(ctx, jobPostID)
	if err != nil {
		return err
	}
	return s.writer.UpsertEmbedding(ctx, models.EntityJobPost, jobPostID, knowledge.JobText(job))
}

// RefreshApplication embeds the application together with its candidate
// and job post.
func (s *EmbeddingSync) RefreshApplication(ctx context.Context, applicationID string) error {
	app, err := s.entities.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	user, err := s.entities.GetUser(ctx, app.CandidateID)
	if err != nil {
		return err
	}
	job, err := s.entities.GetJobPost(ctx, app.JobPostID)
	if err != nil {
		return err
	}
	text := knowledge.CombinedApplicationText(app, user, job, s.resumeText(ctx, user))
	return s.writer.UpsertEmbedding(ctx, models.EntityApplication, applicationID, text)
}

// Remove deletes the embedding of a deleted entity.
func (s *EmbeddingSync) Remove(ctx context.Context, entityType models.EntityType, sourceID string) error {
	return s.writer.DeleteEmbedding(ctx, entityType, sourceID)
}

// resumeText returns "" when the user has no resume or it cannot be read;
// the profile is still embedded without it.
func (s *EmbeddingSync) resumeText(ctx context.Context, user *models.User) string {
	if user.ResumeURL == "" {
		return ""
	}
	text, err := s.extractor.ExtractText(ctx, user.ResumeURL)
	if err != nil {
		s.logger.Warn("Embedding profile without resume",
			zap.String("user_id", user.UserID),
			zap.String("resume", user.ResumeURL),
			zap.Error(err))
		return ""
	}
	return text
}

// HandleEntityChange consumes entity-changes messages. Malformed messages and
// entities that no longer exist are dropped; other failures are returned so
// the consumer can park the message for retry.
func (s *EmbeddingSync) HandleEntityChange(ctx context.Context, message *sarama.ConsumerMessage) error {
	change, err := kafka.ParseEntityChange(message.Value)
	if err != nil {
		s.logger.Warn("Dropping malformed entity change", zap.Int64("offset", message.Offset), zap.Error(err))
		return nil
	}

	switch change.Action {
	case kafka.ActionDeleted:
		err = s.Remove(ctx, change.EntityType, change.SourceID)
	default:
		err = s.Refresh(ctx, change.EntityType, change.SourceID)
	}

	if stderrors.Is(err, errors.ErrNotFound) {
		s.logger.Info("Entity vanished before sync",
			zap.String("entity_type", string(change.EntityType)),
			zap.String("source_id", change.SourceID))
		return nil
	}
	return err
}
