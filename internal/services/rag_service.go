package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/config"
	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/kafka"
	"github.com/aihub/jobboard-ai/internal/knowledge"
	"github.com/aihub/jobboard-ai/internal/models"
	"github.com/aihub/jobboard-ai/internal/repository"
)

const (
	entityChatSystemPrompt = "You are a helpful AI assistant helping recruiters analyze candidate applications. Use the given context to answer questions."

	// NoMatchAnswer is the fixed reply when no candidate context supports an answer.
	NoMatchAnswer = "No matching candidate information was found for this question."

	globalChatSystemPrompt = "You are a helpful AI assistant helping recruiters compare candidate applications for one job post. " +
		"Answer strictly from the given context and do not use outside knowledge. " +
		"If the context does not support an answer, reply exactly with: " + NoMatchAnswer

	contextSeparator = "\n\n---\n\n"
)

// EventPublisher announces embedding writes. Delivery is best effort.
type EventPublisher interface {
	PublishEmbeddingEvent(ctx context.Context, evt kafka.EmbeddingEvent) error
}

// RAGSettings are the retrieval knobs that can change at runtime.
type RAGSettings struct {
	TopK             int
	ThresholdEnabled bool
	Threshold        float64
}

func RAGSettingsFrom(cfg config.RAGConfig) RAGSettings {
	s := RAGSettings{
		TopK:             cfg.TopK,
		ThresholdEnabled: cfg.RelevanceThresholdEnabled,
		Threshold:        cfg.RelevanceThreshold,
	}
	if s.TopK <= 0 {
		s.TopK = knowledge.DefaultTopK
	}
	return s
}

// RAGDeps are the collaborators of RAGService. Events may be nil.
type RAGDeps struct {
	Embedder     knowledge.Embedder
	Generator    knowledge.Generator
	Store        repository.EmbeddingStore
	Applications repository.ApplicationLookup
	Events       EventPublisher
	ChatModel    string
	Settings     RAGSettings
	Logger       *zap.Logger
}

// RAGService embeds, stores and answers questions over job-board entities.
type RAGService struct {
	embedder     knowledge.Embedder
	generator    knowledge.Generator
	store        repository.EmbeddingStore
	applications repository.ApplicationLookup
	events       EventPublisher
	chatModel    string
	logger       *zap.Logger

	settings atomic.Pointer[RAGSettings]
}

func NewRAGService(deps RAGDeps) *RAGService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RAGService{
		embedder:     deps.Embedder,
		generator:    deps.Generator,
		store:        deps.Store,
		applications: deps.Applications,
		events:       deps.Events,
		chatModel:    deps.ChatModel,
		logger:       logger.Named("rag"),
	}
	settings := deps.Settings
	if settings.TopK <= 0 {
		settings.TopK = knowledge.DefaultTopK
	}
	s.settings.Store(&settings)
	return s
}

// Settings returns the current retrieval settings.
func (s *RAGService) Settings() RAGSettings {
	return *s.settings.Load()
}

// ApplyConfig swaps retrieval settings after a config reload.
func (s *RAGService) ApplyConfig(cfg *config.Config) {
	next := RAGSettingsFrom(cfg.RAG)
	s.settings.Store(&next)
	s.logger.Info("RAG settings reloaded",
		zap.Int("top_k", next.TopK),
		zap.Bool("threshold_enabled", next.ThresholdEnabled),
		zap.Float64("threshold", next.Threshold))
}

// EntityAnswer is the reply for a single-entity question. Score is the
// cosine similarity between the query and the stored embedding.
type EntityAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

// GlobalAnswer is the reply for a question across a job post's applications.
type GlobalAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// AnswerForEntity answers a question from the stored context of one entity.
func (s *RAGService) AnswerForEntity(ctx context.Context, entityType models.EntityType, sourceID, query string) (*EntityAnswer, error) {
	answer, err := s.answerForEntity(ctx, entityType, sourceID, query)
	if err != nil {
		s.logFailure("answer_for_entity", err,
			zap.String("entity_type", string(entityType)), zap.String("source_id", sourceID))
		return nil, err
	}
	return answer, nil
}

func (s *RAGService) answerForEntity(ctx context.Context, entityType models.EntityType, sourceID, query string) (*EntityAnswer, error) {
	if !entityType.Valid() {
		return nil, errors.NewInvalidInputError("entityType", fmt.Sprintf("unknown entity type %q", entityType))
	}
	if strings.TrimSpace(sourceID) == "" {
		return nil, errors.NewEmptyInputError("sourceId")
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	record, err := s.store.GetOne(ctx, entityType, sourceID)
	if err != nil {
		return nil, err
	}

	// The score is diagnostic. A stale vector from another model still gets an answer.
	score, err := knowledge.CosineSimilarity(queryVector, record.Vector)
	if err != nil {
		if !stderrors.Is(err, errors.ErrDimensionMismatch) {
			return nil, err
		}
		s.logger.Warn("Stored embedding dimension differs from the query, answering without a score",
			zap.String("entity_type", string(entityType)),
			zap.String("source_id", sourceID),
			zap.Int("query_dimensions", len(queryVector)),
			zap.Int("stored_dimensions", len(record.Vector)))
		score = 0
	}

	text, err := s.generator.Complete(ctx, knowledge.CompletionRequest{
		Model:        s.chatModel,
		SystemPrompt: entityChatSystemPrompt,
		UserPrompt:   fmt.Sprintf("Query: %s\n\n%s Context:\n%s", query, entityType.Label(), record.Text),
	})
	if err != nil {
		return nil, err
	}

	return &EntityAnswer{Answer: text, Score: score}, nil
}

// AnswerAcrossEntities answers a question from the best matching
// applications of a job post.
func (s *RAGService) AnswerAcrossEntities(ctx context.Context, jobPostID, query string) (*GlobalAnswer, error) {
	answer, err := s.answerAcrossEntities(ctx, jobPostID, query)
	if err != nil {
		s.logFailure("answer_across_entities", err, zap.String("job_post_id", jobPostID))
		return nil, err
	}
	return answer, nil
}

func (s *RAGService) answerAcrossEntities(ctx context.Context, jobPostID, query string) (*GlobalAnswer, error) {
	if strings.TrimSpace(jobPostID) == "" {
		return nil, errors.NewEmptyInputError("jobPostId")
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	ids, err := s.applications.ListApplicationIDs(ctx, jobPostID)
	if err != nil {
		return nil, err
	}

	records, err := s.store.GetMany(ctx, models.EntityApplication, ids)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewNoEmbeddingsError("job post " + jobPostID)
	}

	usable := records[:0:0]
	for _, r := range records {
		if len(r.Vector) == len(queryVector) {
			usable = append(usable, r)
		}
	}
	if dropped := len(records) - len(usable); dropped > 0 {
		s.logger.Warn("Skipping stale embeddings with a different dimension",
			zap.String("job_post_id", jobPostID),
			zap.Int("dropped", dropped),
			zap.Int("query_dimensions", len(queryVector)))
	}
	if len(usable) == 0 {
		return nil, errors.NewNoEmbeddingsError("job post " + jobPostID)
	}
	records = usable

	settings := s.Settings()
	ranked, err := knowledge.Rank(queryVector, records, func(r models.Embedding) []float32 { return r.Vector }, settings.TopK)
	if err != nil {
		return nil, err
	}

	if settings.ThresholdEnabled {
		kept := ranked[:0:0]
		for _, r := range ranked {
			if r.Score >= settings.Threshold {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			s.logger.Info("No application passed the relevance threshold",
				zap.String("job_post_id", jobPostID),
				zap.Float64("threshold", settings.Threshold),
				zap.Float64("best_score", ranked[0].Score))
			return &GlobalAnswer{Answer: NoMatchAnswer, Sources: []string{}}, nil
		}
		ranked = kept
	}

	texts := make([]string, len(ranked))
	sources := make([]string, len(ranked))
	for i, r := range ranked {
		texts[i] = r.Item.Text
		sources[i] = r.Item.SourceID
	}

	text, err := s.generator.Complete(ctx, knowledge.CompletionRequest{
		Model:        s.chatModel,
		SystemPrompt: globalChatSystemPrompt,
		UserPrompt:   fmt.Sprintf("Query: %s\n\nApplications Context:\n%s", query, strings.Join(texts, contextSeparator)),
	})
	if err != nil {
		return nil, err
	}

	return &GlobalAnswer{Answer: text, Sources: sources}, nil
}

// UpsertEmbedding embeds text and stores it for the entity.
func (s *RAGService) UpsertEmbedding(ctx context.Context, entityType models.EntityType, sourceID, text string) error {
	if err := s.upsertEmbedding(ctx, entityType, sourceID, text); err != nil {
		s.logFailure("upsert_embedding", err,
			zap.String("entity_type", string(entityType)), zap.String("source_id", sourceID))
		return err
	}
	s.publish(ctx, kafka.EventEmbeddingUpserted, entityType, sourceID)
	return nil
}

func (s *RAGService) upsertEmbedding(ctx context.Context, entityType models.EntityType, sourceID, text string) error {
	if !entityType.Valid() {
		return errors.NewInvalidInputError("entityType", fmt.Sprintf("unknown entity type %q", entityType))
	}
	if strings.TrimSpace(sourceID) == "" {
		return errors.NewEmptyInputError("sourceId")
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	if knowledge.IsDegenerate(vector) {
		return errors.NewDegenerateVectorError()
	}

	return s.store.Upsert(ctx, entityType, sourceID, vector, text)
}

// DeleteEmbedding removes the embedding of a deleted entity.
func (s *RAGService) DeleteEmbedding(ctx context.Context, entityType models.EntityType, sourceID string) error {
	if !entityType.Valid() {
		return errors.NewInvalidInputError("entityType", fmt.Sprintf("unknown entity type %q", entityType))
	}
	if err := s.store.Delete(ctx, entityType, sourceID); err != nil {
		s.logFailure("delete_embedding", err,
			zap.String("entity_type", string(entityType)), zap.String("source_id", sourceID))
		return err
	}
	s.publish(ctx, kafka.EventEmbeddingDeleted, entityType, sourceID)
	return nil
}

func (s *RAGService) publish(ctx context.Context, t kafka.EventType, entityType models.EntityType, sourceID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEmbeddingEvent(ctx, kafka.NewEmbeddingEvent(t, entityType, sourceID)); err != nil {
		s.logger.Warn("Failed to publish embedding event",
			zap.String("type", string(t)),
			zap.String("entity_type", string(entityType)),
			zap.String("source_id", sourceID),
			zap.Error(err))
	}
}

// logFailure logs lookups that found nothing at info and everything else
// at warn.
func (s *RAGService) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if stderrors.Is(err, errors.ErrNotFound) || stderrors.Is(err, errors.ErrNoEmbeddings) {
		s.logger.Info("RAG lookup found nothing", fields...)
		return
	}
	s.logger.Warn("RAG operation failed", fields...)
}
