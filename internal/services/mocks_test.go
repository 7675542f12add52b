package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aihub/jobboard-ai/internal/kafka"
	"github.com/aihub/jobboard-ai/internal/knowledge"
	"github.com/aihub/jobboard-ai/internal/models"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	v, _ := args.Get(0).([]float32)
	return v, args.Error(1)
}

func (m *MockEmbedder) Dimensions() int { return 3 }

func (m *MockEmbedder) Ready() bool { return true }

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Complete(ctx context.Context, req knowledge.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upsert(ctx context.Context, entityType models.EntityType, sourceID string, vector []float32, text string) error {
	return m.Called(ctx, entityType, sourceID, vector, text).Error(0)
}

func (m *MockStore) GetOne(ctx context.Context, entityType models.EntityType, sourceID string) (*models.Embedding, error) {
	args := m.Called(ctx, entityType, sourceID)
	r, _ := args.Get(0).(*models.Embedding)
	return r, args.Error(1)
}

func (m *MockStore) GetMany(ctx context.Context, entityType models.EntityType, sourceIDs []string) ([]models.Embedding, error) {
	args := m.Called(ctx, entityType, sourceIDs)
	r, _ := args.Get(0).([]models.Embedding)
	return r, args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, entityType models.EntityType, sourceID string) error {
	return m.Called(ctx, entityType, sourceID).Error(0)
}

// MockEntities covers users, job posts and applications.
type MockEntities struct {
	mock.Mock
}

func (m *MockEntities) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*models.User)
	return r, args.Error(1)
}

func (m *MockEntities) GetJobPost(ctx context.Context, jobPostID string) (*models.JobPost, error) {
	args := m.Called(ctx, jobPostID)
	r, _ := args.Get(0).(*models.JobPost)
	return r, args.Error(1)
}

func (m *MockEntities) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	args := m.Called(ctx, applicationID)
	r, _ := args.Get(0).(*models.Application)
	return r, args.Error(1)
}

func (m *MockEntities) ListApplicationIDs(ctx context.Context, jobPostID string) ([]string, error) {
	args := m.Called(ctx, jobPostID)
	r, _ := args.Get(0).([]string)
	return r, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEmbeddingEvent(ctx context.Context, evt kafka.EmbeddingEvent) error {
	return m.Called(ctx, evt).Error(0)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractText(ctx context.Context, locator string) (string, error) {
	args := m.Called(ctx, locator)
	return args.String(0), args.Error(1)
}

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) UpsertEmbedding(ctx context.Context, entityType models.EntityType, sourceID, text string) error {
	return m.Called(ctx, entityType, sourceID, text).Error(0)
}

func (m *MockWriter) DeleteEmbedding(ctx context.Context, entityType models.EntityType, sourceID string) error {
	return m.Called(ctx, entityType, sourceID).Error(0)
}
