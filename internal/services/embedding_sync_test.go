package services

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/models"
)

func candidate() *models.User {
	return &models.User{
		UserID:    "u1",
		Name:      "Jane Doe",
		Email:     "jane@example.com",
		ResumeURL: "https://cdn.example.com/jane.pdf",
	}
}

func newSync() (*EmbeddingSync, *MockWriter, *MockEntities, *MockExtractor) {
	writer := &MockWriter{}
	entities := &MockEntities{}
	extractor := &MockExtractor{}
	return NewEmbeddingSync(writer, entities, extractor, nil), writer, entities, extractor
}

func TestEmbeddingSync_RefreshCandidate(t *testing.T) {
	sync, writer, entities, extractor := newSync()
	ctx := context.Background()

	entities.On("GetUser", ctx, "u1").Return(candidate(), nil)
	extractor.On("ExtractText", ctx, "https://cdn.example.com/jane.pdf").Return("Six years of Go.", nil)
	writer.On("UpsertEmbedding", ctx, models.EntityCandidateProfile, "u1", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Jane Doe") && strings.Contains(text, "Six years of Go.")
	})).Return(nil)

	require.NoError(t, sync.Refresh(ctx, models.EntityCandidateProfile, "u1"))
	writer.AssertExpectations(t)
}

func TestEmbeddingSync_UnreadableResumeStillEmbedsProfile(t *testing.T) {
	sync, writer, entities, extractor := newSync()
	ctx := context.Background()

	entities.On("GetUser", ctx, "u1").Return(candidate(), nil)
	extractor.On("ExtractText", ctx, mock.Anything).Return("", errors.NewUnreachableResourceError("https://cdn.example.com/jane.pdf"))
	writer.On("UpsertEmbedding", ctx, models.EntityCandidateProfile, "u1", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Jane Doe")
	})).Return(nil)

	require.NoError(t, sync.RefreshCandidate(ctx, "u1"))
}

func TestEmbeddingSync_RefreshJobPost(t *testing.T) {
	sync, writer, entities, _ := newSync()
	ctx := context.Background()

	entities.On("GetJobPost", ctx, "job1").Return(&models.JobPost{JobPostID: "job1", Title: "Platform Engineer"}, nil)
	writer.On("UpsertEmbedding", ctx, models.EntityJobPost, "job1", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Platform Engineer")
	})).Return(nil)

	require.NoError(t, sync.Refresh(ctx, models.EntityJobPost, "job1"))
}

func TestEmbeddingSync_RefreshApplication(t *testing.T) {
	sync, writer, entities, extractor := newSync()
	ctx := context.Background()
	score := 88

	entities.On("GetApplication", ctx, "app-1").Return(&models.Application{
		ApplicationID: "app-1", JobPostID: "job1", CandidateID: "u1", Status: "applied", AIFitScore: &score,
	}, nil)
	entities.On("GetUser", ctx, "u1").Return(candidate(), nil)
	entities.On("GetJobPost", ctx, "job1").Return(&models.JobPost{JobPostID: "job1", Title: "Platform Engineer"}, nil)
	extractor.On("ExtractText", ctx, "https://cdn.example.com/jane.pdf").Return("Six years of Go.", nil)
	writer.On("UpsertEmbedding", ctx, models.EntityApplication, "app-1", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "88") &&
			strings.Contains(text, "Jane Doe") &&
			strings.Contains(text, "Platform Engineer") &&
			strings.Contains(text, "Six years of Go.")
	})).Return(nil)

	require.NoError(t, sync.Refresh(ctx, models.EntityApplication, "app-1"))
	writer.AssertExpectations(t)
}

func TestEmbeddingSync_RefreshErrors(t *testing.T) {
	sync, writer, entities, _ := newSync()
	ctx := context.Background()

	err := sync.Refresh(ctx, models.EntityType("resume"), "x")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidInput))

	entities.On("GetApplication", ctx, "ghost").Return(nil, errors.NewNotFoundError("application ghost"))
	err = sync.Refresh(ctx, models.EntityApplication, "ghost")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	writer.AssertNotCalled(t, "UpsertEmbedding", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbeddingSync_HandleEntityChange(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted cascades", func(t *testing.T) {
		sync, writer, _, _ := newSync()
		writer.On("DeleteEmbedding", ctx, models.EntityJobPost, "job1").Return(nil)

		err := sync.HandleEntityChange(ctx, &sarama.ConsumerMessage{
			Value: []byte(`{"entity_type":"jobPost","source_id":"job1","action":"deleted"}`),
		})
		require.NoError(t, err)
		writer.AssertExpectations(t)
	})

	t.Run("upserted refreshes", func(t *testing.T) {
		sync, writer, entities, _ := newSync()
		entities.On("GetJobPost", ctx, "job1").Return(&models.JobPost{JobPostID: "job1", Title: "SRE"}, nil)
		writer.On("UpsertEmbedding", ctx, models.EntityJobPost, "job1", mock.Anything).Return(nil)

		err := sync.HandleEntityChange(ctx, &sarama.ConsumerMessage{
			Value: []byte(`{"entity_type":"jobPost","source_id":"job1","action":"upserted"}`),
		})
		require.NoError(t, err)
		writer.AssertExpectations(t)
	})

	t.Run("malformed and vanished messages are dropped", func(t *testing.T) {
		sync, _, entities, _ := newSync()
		require.NoError(t, sync.HandleEntityChange(ctx, &sarama.ConsumerMessage{Value: []byte("{")}))

		entities.On("GetJobPost", ctx, "gone").Return(nil, errors.NewNotFoundError("job post gone"))
		require.NoError(t, sync.HandleEntityChange(ctx, &sarama.ConsumerMessage{
			Value: []byte(`{"entity_type":"jobPost","source_id":"gone","action":"upserted"}`),
		}))
	})

	t.Run("store outage is returned for retry", func(t *testing.T) {
		sync, writer, _, _ := newSync()
		writer.On("DeleteEmbedding", ctx, models.EntityApplication, "a1").Return(errors.NewStoreUnavailableError())

		err := sync.HandleEntityChange(ctx, &sarama.ConsumerMessage{
			Value: []byte(`{"entity_type":"application","source_id":"a1","action":"deleted"}`),
		})
		assert.True(t, stderrors.Is(err, errors.ErrStoreUnavailable))
	})
}
