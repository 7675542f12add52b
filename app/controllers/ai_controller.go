package controllers

import (
	"context"

	"github.com/aihub/jobboard-ai/internal/models"
	"github.com/aihub/jobboard-ai/internal/services"
)

// Answerer is the retrieval side of the RAG service.
type Answerer interface {
	AnswerForEntity(ctx context.Context, entityType models.EntityType, sourceID, query string) (*services.EntityAnswer, error)
	AnswerAcrossEntities(ctx context.Context, jobPostID, query string) (*services.GlobalAnswer, error)
}

// EmbeddingManager writes and removes entity embeddings.
type EmbeddingManager interface {
	UpsertEmbedding(ctx context.Context, entityType models.EntityType, sourceID, text string) error
	DeleteEmbedding(ctx context.Context, entityType models.EntityType, sourceID string) error
}

// Refresher rebuilds an embedding from the stored entity.
type Refresher interface {
	Refresh(ctx context.Context, entityType models.EntityType, sourceID string) error
}

type FitScorer interface {
	ComputeFitScore(ctx context.Context, resumeRef, jobDescription string) (int, error)
}

type FeedbackGiver interface {
	InterviewFeedback(ctx context.Context, transcript string) (*services.InterviewFeedback, error)
}

type chatRequest struct {
	Query string `json:"query" validate:"max=8000"`
}

type fitScoreRequest struct {
	ResumeURL      string `json:"resumeUrl" validate:"omitempty,url"`
	JobDescription string `json:"jobDescription" validate:"max=100000"`
}

type feedbackRequest struct {
	Transcript string `json:"transcript" validate:"max=200000"`
}

type embeddingRequest struct {
	Text string `json:"text" validate:"max=100000"`
}

// AIController serves the question answering, scoring and embedding endpoints.
// Fields are exported so the router copies them into each request's controller.
type AIController struct {
	BaseController

	Answers    Answerer
	Embeddings EmbeddingManager
	Refresher  Refresher
	FitScores  FitScorer
	Feedback   FeedbackGiver
}

// ChatCandidate answers a question about one application.
func (c *AIController) ChatCandidate() {
	var req chatRequest
	if !c.decode(&req) {
		return
	}
	answer, err := c.Answers.AnswerForEntity(c.Ctx.Request.Context(), models.EntityApplication, c.param(":applicationId"), req.Query)
	if err != nil {
		c.JSONError(err)
		return
	}
	c.JSONSuccess(answer)
}

// ChatEntity answers a question about any embedded entity.
func (c *AIController) ChatEntity() {
	var req chatRequest
	if !c.decode(&req) {
		return
	}
	entityType := models.EntityType(c.param(":entityType"))
	answer, err := c.Answers.AnswerForEntity(c.Ctx.Request.Context(), entityType, c.param(":sourceId"), req.Query)
	if err != nil {
		c.JSONError(err)
		return
	}
	c.JSONSuccess(answer)
}

// ChatGlobal answers a question across every application of a job post.
func (c *AIController) ChatGlobal() {
	var req chatRequest
	if !c.decode(&req) {
		return
	}
	answer, err := c.Answers.AnswerAcrossEntities(c.Ctx.Request.Context(), c.param(":jobPostId"), req.Query)
	if err != nil {
		c.JSONError(err)
		return
	}
	c.JSONSuccess(answer)
}

func (c *AIController) FitScore() {
	var req fitScoreRequest
	if !c.decode(&req) {
		return
	}
	score, err := c.FitScores.ComputeFitScore(c.Ctx.Request.Context(), req.ResumeURL, req.JobDescription)
	if err != nil {
		c.JSONError(err)
		return
	}
	c.JSONSuccess(map[string]int{"score": score})
}

func (c *AIController) InterviewFeedback() {
	var req feedbackRequest
	if !c.decode(&req) {
		return
	}
	fb, err := c.Feedback.InterviewFeedback(c.Ctx.Request.Context(), req.Transcript)
	if err != nil {
		c.JSONError(err)
		return
	}
	c.JSONSuccess(fb)
}

// PutEmbedding stores the embedding of caller-supplied text.
func (c *AIController) PutEmbedding() {
	var req embeddingRequest
	if !c.decode(&req) {
		return
	}
	entityType := models.EntityType(c.param(":entityType"))
	sourceID := c.param(":sourceId")
	if err := c.Embeddings.UpsertEmbedding(c.Ctx.Request.Context(), entityType, sourceID, req.Text); err != nil {
		c.JSONError(err)
		return
	}
	c.JSONSuccess(map[string]string{"entity_type": string(entityType), "source_id": sourceID})
}

func (c *AIController) DeleteEmbedding() {
	entityType := models.EntityType(c.param(":entityType"))
	sourceID := c.param(":sourceId")
	if err := c.Embeddings.DeleteEmbedding(c.Ctx.Request.Context(), entityType, sourceID); err != nil {
		c.JSONError(err)
		return
	}
	c.JSONSuccess(map[string]string{"entity_type": string(entityType), "source_id": sourceID})
}

// RefreshEmbedding re-embeds an entity from its stored record.
func (c *AIController) RefreshEmbedding() {
	entityType := models.EntityType(c.param(":entityType"))
	sourceID := c.param(":sourceId")
	if err := c.Refresher.Refresh(c.Ctx.Request.Context(), entityType, sourceID); err != nil {
		c.JSONError(err)
		return
	}
	c.JSONSuccess(map[string]string{"entity_type": string(entityType), "source_id": sourceID})
}
