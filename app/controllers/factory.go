package controllers

import (
	"go.uber.org/dig"

	"github.com/aihub/jobboard-ai/internal/database"
	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/knowledge"
	"github.com/aihub/jobboard-ai/internal/middleware"
	"github.com/aihub/jobboard-ai/internal/services"
)

// ControllerFactory resolves controllers from the DI container.
type ControllerFactory struct {
	container *dig.Container
}

func NewControllerFactory(container *dig.Container) *ControllerFactory {
	return &ControllerFactory{
		container: container,
	}
}

func (f *ControllerFactory) CreateAIController() (*AIController, error) {
	var ctrl *AIController

	err := f.container.Invoke(func(
		rag *services.RAGService,
		sync *services.EmbeddingSync,
		fit *services.FitScoreService,
		feedback *services.FeedbackService,
		handler *errors.ErrorHandler,
	) {
		ctrl = &AIController{
			BaseController: BaseController{Errors: handler},
			Answers:        rag,
			Embeddings:     rag,
			Refresher:      sync,
			FitScores:      fit,
			Feedback:       feedback,
		}
	})
	if err != nil {
		return nil, err
	}
	return ctrl, nil
}

func (f *ControllerFactory) CreateHealthController() (*HealthController, error) {
	var ctrl *HealthController

	err := f.container.Invoke(func(db *database.Database, embedder knowledge.Embedder, components *middleware.MiddlewareManager, handler *errors.ErrorHandler) {
		ctrl = &HealthController{
			BaseController: BaseController{Errors: handler},
			Database:       db,
			Embedder:       embedder,
			Components:     components,
		}
	})
	if err != nil {
		return nil, err
	}
	return ctrl, nil
}
