package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/aihub/jobboard-ai/app/controllers"
)

// Controllers are the handlers served by the router.
type Controllers struct {
	AI      *controllers.AIController
	Health  *controllers.HealthController
	Metrics *controllers.MetricsController
	// MetricsPath is empty when metrics are disabled.
	MetricsPath string
}

// Init resolves the controllers and registers them on the global handler
// tree. Must be called after bootstrap.
func Init(factory *controllers.ControllerFactory, metricsPath string) error {
	ai, err := factory.CreateAIController()
	if err != nil {
		return err
	}
	health, err := factory.CreateHealthController()
	if err != nil {
		return err
	}

	Register(web.BeeApp.Handlers, Controllers{
		AI:          ai,
		Health:      health,
		Metrics:     &controllers.MetricsController{},
		MetricsPath: metricsPath,
	})
	return nil
}

// Register adds every route to handlers.
func Register(handlers *web.ControllerRegister, c Controllers) {
	add := func(pattern string, ctrl web.ControllerInterface, methods string) {
		handlers.Add(pattern, ctrl, web.WithRouterMethods(ctrl, methods))
	}

	add("/health", c.Health, "get:Health")
	if c.MetricsPath != "" && c.Metrics != nil {
		add(c.MetricsPath, c.Metrics, "get:Metrics")
	}

	add("/api/ai/feedback", c.AI, "post:InterviewFeedback")
	add("/api/ai/fit-score", c.AI, "post:FitScore")

	add("/api/ai/chat/candidate/:applicationId", c.AI, "post:ChatCandidate")
	add("/api/ai/chat/entity/:entityType/:sourceId", c.AI, "post:ChatEntity")
	add("/api/ai/chat/global/:jobPostId", c.AI, "post:ChatGlobal")

	// the refresh route must precede the bare :sourceId route
	add("/api/ai/embeddings/:entityType/:sourceId/refresh", c.AI, "post:RefreshEmbedding")
	add("/api/ai/embeddings/:entityType/:sourceId", c.AI, "put:PutEmbedding;delete:DeleteEmbedding")
}
