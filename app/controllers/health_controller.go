package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/aihub/jobboard-ai/internal/database"
	"github.com/aihub/jobboard-ai/internal/middleware"
)

type DatabaseHealth interface {
	HealthCheck(ctx context.Context) error
	GetHealthStatus() database.HealthCheckResult
}

// ReadinessProbe reports whether a dependency can serve requests.
type ReadinessProbe interface {
	Ready() bool
}

// ComponentHealth probes the optional backing services.
type ComponentHealth interface {
	CheckHealth(ctx context.Context) map[string]middleware.HealthStatus
}

// HealthController reports database and AI provider health.
type HealthController struct {
	BaseController

	Database DatabaseHealth
	Embedder   ReadinessProbe
	Components ComponentHealth
}

func (c *HealthController) Health() {
	ctx, cancel := context.WithTimeout(c.Ctx.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	body := map[string]interface{}{}

	if c.Database != nil {
		if err := c.Database.HealthCheck(ctx); err != nil {
			status = "unavailable"
			code = http.StatusServiceUnavailable
			body["database_error"] = err.Error()
		}
		body["database"] = c.Database.GetHealthStatus()
	}
	if c.Embedder != nil {
		ready := c.Embedder.Ready()
		body["embeddings_ready"] = ready
		if !ready && status == "ok" {
			status = "degraded"
		}
	}
	if c.Components != nil {
		components := c.Components.CheckHealth(ctx)
		for _, h := range components {
			if h.Status != "healthy" && status == "ok" {
				status = "degraded"
			}
		}
		body["components"] = components
	}
	body["status"] = status

	c.JSON(code, map[string]interface{}{
		"success": code == http.StatusOK,
		"data":    body,
	})
}
