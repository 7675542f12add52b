package main

import (
	"fmt"
	"log"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/app/bootstrap"
	"github.com/aihub/jobboard-ai/app/controllers"
	"github.com/aihub/jobboard-ai/app/middleware"
	"github.com/aihub/jobboard-ai/app/router"
	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	cfg := app.Config

	web.BConfig.AppName = cfg.Server.AppName
	web.BConfig.Listen.HTTPPort = cfg.Server.Port
	web.BConfig.CopyRequestBody = true
	web.BConfig.WebConfig.AutoRender = false
	// panics are rendered by the error handler middleware below
	web.BConfig.RecoverPanic = false
	if cfg.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}

	filters := middleware.NewMiddlewareManager(logger.GetLogger(), cfg.Server.CORSOrigins)
	if err := filters.Apply(web.BeeApp.Handlers); err != nil {
		logger.Fatal("Failed to install HTTP filters", zap.Error(err))
	}

	metricsPath := ""
	if cfg.Prometheus.Enabled {
		metricsPath = cfg.Prometheus.Path
	}
	if err := router.Init(controllers.NewControllerFactory(app.Container), metricsPath); err != nil {
		logger.Fatal("Failed to initialize routes", zap.Error(err))
	}

	var errorHandler *errors.ErrorHandler
	if err := app.Container.Invoke(func(h *errors.ErrorHandler) { errorHandler = h }); err != nil {
		logger.Fatal("Failed to resolve error handler", zap.Error(err))
	}

	logger.Info("Starting jobboard AI service",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env))
	web.RunWithMiddleWares(fmt.Sprintf(":%d", cfg.Server.Port), errorHandler.Middleware)
}
