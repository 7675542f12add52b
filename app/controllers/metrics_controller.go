package controllers

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricsHandler = promhttp.Handler()

// MetricsController exposes the default Prometheus registry.
type MetricsController struct {
	web.Controller
}

// Metrics returns Prometheus text format metrics.
func (c *MetricsController) Metrics() {
	metricsHandler.ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
