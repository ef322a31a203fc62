package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-metrics-pipeline/internal/api/docs" // registers the swagger spec
	"go-metrics-pipeline/internal/api/handler"
	"go-metrics-pipeline/pkg/router"
)

// RegisterRoutes wires the metric run endpoints, the Swagger UI and the
// Prometheus endpoint into r. gatherer may be nil to skip /metrics.
func RegisterRoutes(r *router.Router, h *handler.Handler, gatherer prometheus.Gatherer) {
	r.POST("/api/v1/metrics", h.CreateRun)
	r.GET("/api/v1/metrics", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/metrics/*/errors", h.GetRunErrors)
	r.GET("/api/v1/metrics/*", h.GetRun)

	r.GET("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	if gatherer != nil {
		r.GET("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}
}
