package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Complaints     *handlers.ComplaintsHandler
	Stages         *handlers.StagesHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}
	app.Get("/stages", cfg.Stages.ListStages)

	complaints := app.Group("/complaints", cfg.AuthMiddleware.Handle)
	complaints.Post("/", cfg.Complaints.CreateComplaint)
	complaints.Get("/", cfg.Complaints.ListComplaints)
	complaints.Get("/stream", cfg.Complaints.Stream)
	complaints.Get("/:id", cfg.Complaints.GetComplaint)
	complaints.Post("/:id/stages/:stage", cfg.Complaints.ApplyStage)
	complaints.Put("/:id/hold", cfg.Complaints.SetHold)
}
