package http

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/dispute-service/internal/api/http/handlers"
	"github.com/spec-kit/dispute-service/internal/auth"
	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Disputes       *handlers.DisputesHandler
	AdminDisputes  *handlers.AdminDisputesHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(
			cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)
	authGroup.Post("/arbiters/login", cfg.Users.LoginArbiter)

	disputes := app.Group("/disputes", cfg.AuthMiddleware.Handle, auth.RequireUser())
	disputes.Get("/eligibility", cfg.Disputes.CheckEligibility)
	disputes.Post("", cfg.Disputes.FileDispute)
	disputes.Get("", cfg.Disputes.ListDisputes)
	disputes.Get("/:id", cfg.Disputes.GetDispute)
	disputes.Post("/:id/accept", cfg.Disputes.AcceptDispute)
	disputes.Post("/:id/cancel", cfg.Disputes.CancelDispute)
	disputes.Post("/:id/escalate", cfg.Disputes.Escalate)
	disputes.Post("/:id/offer", cfg.Disputes.OfferPartialRefund)
	disputes.Post("/:id/offer/respond", cfg.Disputes.RespondToPartialRefund)

	admin := app.Group("/admin/disputes", cfg.AuthMiddleware.Handle,
		auth.RequireArbiterRole(domain.ArbiterRoleArbiter, domain.ArbiterRoleAdmin))
	admin.Get("", cfg.AdminDisputes.ListDisputes)
	admin.Get("/:id", cfg.AdminDisputes.GetDispute)
	admin.Post("/:id/resolve", cfg.AdminDisputes.ResolveDispute)
}
