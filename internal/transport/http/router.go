// Package httptransport assembles the registry's HTTP surface. Handlers
// delegate to domain services; this package only decides which middleware
// guards which routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"phonelease/internal/admin"
	"phonelease/internal/payments"
	"phonelease/internal/platform/metrics"
	pricinghandler "phonelease/internal/pricing/handler"
	leasehandler "phonelease/internal/registration/handler"
	ratelimit "phonelease/internal/ratelimit/middleware"
	resolutionhandler "phonelease/internal/resolution/handler"
	"phonelease/pkg/platform/httputil"
	"phonelease/pkg/platform/middleware/auth"
	"phonelease/pkg/platform/middleware/request"
	"phonelease/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps is everything the router mounts.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tokens  auth.TokenValidator
	Owner   admin.Administrable
	// Limiter throttles authenticated calls per caller; nil disables it.
	Limiter *ratelimit.Limiter

	Admin    *admin.Handler
	Pricing  *pricinghandler.Handler
	Leases   *leasehandler.Handler
	Resolver *resolutionhandler.Handler
	Wallet   *payments.Handler

	Health map[string]HealthCheck
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/health", healthHandler(d.Health, d.Logger))

	r.Route("/v1", func(r chi.Router) {
		d.Pricing.Register(r)
		d.Leases.Register(r)
		d.Resolver.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireIdentity(d.Tokens, d.Logger))
			if d.Limiter != nil {
				r.Use(d.Limiter.Limit("registry"))
			}
			d.Leases.RegisterAuthenticated(r)
			d.Resolver.RegisterAuthenticated(r)
			d.Wallet.RegisterAuthenticated(r)

			r.Route("/admin", func(r chi.Router) {
				r.Use(admin.RequireOwner(d.Owner, d.Logger))
				d.Admin.Register(r)
				d.Pricing.RegisterAdmin(r)
				d.Leases.RegisterAdmin(r)
				d.Resolver.RegisterAdmin(r)
				d.Wallet.RegisterAdmin(r)
			})
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "health check failed", "check", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
