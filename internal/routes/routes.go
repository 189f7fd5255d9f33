package routes

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/freightdesk/sentinel/internal/auth"
	"github.com/freightdesk/sentinel/internal/handlers"
	"github.com/freightdesk/sentinel/internal/middleware"
	pkghttp "github.com/freightdesk/sentinel/pkg/http"
	"github.com/go-chi/chi/v5"
)

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies carries everything the router wires together
type Dependencies struct {
	AuthHandler          *handlers.AuthHandler
	AnomalyHandler       *handlers.AnomalyHandler
	Gate                 middleware.LoginEvaluator
	TokenManager         *auth.TokenManager
	UserRepo             auth.UserRepository
	IPConfig             *pkghttp.IPConfig
	LoginRateLimitPerMin int
	Health               HealthChecker
	Metrics              http.Handler
	Logger               *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	// Login: coarse per-address limiter, then the anomaly gate, then authentication
	router.With(
		middleware.RateLimitByIP(deps.LoginRateLimitPerMin, deps.IPConfig),
		middleware.AnomalyGate(deps.Gate, deps.IPConfig, deps.Logger),
	).Post("/auth/login", deps.AuthHandler.Login)

	router.Get("/health", healthHandler(deps.Health))
	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Anomaly review, admin only
	router.Route("/admin/anomalies", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(deps.TokenManager))
		r.Use(auth.RequireRole(deps.UserRepo, "admin"))

		r.Get("/", deps.AnomalyHandler.ListAnomalies)
		r.Get("/{id}", deps.AnomalyHandler.GetAnomaly)
		r.Patch("/{id}", deps.AnomalyHandler.ReviewAnomaly)
	})
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.HealthCheck(r.Context()); err != nil {
				pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
				return
			}
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}
