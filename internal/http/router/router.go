package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/handler"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/middleware"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/repository"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/security"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/service"
)

type Dependencies struct {
	FeatureFlagHandler *handler.FeatureFlagHandler
	EarlyAccessHandler *handler.EarlyAccessHandler
	FeatureFlags       service.FeatureFlagService
	EarlyAccess        service.EarlyAccessService
	Users              repository.UserRepository
	JWTManager         *security.JWTManager
	AdminWriteLimiter  *middleware.RateLimiter
	Logger             *slog.Logger
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.OptionalAuth(dep.JWTManager))
	r.Use(middleware.RequestLogger(dep.Logger))

	r.Get("/health/live", handler.Live)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/features", dep.FeatureFlagHandler.EvaluateAll)
		r.Get("/features/{key}", dep.FeatureFlagHandler.EvaluateOne)
		r.Get("/early-access", dep.EarlyAccessHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireEarlyAccess(dep.EarlyAccess))
			r.With(middleware.RequireFeature(dep.FeatureFlags, domain.FlagAgents)).
				Get("/agents/status", dep.FeatureFlagHandler.FeatureStatus(domain.FlagAgents))
			r.With(middleware.RequireFeature(dep.FeatureFlags, domain.FlagAffiliates)).
				Get("/affiliates/status", dep.FeatureFlagHandler.FeatureStatus(domain.FlagAffiliates))
		})

		r.Route("/admin/feature-flags", func(r chi.Router) {
			r.Use(middleware.RequireAuth(dep.JWTManager))
			r.Use(middleware.RequireAdmin(dep.Users))
			r.Get("/", dep.FeatureFlagHandler.ListTargeting)
			r.Get("/{key}/targeting", dep.FeatureFlagHandler.GetTargeting)
			put := http.Handler(http.HandlerFunc(dep.FeatureFlagHandler.UpdateTargeting))
			if dep.AdminWriteLimiter != nil {
				put = dep.AdminWriteLimiter.Middleware()(put)
			}
			r.Method(http.MethodPut, "/{key}/targeting", put)
		})
	})
	return r
}
