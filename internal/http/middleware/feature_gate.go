package middleware

import (
	"net/http"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/response"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/service"
)

// RequireFeature hides a route group behind a flag. Disabled features answer
// 404 so their existence is not advertised.
func RequireFeature(flags service.FeatureFlagService, flag domain.FlagKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !flags.IsFeatureEnabledForUser(r.Context(), string(flag), UserIDFromContext(r.Context())) {
				response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "not found", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireEarlyAccess(earlyAccess service.EarlyAccessService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !earlyAccess.CanAccess(r.Context(), UserIDFromContext(r.Context())) {
				response.Error(w, r, http.StatusForbidden, "EARLY_ACCESS", "the platform is in early access", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
