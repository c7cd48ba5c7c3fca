package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/http/response"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/repository"
	"github.com/hhwjsw711/agentic-jumpstart-sub001/internal/security"
)

type claimsContextKey struct{}

func ContextWithClaims(ctx context.Context, claims *security.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*security.Claims)
	return claims, ok && claims != nil
}

// UserIDFromContext returns 0 for anonymous requests.
func UserIDFromContext(ctx context.Context) uint {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return 0
	}
	id, err := claims.UserID()
	if err != nil {
		return 0
	}
	return id
}

// OptionalAuth attaches claims when a valid access token is present and lets
// everything else through as anonymous.
func OptionalAuth(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.AccessTokenFromRequest(r)
			if raw == "" || jwtMgr == nil {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				slog.DebugContext(r.Context(), "ignoring invalid access token", "path", r.URL.Path, "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func RequireAuth(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.AccessTokenFromRequest(r)
			if raw == "" || jwtMgr == nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "INVALID_OR_EXPIRED_TOKEN", "invalid access token", nil)
				return
			}
			if _, err := claims.UserID(); err != nil {
				response.Error(w, r, http.StatusUnauthorized, "INVALID_OR_EXPIRED_TOKEN", "invalid access token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin must run after RequireAuth. The admin bit is read from the user
// store so a demoted admin loses access before their token expires.
func RequireAdmin(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if userID == 0 {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
				return
			}
			u, err := users.FindByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "admin access required", nil)
					return
				}
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load user", nil)
				return
			}
			if !u.IsAdmin {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "admin access required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
