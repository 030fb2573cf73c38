package middleware

import (
	"context"
	"net/http"
	"strings"

	"vendhub-bot/internal/model"
	"vendhub-bot/internal/service"
	"vendhub-bot/pkg/apierror"
)

// SessionKey is the key for storing the admin session in request context.
const SessionKey contextKey = "admin_session"

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	TokenService *service.TokenService
	LoginKey     string
}

// NewAuthMiddleware creates an authentication middleware with injected
// dependencies. Sessions come from X-Token; the dashboard login key is
// accepted directly via X-Login-Key so the login endpoint can issue a
// session in the first place.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Login endpoint authenticates itself with the login key
			if r.URL.Path == "/api/v1/auth/login" && r.Method == http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-Token")
			if token == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					token = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if token != "" && cfg.TokenService != nil {
				session, err := cfg.TokenService.ValidateToken(r.Context(), token)
				if err != nil {
					writeError(w, apierror.Unauthorized("Invalid or expired token"))
					return
				}

				ctx := context.WithValue(r.Context(), SessionKey, session)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// Fall back to the raw login key for scripted access
			loginKey := r.Header.Get("X-Login-Key")
			if loginKey == "" || cfg.LoginKey == "" || loginKey != cfg.LoginKey {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-Token or X-Login-Key header."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetSessionFromContext retrieves the admin session from request context.
func GetSessionFromContext(ctx context.Context) *model.AdminSession {
	if session, ok := ctx.Value(SessionKey).(*model.AdminSession); ok {
		return session
	}
	return nil
}
