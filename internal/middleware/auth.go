// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"eventcraft/internal/models"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// UserKey is the context key for the authenticated user.
	UserKey contextKey = "user"

	// userSinkKey carries a *string that WithUser fills with the user ID
	// so Logger can report it.
	userSinkKey contextKey = "user_sink"

	// APIKeyHeader is accepted as an alternative to a bearer token.
	APIKeyHeader = "X-API-Key"
)

// KeyResolver maps a raw API key to its owner. It returns nil for
// unknown or revoked keys.
type KeyResolver interface {
	Resolve(ctx context.Context, raw string) (*models.User, error)
}

// RequireAPIKey authenticates the request by its API key and stores the
// owner in the request context. Requests without a valid key get 401.
func RequireAPIKey(resolver KeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := apiKeyFromRequest(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="eventcraft"`)
				writeError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			user, err := resolver.Resolve(r.Context(), raw)
			if err != nil {
				slog.Error("resolve api key", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if user == nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="eventcraft", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin returns 403 if the authenticated user is not an admin.
// Must be applied after RequireAPIKey.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromCtx(r.Context())
		if user == nil || !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// apiKeyFromRequest reads "Authorization: Bearer <key>" or X-API-Key.
func apiKeyFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, u *models.User) context.Context {
	if sink, ok := ctx.Value(userSinkKey).(*string); ok && u != nil {
		*sink = u.ID.String()
	}
	return context.WithValue(ctx, UserKey, u)
}

func withUserSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, userSinkKey, sink)
}

// UserFromCtx extracts the authenticated user from the request context.
// Returns nil if the request is not authenticated.
func UserFromCtx(ctx context.Context) *models.User {
	u, _ := ctx.Value(UserKey).(*models.User)
	return u
}
