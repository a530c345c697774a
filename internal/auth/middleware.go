/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bq-data-agent/internal/logging"
)

type contextKey string

const (
	tokenIDContextKey contextKey = "token_id"

	// HealthCheckPath bypasses authentication
	HealthCheckPath = "/health"
)

// TokenIDFromContext returns the ID of the API token that authenticated
// the request, or ""
func TokenIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(tokenIDContextKey).(string); ok {
		return id
	}
	return ""
}

// BearerToken extracts the token from an "Authorization: Bearer" style
// header value
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Middleware validates API tokens on every request except the health check
func Middleware(store *TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == HealthCheckPath {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(header)
			if !ok {
				http.Error(w, "Invalid Authorization header format. Expected: Bearer <token>", http.StatusUnauthorized)
				return
			}

			id, err := store.Authenticate(token)
			if err != nil {
				// Keep the reason out of the response
				logging.Warn("http_auth_rejected", "path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
				if errors.Is(err, ErrTokenExpired) {
					http.Error(w, "Invalid token", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Invalid or unknown token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tokenIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
