// Package middleware provides the HTTP middleware chain: request tracing
// and trust-root authentication.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fablebot/fable-api/internal/api/shared"
	"github.com/fablebot/fable-api/internal/redact"
	"github.com/fablebot/fable-api/internal/service/auth"
)

// unauthorizedBody is the exact rejection body. Every authentication
// failure produces this same response so callers learn nothing about which
// check failed.
const unauthorizedBody = "Unauthorized request"

// AuthMiddleware authenticates requests against a single trust root.
// Each protected endpoint gets its own instance: the webhook verifies
// against the chat platform's root, the worker against the queue's.
type AuthMiddleware struct {
	verifier auth.Verifier
}

// NewAuthMiddleware creates an AuthMiddleware for the given verifier.
func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate validates the Authorization header and adds the verified
// identity to the request context. All failures collapse to one 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.verifier.Verify(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			slog.Debug("rejecting unauthenticated request",
				"trace_id", shared.GetTraceID(r.Context()),
				"path", r.URL.Path,
				"error", redact.Error(err))
			shared.RespondWithText(w, r, http.StatusUnauthorized, unauthorizedBody)
			return
		}

		ctx := context.WithValue(r.Context(), shared.IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity extracts the verified identity from the request context.
// Returns the identity and a boolean indicating if it was found.
func GetIdentity(r *http.Request) (*auth.Identity, bool) {
	identity, ok := r.Context().Value(shared.IdentityContextKey).(*auth.Identity)
	return identity, ok
}
