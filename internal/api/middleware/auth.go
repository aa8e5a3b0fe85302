// Package middleware provides the HTTP middleware that runs before the API
// handlers: request tracing and Bearer token authentication.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/api/shared"
	"github.com/phrazzld/ereuna/internal/platform/logger"
	"github.com/phrazzld/ereuna/internal/service/auth"
)

// AuthMiddleware authenticates requests with access tokens.
type AuthMiddleware struct {
	jwtService auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Authenticate validates the Bearer token in the Authorization header and
// puts the token's session ID into the request context. The context logger
// gains a session_id attribute.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), strings.TrimSpace(token))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrWrongTokenType),
				errors.Is(err, auth.ErrTokenNotYetValid):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid token", err,
					shared.WithElevatedLogLevel())
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		ctx := shared.WithSessionID(r.Context(), claims.SessionID)
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("session_id", claims.SessionID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID returns the session ID set by Authenticate.
func GetSessionID(r *http.Request) (uuid.UUID, bool) {
	return shared.SessionIDFromContext(r.Context())
}
