package common

import (
	"context"

	"authserv/internal/models"
)

type contextKey string

const (
	// AuthContextKey carries the validated bearer identity for the duration
	// of a single request. Never cached across requests.
	AuthContextKey contextKey = "auth_context"
)

// AuthContext is the read-only identity a validated bearer token exposes to
// handlers.
type AuthContext struct {
	User  *models.User
	Scope string
	Token *models.Token
}

// WithAuthContext stores the authenticated context on the request context.
func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, auth)
}

// GetAuthContext extracts the authenticated context from the request context.
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	auth, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return auth, ok
}
