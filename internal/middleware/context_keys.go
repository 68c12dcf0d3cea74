package middleware

import (
	"context"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
)

// contextKey is a private key type for request-context values.
// Using a custom type prevents collisions.
type contextKey string

const (
	userIDKey    = contextKey("userID")
	userRoleKey  = contextKey("userRole")
	loggerCtxKey = contextKey("logger")
)

// GetActorFromCtx retrieves the authenticated actor (user ID plus role) from
// the standard context. Services use this for permission checks.
func GetActorFromCtx(ctx context.Context) (domain.Actor, bool) {
	userIDVal := ctx.Value(userIDKey)
	roleVal := ctx.Value(userRoleKey)
	if userIDVal == nil || roleVal == nil {
		return domain.Actor{}, false
	}

	userID, okID := userIDVal.(string)
	role, okRole := roleVal.(domain.Role)
	if !okID || !okRole {
		return domain.Actor{}, false
	}

	return domain.Actor{UserID: userID, Role: role}, true
}

// WithActor returns a context carrying the actor's user ID and role. Used by
// the auth middleware and by tests that exercise service permission checks.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	ctx = context.WithValue(ctx, userIDKey, actor.UserID)
	return context.WithValue(ctx, userRoleKey, actor.Role)
}
