package ctxkeys

import (
	"context"

	"github.com/nzoschke/beatmarket/internal/service"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	SessionKey contextKey = "session"
)

// Session returns the authenticated session, or nil for anonymous requests.
func Session(ctx context.Context) *service.SessionClaims {
	claims, _ := ctx.Value(SessionKey).(*service.SessionClaims)
	return claims
}

func WithSession(ctx context.Context, claims *service.SessionClaims) context.Context {
	return context.WithValue(ctx, SessionKey, claims)
}
