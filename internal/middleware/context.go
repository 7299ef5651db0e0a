package middleware

import "context"

type contextKey int

const identityKey contextKey = iota

// AuthContext carries the caller identity resolved by Authenticate.
type AuthContext struct {
	UserSub   string
	UserEmail string
	// APIKeyPrefix is set only when authentication used an API key, for
	// logging; empty for a bearer-token JWT.
	APIKeyPrefix string
}

func withAuth(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, identityKey, auth)
}

// Auth returns the caller identity resolved by Authenticate.
func Auth(ctx context.Context) (AuthContext, bool) {
	a, ok := ctx.Value(identityKey).(AuthContext)
	return a, ok
}
