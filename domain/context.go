package domain

import "context"

type contextKey string

const (
	userContextKey  contextKey = "auth_user"
	tokenContextKey contextKey = "auth_token"
)

// WithUser returns a context carrying the authenticated user and the raw
// bearer token that authenticated them.
func WithUser(ctx context.Context, user *User, token string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, token)
}

// UserFromContext retrieves the authenticated user.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok && user != nil
}

// TokenFromContext retrieves the raw bearer token of the current request.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok && token != ""
}
