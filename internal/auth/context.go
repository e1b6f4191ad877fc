package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRoles
)

// WithIdentity stores the verified caller identity in the request context.
func WithIdentity(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRoles, roles)
	return ctx
}

// UserID returns the verified caller's user ID from context.
func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

// Roles returns the caller's role names as embedded in the verified token.
// Authorization decisions should not rely on these; Authorize re-fetches
// live roles from the directory.
func Roles(ctx context.Context) ([]string, error) {
	v := ctx.Value(ctxRoles)
	if r, ok := v.([]string); ok {
		return r, nil
	}
	return nil, errors.New("roles not in context")
}
