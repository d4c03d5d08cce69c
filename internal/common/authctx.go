package common

import "context"

type ctxKey string

const (
	userIDKey   ctxKey = "auth/user-id"
	userRoleKey ctxKey = "auth/user-role"
)

// WithUser stores the authenticated user identifier and role on the context.
func WithUser(ctx context.Context, id int64, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id)
	return context.WithValue(ctx, userRoleKey, role)
}

// UserID extracts the authenticated user identifier from the context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// UserRole extracts the authenticated user's role from the context.
func UserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(userRoleKey).(string)
	return role, ok
}
