package authz

import "context"

type principalKey struct{}

// ContextWithUser stores the principal on ctx.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, principalKey{}, user)
}

// UserFromContext returns the principal stored on ctx, or nil.
func UserFromContext(ctx context.Context) *User {
	if ctx == nil {
		return nil
	}
	user, _ := ctx.Value(principalKey{}).(*User)
	return user
}
