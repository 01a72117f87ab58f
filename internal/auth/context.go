package auth

import "context"

// Identity is the verified (user id, email) pair downstream handlers trust
// as-is.
type Identity struct {
	ID      string
	Email   string
	IsAdmin bool
}

type ctxKey struct{}

var ctxKeyIdentity = ctxKey{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return v, ok
}
