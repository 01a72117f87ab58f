package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/motivlab/platform-backend/internal/rbac"
)

// UserResolver loads the account for a verified token subject. The users
// store satisfies this.
type UserResolver interface {
	Resolve(ctx context.Context, email string) (Identity, error)
}

// Middleware authenticates the session cookie (Authorization: Bearer is
// accepted as a fallback for API clients), resolves the account and attaches
// identity + rbac role to the request context.
func Middleware(svc *Service, cookieName string, resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			} else if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
			if token == "" {
				http.Error(w, "not authenticated", http.StatusUnauthorized)
				return
			}
			email, err := svc.ParseToken(token)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			id, err := resolver.Resolve(r.Context(), email)
			if err != nil {
				http.Error(w, "user not found", http.StatusUnauthorized)
				return
			}
			role := rbac.RoleParticipant
			if id.IsAdmin {
				role = rbac.RoleAdmin
			}
			ctx := WithIdentity(r.Context(), id)
			ctx = rbac.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
