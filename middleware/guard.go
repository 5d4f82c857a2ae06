package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/crestbank/authcore"
)

type userContextKey struct{}

// UserFromContext returns the account summary injected by [Guard].
func UserFromContext(ctx context.Context) (*authcore.UserSummary, bool) {
	user, ok := ctx.Value(userContextKey{}).(*authcore.UserSummary)
	return user, ok
}

// Guard authenticates the bearer access token and injects the resolved
// account into the request context. It also tags the context with the
// client IP so engine audit events carry it.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authcore.WithClientIP(r.Context(), clientIP(r))
			user, err := engine.Authenticate(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx = context.WithValue(ctx, userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose account role is not
// in the allow-list. It must run inside [Guard].
func RequireRole(roles ...authcore.Role) func(http.Handler) http.Handler {
	allowed := make(map[authcore.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
