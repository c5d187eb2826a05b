package middleware

import (
	"context"
	"net/http"
	"strings"

	identity "github.com/shahramvafadar/darwin-identity"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the validated access claims injected by
// [RequireAuth], if any.
func ClaimsFromContext(ctx context.Context) (*identity.AccessClaimsResult, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*identity.AccessClaimsResult)
	return claims, ok
}

// RequireAuth returns middleware that rejects requests without a valid bearer
// access token. Validated claims are available to the wrapped handler through
// [ClaimsFromContext].
func RequireAuth(engine *identity.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(engine, w, r)
			if !ok {
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission is [RequireAuth] plus a permission check for the token's
// subject. Missing permission answers 403; a failed check against the
// permission store answers 500 rather than silently denying.
func RequirePermission(engine *identity.Engine, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(engine, w, r)
			if !ok {
				return
			}

			allowed, err := engine.HasPermission(r.Context(), claims.UserID, key)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(engine *identity.Engine, w http.ResponseWriter, r *http.Request) (*identity.AccessClaimsResult, bool) {
	if engine == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	claims, err := engine.ValidateAccess(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	return claims, true
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
