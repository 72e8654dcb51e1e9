package authz

import (
	"net/http"
)

// RequireScope returns a middleware that rejects callers whose token lacks scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(r, scope) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireScopeHandler applies the scope middleware inline when registering routes.
func RequireScopeHandler(scope string, next http.HandlerFunc) http.Handler {
	return RequireScope(scope)(next)
}
