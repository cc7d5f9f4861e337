package middleware

import (
	"net/http"

	"github.com/coursecart/fulfillment/internal/auth"
)

// RequireRole returns middleware that admits only principals holding role.
// Must be applied after Auth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())
			if principal == nil {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
				return
			}
			if !principal.HasRole(role) {
				writeError(w, http.StatusForbidden, codeForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
