package middleware

import (
	"net/http"

	"github.com/ocx/gateway/internal/gatewayerr"
	"github.com/ocx/gateway/internal/security"
)

// AuthMiddleware runs every request through gate, attaching the resulting
// AuthInfo to the request context. Public paths (§ health) bypass the gate
// entirely. Requests that fail authentication are answered here and never
// reach the wrapped handler.
func AuthMiddleware(gate *security.AuthGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate.IsPublic(r.URL.Path) {
				next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), security.PublicAuthInfo())))
				return
			}

			info, err := gate.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				gatewayerr.WriteHTTP(w, RequestIDFrom(r.Context()), err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), info)))
		})
	}
}
