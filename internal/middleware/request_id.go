package middleware

import (
	"net/http"

	"github.com/ocx/gateway/internal/requestid"
)

// RequestIDMiddleware assigns a fresh request id (C2) to every inbound
// request and attaches it to the request context before any other
// middleware or handler runs.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestid.Generate()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
