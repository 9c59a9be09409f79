package middleware

import (
	"net/http"
	"time"

	"github.com/ocx/gateway/internal/logging"
)

// statusRecorder captures the status code written by the wrapped handler,
// since http.ResponseWriter does not expose it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// AccessLogMiddleware emits one http_request event per request (§6.2),
// in the teacher's request/duration logging shape, extended with the
// request id and the queue/upstream timing headers a proxied call sets.
func AccessLogMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			fields := []any{
				"request_id", RequestIDFrom(r.Context()),
				"method", r.Method,
				"url", r.URL.Path,
				"status", rec.status,
				"latency_ms", time.Since(start).Milliseconds(),
			}
			if info := AuthInfoFrom(r.Context()); info != nil {
				fields = append(fields, "client_id", info.ClientID)
			}
			if queueWait := rec.Header().Get("X-Queue-Wait-Ms"); queueWait != "" {
				fields = append(fields, "queue_wait_ms", queueWait)
			}
			if upstreamLatency := rec.Header().Get("X-Upstream-Latency-Ms"); upstreamLatency != "" {
				fields = append(fields, "upstream_latency_ms", upstreamLatency)
			}

			logger.Info("http_request", fields...)
		})
	}
}
