// Package handlers implements the gateway's HTTP surface: the MCP
// endpoint, the four A2A endpoints, health, and the gateway card — each
// built on the C1-C6 components and the target executors. The /metrics
// handler comes from internal/metrics.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ocx/gateway/internal/gatewayerr"
	"github.com/ocx/gateway/internal/logging"
	"github.com/ocx/gateway/internal/metrics"
	"github.com/ocx/gateway/internal/queueengine"
	"github.com/ocx/gateway/internal/targets"
	"github.com/ocx/gateway/internal/targets/a2aclient"
	"github.com/ocx/gateway/internal/targets/mcpconn"
)

// Deps bundles every component a handler needs, passed in from
// cmd/gateway/main.go's wiring step.
type Deps struct {
	Engine       *queueengine.Engine
	Registry     *targets.Registry
	MCPPool      *mcpconn.Pool
	A2A          *a2aclient.Client
	Logger       *logging.Logger
	Metrics      *metrics.Registry
	HideNotFound bool
	BodyCapBytes int64
}

// methodGroup dots the first two path components of an MCP method:
// "tools/call" -> "tools.call"; "ping" -> "ping".
func methodGroup(method string) string {
	parts := strings.SplitN(method, "/", 3)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// decodeJSONBody decodes r's body into dst, capping it at maxBodyBytes
// first (§5's memory-bound invariant: num_targets * (max_queue+1) *
// max_body). A decode failure and a cap overflow both surface as
// BAD_REQUEST; http.MaxBytesReader reports overflow as a *http.MaxBytesError
// from Decode.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, maxBodyBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return gatewayerr.BadRequest(fmt.Sprintf("request body exceeds the %d byte cap", maxBodyBytes))
		}
		return gatewayerr.BadRequest("malformed request body: " + err.Error())
	}
	return nil
}

// setTimingHeaders attaches the queue timing headers required on every
// upstream-derived response, 2xx or 4xx alike (§4.7.4).
func setTimingHeaders(w http.ResponseWriter, out queueengine.Outcome) {
	w.Header().Set("X-Queue-Wait-Ms", strconv.FormatInt(out.QueueWaitMs, 10))
	w.Header().Set("X-Upstream-Latency-Ms", strconv.FormatInt(out.UpstreamLatencyMs, 10))
}

// writeResult writes a successful proxy outcome, attaching the queue
// timing headers required on every upstream-derived response (§4.7.4).
func writeResult(w http.ResponseWriter, result any, out queueengine.Outcome) {
	setTimingHeaders(w, out)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
}
