package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ocx/gateway/internal/circuitbreaker"
	"github.com/ocx/gateway/internal/config"
	"github.com/ocx/gateway/internal/gatewayerr"
	"github.com/ocx/gateway/internal/middleware"
	"github.com/ocx/gateway/internal/queueengine"
	"github.com/ocx/gateway/internal/security"
	"github.com/ocx/gateway/internal/targets/a2aclient"
)

// a2aRequest is the body shape for every A2A endpoint (§4.7.2).
type a2aRequest struct {
	Agent  string `json:"agent"`
	Params any    `json:"params,omitempty"`
}

// a2aKindByMethod maps each A2A JSON-RPC method onto the permission kind
// used to build "a2a:<kind>:<agent>" (§4.7.2's table).
var a2aKindByMethod = map[string]string{
	"message/send": "message",
	"tasks/send":   "task",
	"tasks/get":    "task",
	"tasks/cancel": "task",
	"tasks/list":   "task",
}

// A2AMessage returns the handler for one of the four routed A2A
// endpoints, each bound to its own fixed JSON-RPC method.
func A2AMessage(deps *Deps, method string) http.HandlerFunc {
	kind := a2aKindByMethod[method]

	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFrom(r.Context())

		var body a2aRequest
		if err := decodeJSONBody(w, r, &body, deps.BodyCapBytes); err != nil {
			gatewayerr.WriteHTTP(w, requestID, err)
			return
		}
		if body.Agent == "" {
			gatewayerr.WriteHTTP(w, requestID, gatewayerr.BadRequest("agent is required"))
			return
		}

		info := middleware.AuthInfoFrom(r.Context())
		required := "a2a:" + kind + ":" + body.Agent
		if !security.HasPermission(info.Permissions, required) {
			gatewayerr.WriteHTTP(w, requestID, gatewayerr.Forbidden("missing permission "+required))
			return
		}

		target, ok := deps.Registry.Get(body.Agent)
		if !ok || target.Type != config.TargetTypeAgent || !target.Enabled {
			writeMissingTarget(w, requestID, deps)
			return
		}

		out, err := deps.Engine.Enqueue(body.Agent, body, func(ctx context.Context, payload any) (any, error) {
			req := payload.(a2aRequest)
			return deps.A2A.Call(ctx, target, method, req.Params)
		})
		if err != nil {
			writeA2AError(w, requestID, err, out)
			return
		}

		writeResult(w, out.Result, out)
	}
}

// writeA2AError writes the HTTP status/body this err maps to (§7). out
// carries the queue's timing for this item; it is zero for rejections
// made by the queue itself (queue-full, timeout, shutdown) and populated
// for any error the executor returned. The timing headers are set only
// for a real upstream outcome (transport or JSON-RPC error), as §4.7.4
// requires even on a 4xx response; a breaker-open rejection omits them.
func writeA2AError(w http.ResponseWriter, requestID string, err error, out queueengine.Outcome) {
	switch {
	case errors.Is(err, queueengine.ErrQueueFull):
		gatewayerr.WriteHTTP(w, requestID, gatewayerr.TooManyRequests("target queue is full"))
		return
	case errors.Is(err, queueengine.ErrTimeout):
		gatewayerr.WriteHTTP(w, requestID, gatewayerr.GatewayTimeout("upstream did not respond in time"))
		return
	case errors.Is(err, queueengine.ErrShutdown):
		gatewayerr.WriteHTTP(w, requestID, gatewayerr.Internal(err))
		return
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		gatewayerr.WriteHTTP(w, requestID, gatewayerr.BadGateway("agent is failing repeatedly, temporarily refusing calls"))
		return
	}

	var transportErr *a2aclient.TransportError
	if errors.As(err, &transportErr) {
		setTimingHeaders(w, out)
		gatewayerr.WriteHTTP(w, requestID, gatewayerr.BadGateway("agent transport failure: "+transportErr.Error()))
		return
	}

	var upstreamErr *a2aclient.UpstreamError
	if errors.As(err, &upstreamErr) {
		setTimingHeaders(w, out)
		switch upstreamErr.Code {
		case -32601:
			gatewayerr.WriteHTTP(w, requestID, gatewayerr.BadRequest(upstreamErr.Message))
		case -32602:
			gatewayerr.WriteHTTP(w, requestID, gatewayerr.NotFound(upstreamErr.Message))
		case -32600, -32603:
			gatewayerr.WriteHTTP(w, requestID, gatewayerr.BadGateway(upstreamErr.Message))
		default:
			gatewayerr.WriteHTTP(w, requestID, gatewayerr.BadRequest(upstreamErr.Message))
		}
		return
	}

	gatewayerr.WriteHTTP(w, requestID, gatewayerr.Internal(err))
}
