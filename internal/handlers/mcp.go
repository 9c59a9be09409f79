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
	"github.com/ocx/gateway/internal/targets/mcpconn"
)

// mcpMessageRequest is the body shape for POST /mcp/v1/message.
type mcpMessageRequest struct {
	Connector string `json:"connector"`
	Method    string `json:"method"`
	Params    any    `json:"params,omitempty"`
	ID        any    `json:"id,omitempty"`
}

// MCPMessage handles POST /mcp/v1/message (§4.7.1).
func MCPMessage(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.RequestIDFrom(r.Context())

		var body mcpMessageRequest
		if err := decodeJSONBody(w, r, &body, deps.BodyCapBytes); err != nil {
			gatewayerr.WriteHTTP(w, requestID, err)
			return
		}
		if body.Connector == "" || body.Method == "" {
			gatewayerr.WriteHTTP(w, requestID, gatewayerr.BadRequest("connector and method are required"))
			return
		}

		info := middleware.AuthInfoFrom(r.Context())
		required := "mcp:" + methodGroup(body.Method) + ":" + body.Connector
		if !security.HasPermission(info.Permissions, required) {
			gatewayerr.WriteHTTP(w, requestID, gatewayerr.Forbidden("missing permission "+required))
			return
		}

		target, ok := deps.Registry.Get(body.Connector)
		if !ok || target.Type != config.TargetTypeConnector || !target.Enabled {
			writeMissingTarget(w, requestID, deps)
			return
		}

		out, err := deps.Engine.Enqueue(body.Connector, body, func(ctx context.Context, payload any) (any, error) {
			req := payload.(mcpMessageRequest)
			return deps.MCPPool.Call(ctx, target, req.Method, req.Params)
		})
		if err != nil {
			writeMCPError(w, requestID, err, out)
			return
		}

		writeResult(w, out.Result, out)
	}
}

// writeMissingTarget applies the hide-not-found policy (§4.7.1 step 3).
func writeMissingTarget(w http.ResponseWriter, requestID string, deps *Deps) {
	if deps.HideNotFound {
		gatewayerr.WriteHTTP(w, requestID, gatewayerr.Forbidden("target not accessible"))
		return
	}
	gatewayerr.WriteHTTP(w, requestID, gatewayerr.NotFound("target not found"))
}

// writeMCPError writes the HTTP status/body this err maps to (§7). out
// carries the queue's timing for this item; it is zero for rejections
// made by the queue itself (queue-full, timeout, shutdown) and populated
// for any error the executor returned. The timing headers are set only
// for a real upstream outcome (transport or JSON-RPC error), as §4.7.4
// requires even on a 4xx response; a breaker-open rejection omits them.
func writeMCPError(w http.ResponseWriter, requestID string, err error, out queueengine.Outcome) {
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
		gatewayerr.WriteHTTP(w, requestID, gatewayerr.BadGateway("connector is failing repeatedly, temporarily refusing calls"))
		return
	}

	var transportErr *mcpconn.TransportError
	if errors.As(err, &transportErr) {
		setTimingHeaders(w, out)
		gatewayerr.WriteHTTP(w, requestID, gatewayerr.BadGateway("connector transport failure: "+transportErr.Error()))
		return
	}

	var upstreamErr *mcpconn.UpstreamError
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
