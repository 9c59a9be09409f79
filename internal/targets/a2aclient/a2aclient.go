// Package a2aclient performs one HTTPS JSON-RPC call per request against
// an A2A agent's URL, context-bound so the queue engine's cancellation
// handle aborts the in-flight call.
package a2aclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ocx/gateway/internal/circuitbreaker"
	"github.com/ocx/gateway/internal/config"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// UpstreamError is the typed form of an A2A JSON-RPC error response.
type UpstreamError struct {
	Code    int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("a2a upstream error %d: %s", e.Code, e.Message)
}

// TransportError marks a failure to reach or read from an agent's HTTPS
// endpoint (dial/TLS failure, connection reset, an unparseable response
// body) as distinct from an upstream JSON-RPC protocol error; §7's
// taxonomy maps it onto 502 BAD_GATEWAY rather than 500.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("a2aclient: %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client performs JSON-RPC calls to A2A agents over HTTPS, grounded on
// internal/webhooks/dispatcher.go's httpClient.Do(req) delivery shape,
// adapted from fire-and-forget webhook delivery to a synchronous
// request/response call bound to the caller's context.
type Client struct {
	httpClient *http.Client
	breakers   *circuitbreaker.Manager
}

// New builds a Client with a conservative dial/TLS timeout; the actual
// per-call deadline comes from the context passed to Call. Each agent
// gets its own circuit breaker so a down agent stops being retried on
// every proxied request.
func New() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 0, // bounded by ctx, not a fixed client-wide timeout
		},
		breakers: circuitbreaker.NewManager(&circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c circuitbreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		}),
	}
}

// Call invokes method against target's URL with params through target's
// circuit breaker, returning the decoded result or an *UpstreamError for
// a JSON-RPC error response.
func (c *Client) Call(ctx context.Context, target config.Target, method string, params any) (any, error) {
	cb := c.breakers.Get(target.ID)
	return cb.ExecuteContext(ctx, func(ctx context.Context) (any, error) {
		return c.callUpstream(ctx, target, method, params)
	})
}

func (c *Client) callUpstream(ctx context.Context, target config.Target, method string, params any) (any, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      time.Now().UnixNano(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("a2aclient: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("a2aclient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "dialing agent", Err: err}
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("decoding response from %q", target.ID), Err: err}
	}

	if rpcResp.Error != nil {
		return nil, &UpstreamError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	var result any
	if len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
			return nil, fmt.Errorf("a2aclient: decoding result: %w", err)
		}
	}
	return result, nil
}
