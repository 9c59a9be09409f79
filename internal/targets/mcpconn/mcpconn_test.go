package mcpconn

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream pipes a connector's requests to an in-memory echo-style
// handler, standing in for a real MCP subprocess's stdin/stdout.
func fakeUpstream(t *testing.T, handle func(rpcRequest) rpcResponse) *Connector {
	t.Helper()
	clientReader, upstreamWriter := io.Pipe()
	upstreamReader, clientWriter := io.Pipe()

	go func() {
		scanner := bufio.NewScanner(clientReader)
		for scanner.Scan() {
			var req rpcRequest
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &req))
			resp := handle(req)
			line, _ := json.Marshal(resp)
			_, _ = clientWriter.Write(append(line, '\n'))
		}
	}()

	return newConnector(upstreamWriter, upstreamReader, func() error { return nil })
}

func TestCallReturnsResult(t *testing.T) {
	c := fakeUpstream(t, func(req rpcRequest) rpcResponse {
		result, _ := json.Marshal(map[string]string{"echo": req.Method})
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
	})

	result, err := c.Call(context.Background(), "tools/call", map[string]string{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "tools/call"}, result)
}

func TestCallReturnsUpstreamError(t *testing.T) {
	c := fakeUpstream(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "method not found"}}
	})

	_, err := c.Call(context.Background(), "bogus/method", nil)
	require.Error(t, err)
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, -32601, upstreamErr.Code)
}

func TestCallOnClosedConnectorReturnsTransportError(t *testing.T) {
	c := fakeUpstream(t, func(req rpcRequest) rpcResponse {
		return rpcResponse{JSONRPC: "2.0", ID: req.ID}
	})
	require.NoError(t, c.Close())

	_, err := c.Call(context.Background(), "tools/call", nil)
	require.Error(t, err)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestConcurrentCallsMatchedByID(t *testing.T) {
	c := fakeUpstream(t, func(req rpcRequest) rpcResponse {
		time.Sleep(5 * time.Millisecond)
		result, _ := json.Marshal(req.Method)
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
	})

	done := make(chan struct{}, 2)
	go func() {
		result, err := c.Call(context.Background(), "first", nil)
		assert.NoError(t, err)
		assert.Equal(t, "first", result)
		done <- struct{}{}
	}()
	go func() {
		result, err := c.Call(context.Background(), "second", nil)
		assert.NoError(t, err)
		assert.Equal(t, "second", result)
		done <- struct{}{}
	}()
	<-done
	<-done
}

func TestCallRespectsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	c := fakeUpstream(t, func(req rpcRequest) rpcResponse {
		<-block
		result, _ := json.Marshal("late")
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
