package mcpconn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ocx/gateway/internal/circuitbreaker"
	"github.com/ocx/gateway/internal/config"
)

// Pool lazily launches and reuses one Connector per target, following
// the locate-or-create double-checked-locking shape of
// internal/circuitbreaker.Manager.Get and internal/ghostpool.PoolManager's
// subprocess/container reuse. Each target also gets its own circuit
// breaker so a connector stuck crash-looping stops being retried on
// every request.
type Pool struct {
	mu         sync.RWMutex
	connectors map[string]*Connector
	breakers   *circuitbreaker.Manager
}

// NewPool builds an empty Pool; connectors are launched lazily.
func NewPool() *Pool {
	return &Pool{
		connectors: make(map[string]*Connector),
		breakers: circuitbreaker.NewManager(&circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c circuitbreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		}),
	}
}

// Call runs one JSON-RPC call against target's connector through its
// circuit breaker: a target with 5 consecutive failures stops accepting
// calls for 30s instead of being retried on every proxied request.
func (p *Pool) Call(ctx context.Context, target config.Target, method string, params any) (any, error) {
	cb := p.breakers.Get(target.ID)
	return cb.ExecuteContext(ctx, func(ctx context.Context) (any, error) {
		conn, err := p.Get(target)
		if err != nil {
			return nil, err
		}
		return conn.Call(ctx, method, params)
	})
}

// Get returns the connector for target, launching its subprocess on
// first use.
func (p *Pool) Get(target config.Target) (*Connector, error) {
	p.mu.RLock()
	c, ok := p.connectors[target.ID]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok = p.connectors[target.ID]; ok {
		return c, nil
	}

	var err error
	if target.Runtime == config.RuntimeDocker {
		c, err = LaunchDocker(target)
	} else {
		c, err = Launch(target)
	}
	if err != nil {
		return nil, fmt.Errorf("mcpconn: launching target %q: %w", target.ID, err)
	}
	p.connectors[target.ID] = c
	return c, nil
}

// CloseAll terminates every launched connector, used on gateway shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.connectors {
		_ = c.Close()
		delete(p.connectors, id)
	}
}
