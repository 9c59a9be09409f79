package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trippingConfig(name string) *Config {
	return &Config{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
	}
}

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := New(trippingConfig("yfinance"))
	upstreamErr := errors.New("upstream unreachable")

	for i := 0; i < 2; i++ {
		_, err := cb.ExecuteContext(context.Background(), func(context.Context) (any, error) {
			return nil, upstreamErr
		})
		assert.ErrorIs(t, err, upstreamErr)
	}

	assert.Equal(t, StateOpen, cb.State())

	_, err := cb.ExecuteContext(context.Background(), func(context.Context) (any, error) {
		t.Fatal("request should not reach the upstream while open")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenRecoversToClosed(t *testing.T) {
	cb := New(trippingConfig("yfinance"))
	upstreamErr := errors.New("upstream unreachable")

	for i := 0; i < 2; i++ {
		_, _ = cb.ExecuteContext(context.Background(), func(context.Context) (any, error) {
			return nil, upstreamErr
		})
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	_, err := cb.ExecuteContext(context.Background(), func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestManagerGetIsolatesBreakersPerTarget(t *testing.T) {
	mgr := NewManager(trippingConfig(""))

	a := mgr.Get("yfinance")
	b := mgr.Get("weather")
	assert.NotSame(t, a, b)

	again := mgr.Get("yfinance")
	assert.Same(t, a, again)
}

func TestManagerStatsReflectsTrippedBreaker(t *testing.T) {
	mgr := NewManager(trippingConfig(""))
	cb := mgr.Get("yfinance")
	upstreamErr := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, _ = cb.ExecuteContext(context.Background(), func(context.Context) (any, error) {
			return nil, upstreamErr
		})
	}

	stats := mgr.Stats()
	require.Contains(t, stats, "yfinance")
	assert.Equal(t, StateOpen, stats["yfinance"].State)
}
