// Package middleware wires the gateway's cross-cutting HTTP concerns —
// request-id assignment, authentication, and access logging — onto
// gorilla/mux handlers, following the teacher's context-attachment idiom.
package middleware

import (
	"context"

	"github.com/ocx/gateway/internal/security"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	authInfoKey
)

// WithRequestID attaches id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom extracts the request id attached by the request-id
// middleware. Returns "" if none is present.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithAuthInfo attaches info to ctx.
func WithAuthInfo(ctx context.Context, info *security.AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}

// AuthInfoFrom extracts the AuthInfo attached by the auth middleware.
func AuthInfoFrom(ctx context.Context) *security.AuthInfo {
	info, _ := ctx.Value(authInfoKey).(*security.AuthInfo)
	return info
}
