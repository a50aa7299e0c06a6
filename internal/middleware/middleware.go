// Package middleware provides http.RoundTripper decorators for the REST
// client: bearer authentication, request IDs and request logging.
package middleware

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// anonymousKey marks requests that must not carry a credential.
	anonymousKey contextKey = "anonymous"
	// operationKey names the API operation for logs.
	operationKey contextKey = "operation"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Middleware decorates a RoundTripper.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to the http.RoundTripper interface.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls f(req).
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps base with mws; the first middleware is the outermost.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// WithAnonymous marks the request context as unauthenticated (login, signup).
func WithAnonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey, true)
}

// IsAnonymous reports whether the context was marked by WithAnonymous.
func IsAnonymous(ctx context.Context) bool {
	anon, _ := ctx.Value(anonymousKey).(bool)
	return anon
}

// WithOperation names the API operation carried by the context.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey, op)
}

// Operation extracts the operation name from the context.
// Returns empty string if not found.
func Operation(ctx context.Context) string {
	op, _ := ctx.Value(operationKey).(string)
	return op
}
