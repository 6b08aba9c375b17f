package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/jkoenig/werkbank/pkg/engine"
)

type requestIDCtxKey struct{}

// RequestIDFromContext returns the request ID attached to the context,
// or an empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// ContextWithRequestID attaches a request ID to the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestID returns middleware that ensures every turn carries a
// request ID. An ID already present in the context (the HTTP adapter
// propagates X-Request-ID) is kept; otherwise a fresh one is minted.
func RequestID() Middleware {
	return func(next TurnRunner) TurnRunner {
		return TurnRunnerFunc(func(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, newRequestID())
			}
			return next.RunTurn(ctx, req)
		})
	}
}

// newRequestID mints "req_" plus 16 hex characters.
func newRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "req_" + hex.EncodeToString(b)
}
