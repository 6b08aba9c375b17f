package transport

import (
	"context"
	"fmt"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/engine"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to internal error responses. The server continues to
// accept new requests after a panic is recovered.
func Recovery() Middleware {
	return func(next TurnRunner) TurnRunner {
		return TurnRunnerFunc(func(ctx context.Context, req *engine.TurnRequest) (res *engine.TurnResult, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					res = nil
					retErr = api.NewInternalError(fmt.Sprintf("internal server error: %v", r), nil)
				}
			}()
			return next.RunTurn(ctx, req)
		})
	}
}
