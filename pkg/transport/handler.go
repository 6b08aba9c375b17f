package transport

import (
	"context"

	"github.com/jkoenig/werkbank/pkg/engine"
)

// TurnRunner handles the core run-turn operation. The implementation
// receives a turn request and returns the completed result; errors are
// mapped to HTTP statuses by the adapter.
type TurnRunner interface {
	RunTurn(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error)
}

// TurnRunnerFunc is an adapter that allows using an ordinary function
// as a TurnRunner.
type TurnRunnerFunc func(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error)

// RunTurn calls f(ctx, req).
func (f TurnRunnerFunc) RunTurn(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error) {
	return f(ctx, req)
}
