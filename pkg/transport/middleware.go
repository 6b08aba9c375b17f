package transport

// Middleware wraps a TurnRunner with cross-cutting behavior such as
// panic recovery, request IDs, and logging.
type Middleware func(TurnRunner) TurnRunner

// Chain folds middlewares into one. The first argument becomes the
// outermost wrapper, so Chain(a, b, c) runs a, then b, then c, then
// the handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(next TurnRunner) TurnRunner {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
