package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/jkoenig/werkbank/pkg/engine"
)

// Logging returns middleware that emits structured log entries for each
// turn. The log entry includes session, duration, request ID (from
// context), and whether the turn succeeded or failed.
//
// Note: The HTTP method and path are not available at the TurnRunner
// level. For full HTTP-level logging (including status codes), use
// HTTP-level middleware in the adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next TurnRunner) TurnRunner {
		return TurnRunnerFunc(func(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error) {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			res, err := next.RunTurn(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("session", req.SessionID),
				slog.Bool("literal", req.Code != ""),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "turn failed", attrs...)
			} else {
				attrs = append(attrs,
					slog.String("turn", res.TurnID),
					slog.Bool("duplicate", res.Duplicate),
				)
				logger.LogAttrs(ctx, slog.LevelInfo, "turn completed", attrs...)
			}

			return res, err
		})
	}
}
