package engine

import (
	"context"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/storage"
)

// loadContext reconstructs conversation context for a session from the
// most recent stored turns, oldest first. Returns an empty context when
// no store is configured or the lookup fails; context is best-effort
// and never blocks a turn.
func (e *Engine) loadContext(ctx context.Context, session string) *api.ConversationContext {
	conv := &api.ConversationContext{}
	if e.store == nil {
		return conv
	}

	list, err := e.store.ListTurns(ctx, storage.ListOptions{
		SessionID: session,
		Limit:     e.cfg.contextWindow(),
	})
	if err != nil {
		e.logger.Warn("loading conversation context failed", "session", session, "error", err.Error())
		return conv
	}

	// The store returns newest first; reverse to chronological order.
	turns := list.Turns
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	for _, rec := range turns {
		conv.RecentMessages = append(conv.RecentMessages,
			api.ContextMessage{Role: "user", Content: rec.Input},
			api.ContextMessage{Role: "assistant", Content: rec.Message},
		)
	}

	if len(turns) > 0 {
		last := turns[len(turns)-1]
		conv.LastCode = last.Code
		conv.LastResult = &api.ExecutionResult{
			Succeeded: last.Succeeded,
			Output:    last.Output,
			Error:     last.ErrorText,
		}
	}

	return conv
}
