// Package completion abstracts the text-completion service used by the
// intent classifier, the code synthesizer, and the optional result
// summarizer. The wire protocol is owned by the backend; the adapter here
// speaks the Chat Completions dialect.
package completion

import (
	"context"
	"log/slog"
	"strings"
)

// Client abstracts a completion backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Client interface {
	// Name returns the adapter identifier (e.g. "chat").
	Name() string

	// Generate performs one non-streaming completion.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// ListModels returns the models available on the backend.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases client resources.
	Close() error
}

// Request is one completion request.
type Request struct {
	// Prompt is the full prompt text sent as a single user message.
	Prompt string

	// Model is the backend model identifier.
	Model string

	// Temperature overrides the backend default when non-nil.
	Temperature *float64

	// MaxTokens bounds the completion length when > 0.
	MaxTokens int
}

// Result is the completion outcome.
type Result struct {
	// Text is the completion text with surrounding whitespace trimmed.
	Text string

	// Model is the model that actually served the request.
	Model string
}

// ModelInfo describes one backend model.
type ModelInfo struct {
	ID string `json:"id"`
}

// SelectModel resolves the model name to use for a request. The configured
// name wins when the backend lists it. When it is absent, the first listed
// model is used instead. When the model list cannot be fetched, the
// configured name is sent as-is and the backend decides.
func SelectModel(ctx context.Context, c Client, configured string) string {
	models, err := c.ListModels(ctx)
	if err != nil || len(models) == 0 {
		if err != nil {
			slog.Debug("model list unavailable, using configured name", "model", configured, "error", err.Error())
		}
		return configured
	}

	if configured == "" {
		return models[0].ID
	}

	for _, m := range models {
		if strings.EqualFold(m.ID, configured) {
			return m.ID
		}
	}

	slog.Warn("configured model not available, falling back to first listed model",
		"configured", configured,
		"fallback", models[0].ID,
	)
	return models[0].ID
}
