// Package intent turns free-text user requests into structured Intent
// values using the completion service. Classification is best-effort: on
// any failure a low-confidence fallback intent is returned instead of an
// error, so the pipeline always has something to work with.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/completion"
	"github.com/jkoenig/werkbank/pkg/debug"
)

// contextWindow bounds how many recent messages enter the prompt.
const contextWindow = 3

// FallbackConfidence is the confidence assigned when classification fails
// or produces no usable JSON.
const FallbackConfidence = 0.3

// Classifier classifies requests via the completion service.
type Classifier struct {
	client      completion.Client
	model       string
	temperature *float64
	logger      *slog.Logger
}

// Options configures a Classifier.
type Options struct {
	// Model is the backend model used for classification.
	Model string

	// Temperature overrides the backend default when non-nil.
	Temperature *float64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewClassifier creates a Classifier backed by the given completion client.
func NewClassifier(client completion.Client, opts Options) *Classifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		logger:      logger,
	}
}

// Classify analyzes a user request and returns a structured intent. It
// never returns an error: when the completion call or JSON parsing fails,
// the fallback intent (category "other", low confidence) is returned.
//
// The returned intent always carries the raw request text under
// api.ParamUserRequest.
func (c *Classifier) Classify(ctx context.Context, request string, conv *api.ConversationContext) *api.Intent {
	prompt := c.buildPrompt(request, conv)
	debug.Trace("intent", "classification prompt", "prompt", debug.Truncate(prompt, 2000))

	result, err := c.client.Generate(ctx, &completion.Request{
		Prompt:      prompt,
		Model:       c.model,
		Temperature: c.temperature,
	})
	if err != nil {
		c.logger.Warn("intent classification failed, using fallback",
			"error", err.Error(),
		)
		return Fallback(request)
	}

	intent := c.parseResponse(result.Text)
	ensureUserRequest(intent, request)

	c.logger.Info("intent classified",
		"task_category", intent.TaskCategory,
		"sub_category", intent.SubCategory,
		"confidence", intent.Confidence,
	)
	return intent
}

// Fallback returns the intent used when classification cannot run or
// fails: category "other", low confidence, only the raw request as a
// parameter.
func Fallback(request string) *api.Intent {
	return &api.Intent{
		TaskCategory: api.TaskOther,
		Confidence:   FallbackConfidence,
		Parameters: map[string]any{
			api.ParamUserRequest: request,
		},
	}
}

func ensureUserRequest(intent *api.Intent, request string) {
	if intent.Parameters == nil {
		intent.Parameters = make(map[string]any)
	}
	if _, ok := intent.Parameters[api.ParamUserRequest]; !ok {
		intent.Parameters[api.ParamUserRequest] = request
	}
}

func (c *Classifier) buildPrompt(request string, conv *api.ConversationContext) string {
	var sb strings.Builder

	sb.WriteString("You are an intent classification expert. Analyze the user request and identify the task type and parameters.\n")

	if conv != nil && len(conv.RecentMessages) > 0 {
		msgs := conv.RecentMessages
		if len(msgs) > contextWindow {
			msgs = msgs[len(msgs)-contextWindow:]
		}
		sb.WriteString("\n[Conversation context]\n")
		for _, m := range msgs {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}

	sb.WriteString("\n[User request]\n")
	sb.WriteString(request)
	sb.WriteString("\n\n[Task types]\n")
	sb.WriteString("- plot: plotting (line charts, bar charts, pie charts, sine curves, ...)\n")
	sb.WriteString("- data_analysis: data analysis (statistics, sorting, filtering)\n")
	sb.WriteString("- web: web operations (screenshots, scraping, API calls)\n")
	sb.WriteString("- file: file handling (reading, writing, conversion)\n")
	sb.WriteString("- math: mathematical computation (equations, sequences)\n")
	sb.WriteString("- other: anything else\n")
	sb.WriteString("\n[Output format]\nReturn JSON:\n")
	sb.WriteString(`{
    "task_category": "plot",
    "sub_category": "sine_wave",
    "parameters": {
        "x_range": [-10, 10],
        "color": "blue",
        "title": "Sine wave"
    },
    "confidence": 0.9,
    "needs_prior_context": false,
    "context_references": []
}
`)
	sb.WriteString("\n[Requirements]\n")
	sb.WriteString("1. task_category must be one of the types above\n")
	sb.WriteString("2. sub_category may be more specific (sine_wave, bar_chart, statistics, ...)\n")
	sb.WriteString("3. parameters extracts key values (numbers, colors, titles, URLs, ...)\n")
	sb.WriteString("4. confidence rates the classification in [0, 1]\n")
	sb.WriteString("5. needs_prior_context is true when the request refers to earlier turns (\"it\", \"again\", ...)\n")
	sb.WriteString("6. context_references lists the referring words\n")
	sb.WriteString("7. Return only the JSON, no other text\n")

	return sb.String()
}

// parseResponse extracts the intent JSON from the completion text and
// merges it over the fallback defaults. Unparseable responses yield the
// bare defaults.
func (c *Classifier) parseResponse(text string) *api.Intent {
	intent := &api.Intent{
		TaskCategory: api.TaskOther,
		Confidence:   FallbackConfidence,
		Parameters:   make(map[string]any),
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		c.logger.Warn("no JSON object in classification response")
		return intent
	}

	if err := mergeIntentJSON(intent, raw); err != nil {
		c.logger.Warn("classification JSON unparseable", "error", err.Error())
	}
	return intent
}
