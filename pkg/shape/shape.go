// Package shape renders execution results into user-facing messages:
// classification, banners, error analysis with remediation hints, and an
// optional completion-service summary.
package shape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/completion"
)

// ResultKind classifies a result for rendering.
type ResultKind string

const (
	KindError             ResultKind = "error"
	KindSuccessWithImage  ResultKind = "success_with_image"
	KindSuccessWithOutput ResultKind = "success_with_output"
	KindEmpty             ResultKind = "empty"
)

// divider separates message sections.
var divider = strings.Repeat("─", 40)

// Classify orders a result into exactly one kind. Error dominates,
// then images, then non-blank output, then empty.
func Classify(result *api.ExecutionResult) ResultKind {
	switch {
	case !result.Succeeded:
		return KindError
	case len(result.Images) > 0:
		return KindSuccessWithImage
	case strings.TrimSpace(result.Output) != "":
		return KindSuccessWithOutput
	default:
		return KindEmpty
	}
}

// Options configures a Shaper.
type Options struct {
	// MaxMessageLength caps the rendered output section in runes.
	MaxMessageLength int

	// EnableSummary turns on the completion-service summary for
	// successful results.
	EnableSummary bool

	// Client is the completion backend for summaries. May be nil when
	// EnableSummary is false.
	Client completion.Client

	// Model is the backend model used for summaries.
	Model string

	// Temperature overrides the backend default when non-nil.
	Temperature *float64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Shaper renders execution results.
type Shaper struct {
	opts Options
}

// New creates a Shaper.
func New(opts Options) *Shaper {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 1000
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Shaper{opts: opts}
}

// Render produces the user-facing message for a result. It never fails:
// any rendering problem degrades to a minimal raw format. The returned
// text never embeds image data; images travel on the result itself.
func (s *Shaper) Render(ctx context.Context, request, code string, result *api.ExecutionResult) (msg string) {
	defer func() {
		// Rendering is last in the pipeline; a panic here must not take
		// the whole turn down with it.
		if r := recover(); r != nil {
			s.opts.Logger.Error("result rendering panicked", "panic", fmt.Sprint(r))
			msg = RenderMinimal(result)
		}
	}()

	kind := Classify(result)

	var rendered string
	switch kind {
	case KindSuccessWithImage:
		rendered = s.renderImageResult(result)
	case KindSuccessWithOutput:
		rendered = s.renderTextResult(result)
	case KindError:
		rendered = s.renderErrorResult(result)
	default:
		rendered = "Execution succeeded (no output)."
	}

	// The summary is additive and best-effort; failures degrade silently
	// to the already-rendered message. Errors are never summarized.
	if s.opts.EnableSummary && s.opts.Client != nil && kind != KindError {
		rendered = s.addSummary(ctx, request, code, result, rendered)
	}

	s.opts.Logger.Info("result rendered", "kind", kind, "length", len(rendered))
	return rendered
}

// RenderMinimal is the degraded rendering used when the full path cannot
// run. Also useful to callers recovering from rendering failures.
func RenderMinimal(result *api.ExecutionResult) string {
	if !result.Succeeded {
		return "Execution failed.\n\nError:\n" + result.Error
	}
	if len(result.Images) > 0 {
		return fmt.Sprintf("Execution succeeded.\n\n%d image(s) generated and attached.", len(result.Images))
	}
	if result.Output != "" {
		return "Execution succeeded.\n\nOutput:\n" + result.Output
	}
	return "Execution succeeded (no output)."
}

func (s *Shaper) renderImageResult(result *api.ExecutionResult) string {
	lines := []string{"Chart generated successfully", divider}

	if out := strings.TrimSpace(result.Output); out != "" {
		lines = append(lines, "Execution log", divider)
		lines = append(lines, api.TruncateRunes(out, s.opts.MaxMessageLength, "\n...(output truncated)"))
		lines = append(lines, divider)
	}

	if len(result.Images) == 1 {
		lines = append(lines, "1 image generated")
	} else {
		lines = append(lines, fmt.Sprintf("%d images generated", len(result.Images)))
	}
	lines = append(lines, "Images are delivered alongside this message")

	return strings.Join(lines, "\n")
}

func (s *Shaper) renderTextResult(result *api.ExecutionResult) string {
	output := strings.TrimSpace(result.Output)
	truncated := api.TruncateRunes(output, s.opts.MaxMessageLength, "")

	lines := []string{"Execution complete", divider}
	if len(truncated) < len(output) {
		lines = append(lines, "Output (truncated)", divider, truncated, divider)
		lines = append(lines, fmt.Sprintf("Output was too long; showing the first %d characters", s.opts.MaxMessageLength))
	} else {
		lines = append(lines, "Output", divider, output, divider)
	}
	return strings.Join(lines, "\n")
}

func (s *Shaper) renderErrorResult(result *api.ExecutionResult) string {
	errMsg := result.Error
	if errMsg == "" {
		errMsg = "unknown error"
	}

	lines := []string{"Execution failed", divider, "Error", divider, errMsg, divider}

	if hints := AnalyzeError(errMsg); len(hints) > 0 {
		lines = append(lines, "", "Possible causes and suggestions", divider)
		for _, h := range hints {
			lines = append(lines, "  - "+h)
		}
		lines = append(lines, divider)
	}
	return strings.Join(lines, "\n")
}

func (s *Shaper) addSummary(ctx context.Context, request, code string, result *api.ExecutionResult, rendered string) string {
	output := api.TruncateRunes(result.Output, 500, "")
	if output == "" {
		output = "(no output)"
	}

	prompt := fmt.Sprintf(`You are an expert at analyzing code execution results. Summarize the following execution briefly.

[User request]
%s

[Executed code]
`+"```python\n%s\n```"+`

[Execution output]
%s

[Requirements]
1. Summarize the result in one or two sentences
2. Point out the key information or data
3. If a chart was produced, describe what it shows
4. Keep the language concise and friendly

Output only the summary, nothing else.
`, request, code, output)

	summary, err := s.opts.Client.Generate(ctx, &completion.Request{
		Prompt:      prompt,
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		MaxTokens:   200,
	})
	if err != nil {
		s.opts.Logger.Warn("result summary failed", "error", err.Error())
		return rendered
	}

	return "Summary\n" + strings.TrimSpace(summary.Text) + "\n\n" + rendered
}
