// Package synth turns a classified intent into executable Python code.
//
// Synthesis runs a fixed ladder of strategies: completion-service
// adaptation of a matched template, free-form completion-service
// generation, raw template substitution, and finally a terminal error
// naming why each tier failed.
package synth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/catalog"
	"github.com/jkoenig/werkbank/pkg/completion"
	"github.com/jkoenig/werkbank/pkg/debug"
)

// Tier confidences reflect historically observed success rates of each
// strategy, not per-request estimates.
const (
	confidenceLLMFromTemplate = 0.95
	confidenceLLMFreeform     = 0.75
	confidenceTemplateFilled  = 0.90
)

// templateGateConfidence is the minimum classification confidence for the
// template-adaptation tier.
const templateGateConfidence = 0.7

// freeformTemperature is used by the free-form tier unless overridden.
var freeformTemperature = 0.7

// Synthesizer generates code for classified intents.
type Synthesizer struct {
	catalog     *catalog.Catalog
	client      completion.Client
	model       string
	temperature *float64
	llmEnabled  bool
	logger      *slog.Logger
}

// Options configures a Synthesizer.
type Options struct {
	// Client is the completion backend. May be nil when LLMEnabled is
	// false.
	Client completion.Client

	// Model is the backend model used for generation.
	Model string

	// Temperature overrides the per-tier defaults when non-nil.
	Temperature *float64

	// LLMEnabled gates the two completion-service tiers. When false only
	// raw template substitution runs.
	LLMEnabled bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New creates a Synthesizer over the given template catalog.
func New(cat *catalog.Catalog, opts Options) *Synthesizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		catalog:     cat,
		client:      opts.Client,
		model:       opts.Model,
		temperature: opts.Temperature,
		llmEnabled:  opts.LLMEnabled && opts.Client != nil,
		logger:      logger,
	}
}

// Generate produces code for the intent, walking the tier ladder top to
// bottom. Each tier's failure is recorded and the next tier tried; when
// all tiers fail the returned error carries every recorded cause.
func (s *Synthesizer) Generate(ctx context.Context, intent *api.Intent, conv *api.ConversationContext) (*api.GeneratedCode, error) {
	var causes []string

	// Tier 1: completion-service adaptation of a matched template. Gated
	// on classification confidence so that vague requests skip straight to
	// free-form generation.
	if s.llmEnabled && s.templateEligible(intent) {
		if tpl := s.matchTemplate(intent); tpl != nil {
			s.logger.Info("synthesis tier: template adaptation", "template", tpl.Name)
			code, err := s.generateFromTemplate(ctx, tpl, intent, conv)
			if err == nil {
				return &api.GeneratedCode{
					Code:             code,
					Origin:           api.OriginLLMFromTemplate,
					TemplateName:     tpl.Name,
					Confidence:       confidenceLLMFromTemplate,
					EstimatedRuntime: tpl.EstimatedRuntime,
				}, nil
			}
			s.logger.Warn("template adaptation failed, falling back", "error", err.Error())
			causes = append(causes, fmt.Sprintf("template adaptation (%s): %v", tpl.Name, err))
		} else {
			causes = append(causes, "no template matched the classified intent")
		}
	}

	// Tier 2: free-form generation.
	if s.llmEnabled {
		s.logger.Info("synthesis tier: free-form generation")
		code, err := s.generateFreeform(ctx, intent, conv)
		if err == nil {
			return &api.GeneratedCode{
				Code:       code,
				Origin:     api.OriginLLMFreeform,
				Confidence: confidenceLLMFreeform,
			}, nil
		}
		s.logger.Warn("free-form generation failed, falling back", "error", err.Error())
		causes = append(causes, fmt.Sprintf("free-form generation: %v", err))
	} else {
		causes = append(causes, "code generation via completion service is disabled")
	}

	// Tier 3: raw template substitution.
	if tpl := s.matchTemplate(intent); tpl != nil {
		s.logger.Info("synthesis tier: template substitution", "template", tpl.Name)
		return &api.GeneratedCode{
			Code:             FillTemplate(tpl, intent.Parameters),
			Origin:           api.OriginTemplateFilled,
			TemplateName:     tpl.Name,
			Confidence:       confidenceTemplateFilled,
			EstimatedRuntime: tpl.EstimatedRuntime,
		}, nil
	}
	causes = append(causes, "no template available for substitution")

	s.logger.Error("all synthesis tiers exhausted", "causes", causes)
	return nil, api.NewGenerationExhaustedError(causes)
}

func (s *Synthesizer) templateEligible(intent *api.Intent) bool {
	return intent.Confidence > templateGateConfidence && intent.TaskCategory != api.TaskOther
}

// matchTemplate resolves a template for the intent: exact lookup first,
// validated against required parameters, then fuzzy keyword matching over
// the raw request text.
func (s *Synthesizer) matchTemplate(intent *api.Intent) *api.Template {
	if tpl := s.catalog.Lookup(intent); tpl != nil {
		missing := tpl.MissingRequired(intent.Parameters)
		if len(missing) == 0 {
			return tpl
		}
		s.logger.Warn("template parameters incomplete",
			"template", tpl.Name,
			"missing", missing,
		)
	}

	if request := intent.UserRequest(); request != "" {
		if tpl := s.catalog.FuzzyMatch(request); tpl != nil {
			if len(tpl.MissingRequired(intent.Parameters)) == 0 {
				s.logger.Info("fuzzy-matched template", "template", tpl.Name)
				return tpl
			}
		}
	}
	return nil
}

func (s *Synthesizer) generateFromTemplate(ctx context.Context, tpl *api.Template, intent *api.Intent, conv *api.ConversationContext) (string, error) {
	prompt := buildTemplatePrompt(tpl, intent, conv)
	return s.complete(ctx, prompt, s.temperature)
}

func (s *Synthesizer) generateFreeform(ctx context.Context, intent *api.Intent, conv *api.ConversationContext) (string, error) {
	temp := s.temperature
	if temp == nil {
		temp = &freeformTemperature
	}
	prompt := buildFreeformPrompt(intent, conv)
	return s.complete(ctx, prompt, temp)
}

func (s *Synthesizer) complete(ctx context.Context, prompt string, temperature *float64) (string, error) {
	debug.Trace("synth", "generation prompt", "prompt", debug.Truncate(prompt, 2000))

	result, err := s.client.Generate(ctx, &completion.Request{
		Prompt:      prompt,
		Model:       s.model,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	code := ExtractCode(result.Text)
	if err := ValidateCode(code); err != nil {
		return "", fmt.Errorf("generated code rejected: %w", err)
	}
	return code, nil
}
