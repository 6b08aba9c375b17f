package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/debug"
	"github.com/jkoenig/werkbank/pkg/observability"
	"github.com/jkoenig/werkbank/pkg/storage"
	"github.com/jkoenig/werkbank/pkg/synth"
)

// Classifier turns raw text into a structured intent. It never fails;
// unclassifiable input yields a fallback descriptor.
type Classifier interface {
	Classify(ctx context.Context, request string, conv *api.ConversationContext) *api.Intent
}

// Synthesizer produces executable code for an intent.
type Synthesizer interface {
	Generate(ctx context.Context, intent *api.Intent, conv *api.ConversationContext) (*api.GeneratedCode, error)
}

// Runner executes code in a sandbox and returns a normalized result.
type Runner interface {
	Run(ctx context.Context, code string, requirements []string) (*api.ExecutionResult, error)
}

// Shaper renders an execution result into a user-facing message.
type Shaper interface {
	Render(ctx context.Context, request, code string, result *api.ExecutionResult) string
}

// TurnRequest is one unit of work for the engine.
type TurnRequest struct {
	// SessionID scopes deduplication and context. Empty means the
	// default session.
	SessionID string `json:"session_id"`

	// Input is the raw user text. Required unless Code is set.
	Input string `json:"input"`

	// Code, when non-empty, is executed verbatim: classification and
	// synthesis are skipped. Markdown code fences are stripped.
	Code string `json:"code,omitempty"`

	// Context optionally supplies conversation context. When nil and a
	// store is configured, context is loaded from recent stored turns.
	Context *api.ConversationContext `json:"context,omitempty"`
}

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	TurnID    string               `json:"turn_id"`
	SessionID string               `json:"session_id"`
	Intent    *api.Intent          `json:"intent,omitempty"`
	Code      *api.GeneratedCode   `json:"code,omitempty"`
	Result    *api.ExecutionResult `json:"result,omitempty"`
	Message   string               `json:"message"`
	Duplicate bool                 `json:"duplicate,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// Engine runs the turn pipeline. All stage dependencies except the
// store are required.
type Engine struct {
	classifier Classifier
	synth      Synthesizer
	runner     Runner
	shaper     Shaper
	store      storage.TurnStore // may be nil
	dedup      *Deduper
	cfg        Config
	logger     *slog.Logger
}

// New creates an Engine. The store may be nil for stateless operation.
func New(classifier Classifier, s Synthesizer, runner Runner, shaper Shaper, store storage.TurnStore, cfg Config, logger *slog.Logger) (*Engine, error) {
	if classifier == nil {
		return nil, fmt.Errorf("engine: classifier must not be nil")
	}
	if s == nil {
		return nil, fmt.Errorf("engine: synthesizer must not be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("engine: runner must not be nil")
	}
	if shaper == nil {
		return nil, fmt.Errorf("engine: shaper must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		classifier: classifier,
		synth:      s,
		runner:     runner,
		shaper:     shaper,
		store:      store,
		dedup:      NewDeduper(),
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// RunTurn processes one turn: classify, synthesize, deduplicate, run,
// shape, and persist. Only validation, fatal provisioning, and exhausted
// generation surface as errors; every other failure becomes a rendered
// failed result.
func (e *Engine) RunTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	observability.TurnsInFlight.Inc()
	defer observability.TurnsInFlight.Dec()

	session := e.cfg.session(req.SessionID)

	if err := api.ValidateSessionID(req.SessionID); err != nil {
		return nil, err
	}
	if req.Code == "" {
		if err := api.ValidateTurnInput(req.Input); err != nil {
			return nil, err
		}
	}

	turnID := api.NewTurnID()
	e.logger.Info("turn started", "turn", turnID, "session", session, "literal", req.Code != "")

	conv := req.Context
	if conv == nil {
		conv = e.loadContext(ctx, session)
	}

	intent, err := e.classify(ctx, req, conv)
	if err != nil {
		return nil, err
	}

	gen, err := e.synthesize(ctx, req, intent, conv)
	if err != nil {
		observability.TurnsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	observability.SynthesisTotal.WithLabelValues(string(gen.Origin)).Inc()

	if e.dedup.CheckAndRecord(session, gen.Code) {
		observability.DuplicateTurnsTotal.Inc()
		observability.TurnsTotal.WithLabelValues("duplicate").Inc()
		e.logger.Info("duplicate turn", "turn", turnID, "session", session)
		return &TurnResult{
			TurnID:    turnID,
			SessionID: session,
			Intent:    intent,
			Code:      gen,
			Message:   "This exact code was just executed in this session. Change the request to run it again.",
			Duplicate: true,
			CreatedAt: time.Now().UTC(),
		}, nil
	}

	result, err := e.execute(ctx, gen)
	if err != nil {
		observability.TurnsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	start := time.Now()
	message := e.shaper.Render(ctx, req.Input, gen.Code, result)
	observability.StageDuration.WithLabelValues("shape").Observe(time.Since(start).Seconds())

	outcome := "succeeded"
	if !result.Succeeded {
		outcome = "failed"
	}
	observability.TurnsTotal.WithLabelValues(outcome).Inc()

	res := &TurnResult{
		TurnID:    turnID,
		SessionID: session,
		Intent:    intent,
		Code:      gen,
		Result:    result,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	e.persist(ctx, req, res)

	e.logger.Info("turn finished", "turn", turnID, "session", session,
		"origin", gen.Origin, "succeeded", result.Succeeded, "images", len(result.Images))
	return res, nil
}

// classify runs the intent stage. Literal-code turns and disabled
// classification both yield a literal descriptor.
func (e *Engine) classify(ctx context.Context, req *TurnRequest, conv *api.ConversationContext) (*api.Intent, error) {
	if req.Code != "" || !e.cfg.EnableClassification {
		return literalIntent(req.Input), nil
	}

	start := time.Now()
	intent := e.classifier.Classify(ctx, req.Input, conv)
	observability.StageDuration.WithLabelValues("intent").Observe(time.Since(start).Seconds())

	debug.Log("engine", "intent classified",
		"category", intent.TaskCategory, "sub", intent.SubCategory, "confidence", intent.Confidence)
	return intent, nil
}

// synthesize runs the code stage. Literal submissions skip synthesis
// entirely; only fence stripping and structural validation apply.
func (e *Engine) synthesize(ctx context.Context, req *TurnRequest, intent *api.Intent, conv *api.ConversationContext) (*api.GeneratedCode, error) {
	if req.Code != "" {
		code := synth.ExtractCode(req.Code)
		if err := synth.ValidateCode(code); err != nil {
			return nil, api.NewValidationError(fmt.Sprintf("submitted code rejected: %v", err))
		}
		return &api.GeneratedCode{
			Code:       code,
			Origin:     api.OriginLiteral,
			Confidence: 1.0,
		}, nil
	}

	start := time.Now()
	gen, err := e.synth.Generate(ctx, intent, conv)
	observability.StageDuration.WithLabelValues("synth").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	debug.Log("engine", "code synthesized",
		"origin", gen.Origin, "template", gen.TemplateName, "confidence", gen.Confidence)
	return gen, nil
}

// execute runs the sandbox stage. Non-terminal failures (exhausted
// transient provisioning retries) become failed results so the turn
// still produces a rendered message.
func (e *Engine) execute(ctx context.Context, gen *api.GeneratedCode) (*api.ExecutionResult, error) {
	start := time.Now()
	result, err := e.runner.Run(ctx, gen.Code, nil)
	observability.StageDuration.WithLabelValues("sandbox").Observe(time.Since(start).Seconds())

	if err != nil {
		if api.TerminatesTurn(err) {
			return nil, err
		}
		e.logger.Warn("execution failed without result", "error", err.Error())
		return &api.ExecutionResult{
			Succeeded: false,
			Error:     err.Error(),
		}, nil
	}
	return result, nil
}

// persist stores the turn record when a store is configured. Failures
// are logged, never raised; persistence is a side channel.
func (e *Engine) persist(ctx context.Context, req *TurnRequest, res *TurnResult) {
	if e.store == nil {
		return
	}

	input := req.Input
	if input == "" {
		input = "(literal code)"
	}

	rec := &api.TurnRecord{
		ID:           res.TurnID,
		SessionID:    res.SessionID,
		Input:        input,
		TaskCategory: res.Intent.TaskCategory,
		Code:         res.Code.Code,
		Origin:       res.Code.Origin,
		TemplateName: res.Code.TemplateName,
		Succeeded:    res.Result.Succeeded,
		Output:       res.Result.Output,
		ErrorText:    res.Result.Error,
		ImageCount:   len(res.Result.Images),
		Message:      res.Message,
		CreatedAt:    res.CreatedAt,
	}

	if err := e.store.SaveTurn(ctx, rec); err != nil {
		e.logger.Warn("persisting turn failed", "turn", res.TurnID, "error", err.Error())
	}
}

// literalIntent is the descriptor used when classification does not run.
func literalIntent(input string) *api.Intent {
	return &api.Intent{
		TaskCategory: api.TaskOther,
		Confidence:   1.0,
		Parameters:   map[string]any{api.ParamUserRequest: input},
	}
}
