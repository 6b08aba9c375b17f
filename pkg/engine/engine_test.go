package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/storage/memory"
)

// fakeClassifier returns a fixed intent and records calls.
type fakeClassifier struct {
	intent *api.Intent
	calls  int
}

func (f *fakeClassifier) Classify(_ context.Context, request string, _ *api.ConversationContext) *api.Intent {
	f.calls++
	if f.intent != nil {
		return f.intent
	}
	return &api.Intent{
		TaskCategory: api.TaskPlot,
		Confidence:   0.9,
		Parameters:   map[string]any{api.ParamUserRequest: request},
	}
}

// fakeSynth returns fixed generated code or an error.
type fakeSynth struct {
	gen   *api.GeneratedCode
	err   error
	calls int
}

func (f *fakeSynth) Generate(context.Context, *api.Intent, *api.ConversationContext) (*api.GeneratedCode, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.gen != nil {
		return f.gen, nil
	}
	return &api.GeneratedCode{
		Code:       "import math\nprint(math.pi)",
		Origin:     api.OriginLLMFreeform,
		Confidence: 0.75,
	}, nil
}

// fakeRunner returns a fixed result or error and records executed code.
type fakeRunner struct {
	result *api.ExecutionResult
	err    error
	codes  []string
}

func (f *fakeRunner) Run(_ context.Context, code string, _ []string) (*api.ExecutionResult, error) {
	f.codes = append(f.codes, code)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &api.ExecutionResult{Succeeded: true, Output: "3.141592653589793"}, nil
}

// fakeShaper renders a deterministic message.
type fakeShaper struct{}

func (fakeShaper) Render(_ context.Context, _, _ string, result *api.ExecutionResult) string {
	if !result.Succeeded {
		return "rendered failure: " + result.Error
	}
	return "rendered: " + result.Output
}

func newTestEngine(t *testing.T, cls *fakeClassifier, syn *fakeSynth, run *fakeRunner) *Engine {
	t.Helper()
	e, err := New(cls, syn, run, fakeShaper{}, memory.New(0), Config{EnableClassification: true}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func TestRunTurn_FullPipeline(t *testing.T) {
	cls := &fakeClassifier{}
	syn := &fakeSynth{}
	run := &fakeRunner{}
	e := newTestEngine(t, cls, syn, run)

	res, err := e.RunTurn(context.Background(), &TurnRequest{
		SessionID: "s1",
		Input:     "compute pi",
	})
	if err != nil {
		t.Fatalf("RunTurn() error: %v", err)
	}

	if cls.calls != 1 || syn.calls != 1 || len(run.codes) != 1 {
		t.Errorf("stage calls = %d/%d/%d, want 1/1/1", cls.calls, syn.calls, len(run.codes))
	}
	if res.Intent.TaskCategory != api.TaskPlot {
		t.Errorf("intent category = %q", res.Intent.TaskCategory)
	}
	if res.Code.Origin != api.OriginLLMFreeform {
		t.Errorf("origin = %q", res.Code.Origin)
	}
	if !strings.Contains(res.Message, "3.14159") {
		t.Errorf("message = %q", res.Message)
	}
	if !strings.HasPrefix(res.TurnID, "turn_") {
		t.Errorf("turn ID = %q", res.TurnID)
	}
	if res.SessionID != "s1" {
		t.Errorf("session = %q", res.SessionID)
	}
}

func TestRunTurn_EmptyInput(t *testing.T) {
	e := newTestEngine(t, &fakeClassifier{}, &fakeSynth{}, &fakeRunner{})

	_, err := e.RunTurn(context.Background(), &TurnRequest{Input: "   "})
	if api.KindOf(err) != api.ErrorKindValidation {
		t.Fatalf("kind = %v, want validation", api.KindOf(err))
	}
}

func TestRunTurn_BadSessionID(t *testing.T) {
	e := newTestEngine(t, &fakeClassifier{}, &fakeSynth{}, &fakeRunner{})

	_, err := e.RunTurn(context.Background(), &TurnRequest{
		SessionID: "bad session id!",
		Input:     "compute pi",
	})
	if api.KindOf(err) != api.ErrorKindValidation {
		t.Fatalf("kind = %v, want validation", api.KindOf(err))
	}
}

func TestRunTurn_LiteralCode(t *testing.T) {
	cls := &fakeClassifier{}
	syn := &fakeSynth{}
	run := &fakeRunner{}
	e := newTestEngine(t, cls, syn, run)

	res, err := e.RunTurn(context.Background(), &TurnRequest{
		SessionID: "s1",
		Code:      "```python\nimport os\nprint(os.getcwd())\n```",
	})
	if err != nil {
		t.Fatalf("RunTurn() error: %v", err)
	}

	// Classification and synthesis are skipped for literal code.
	if cls.calls != 0 || syn.calls != 0 {
		t.Errorf("classifier/synth calls = %d/%d, want 0/0", cls.calls, syn.calls)
	}
	if res.Code.Origin != api.OriginLiteral {
		t.Errorf("origin = %q, want literal", res.Code.Origin)
	}
	// Markdown fences are stripped before execution.
	if strings.Contains(run.codes[0], "```") {
		t.Errorf("fences not stripped: %q", run.codes[0])
	}
	if !strings.Contains(run.codes[0], "os.getcwd()") {
		t.Errorf("code = %q", run.codes[0])
	}
}

func TestRunTurn_LiteralCodeRejected(t *testing.T) {
	e := newTestEngine(t, &fakeClassifier{}, &fakeSynth{}, &fakeRunner{})

	_, err := e.RunTurn(context.Background(), &TurnRequest{Code: "x"})
	if api.KindOf(err) != api.ErrorKindValidation {
		t.Fatalf("kind = %v, want validation", api.KindOf(err))
	}
}

func TestRunTurn_ClassificationDisabled(t *testing.T) {
	cls := &fakeClassifier{}
	syn := &fakeSynth{}
	run := &fakeRunner{}
	e, err := New(cls, syn, run, fakeShaper{}, nil, Config{EnableClassification: false}, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := e.RunTurn(context.Background(), &TurnRequest{Input: "plot something"})
	if err != nil {
		t.Fatalf("RunTurn() error: %v", err)
	}

	if cls.calls != 0 {
		t.Errorf("classifier called %d times with classification disabled", cls.calls)
	}
	// The literal descriptor still carries the raw text for fuzzy matching.
	if res.Intent.UserRequest() != "plot something" {
		t.Errorf("user request = %q", res.Intent.UserRequest())
	}
	if res.Intent.TaskCategory != api.TaskOther {
		t.Errorf("category = %q, want other", res.Intent.TaskCategory)
	}
}

func TestRunTurn_DuplicateDetection(t *testing.T) {
	run := &fakeRunner{}
	e := newTestEngine(t, &fakeClassifier{}, &fakeSynth{}, run)
	ctx := context.Background()

	first, err := e.RunTurn(ctx, &TurnRequest{SessionID: "s1", Input: "compute pi"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Duplicate {
		t.Fatal("first turn flagged as duplicate")
	}

	// Identical synthesized code in the same session is not re-executed.
	second, err := e.RunTurn(ctx, &TurnRequest{SessionID: "s1", Input: "compute pi"})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Duplicate {
		t.Fatal("second identical turn not flagged as duplicate")
	}
	if second.Result != nil {
		t.Error("duplicate turn should not carry an execution result")
	}
	if len(run.codes) != 1 {
		t.Errorf("runner executed %d times, want 1", len(run.codes))
	}

	// A different session is unaffected.
	other, err := e.RunTurn(ctx, &TurnRequest{SessionID: "s2", Input: "compute pi"})
	if err != nil {
		t.Fatal(err)
	}
	if other.Duplicate {
		t.Error("different session flagged as duplicate")
	}
}

func TestRunTurn_GenerationExhausted(t *testing.T) {
	syn := &fakeSynth{err: api.NewGenerationExhaustedError([]string{"tier 1: no template"})}
	e := newTestEngine(t, &fakeClassifier{}, syn, &fakeRunner{})

	_, err := e.RunTurn(context.Background(), &TurnRequest{Input: "do something odd"})
	if api.KindOf(err) != api.ErrorKindGenerationExhausted {
		t.Fatalf("kind = %v, want generation_exhausted", api.KindOf(err))
	}
}

func TestRunTurn_FatalProvisioningTerminates(t *testing.T) {
	run := &fakeRunner{err: api.NewProvisioningFatalError("sandbox rejected credentials", errors.New("401"))}
	e := newTestEngine(t, &fakeClassifier{}, &fakeSynth{}, run)

	_, err := e.RunTurn(context.Background(), &TurnRequest{Input: "compute pi"})
	if api.KindOf(err) != api.ErrorKindProvisioningFatal {
		t.Fatalf("kind = %v, want provisioning_fatal", api.KindOf(err))
	}
}

func TestRunTurn_TransientFailureBecomesResult(t *testing.T) {
	run := &fakeRunner{err: api.NewProvisioningTransientError("sandbox unavailable", errors.New("dial tcp"))}
	e := newTestEngine(t, &fakeClassifier{}, &fakeSynth{}, run)

	res, err := e.RunTurn(context.Background(), &TurnRequest{Input: "compute pi"})
	if err != nil {
		t.Fatalf("transient failure should not terminate the turn: %v", err)
	}
	if res.Result.Succeeded {
		t.Error("result should be failed")
	}
	if !strings.Contains(res.Message, "sandbox unavailable") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRunTurn_FailedExecutionStillRendered(t *testing.T) {
	run := &fakeRunner{result: &api.ExecutionResult{
		Succeeded: false,
		Error:     "NameError: name 'x' is not defined",
	}}
	e := newTestEngine(t, &fakeClassifier{}, &fakeSynth{}, run)

	res, err := e.RunTurn(context.Background(), &TurnRequest{Input: "compute pi"})
	if err != nil {
		t.Fatalf("failed execution should not terminate the turn: %v", err)
	}
	if !strings.Contains(res.Message, "NameError") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRunTurn_PersistsRecord(t *testing.T) {
	store := memory.New(0)
	e, err := New(&fakeClassifier{}, &fakeSynth{}, &fakeRunner{}, fakeShaper{}, store, Config{EnableClassification: true}, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := e.RunTurn(context.Background(), &TurnRequest{SessionID: "s1", Input: "compute pi"})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := store.GetTurn(context.Background(), res.TurnID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if rec.SessionID != "s1" || rec.Input != "compute pi" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Origin != api.OriginLLMFreeform {
		t.Errorf("origin = %q", rec.Origin)
	}
	if !rec.Succeeded {
		t.Error("record should be marked succeeded")
	}
}

func TestRunTurn_ContextLoadedFromStore(t *testing.T) {
	store := memory.New(0)
	var gotConv *api.ConversationContext
	cls := &capturingClassifier{captured: &gotConv}

	e, err := New(cls, &fakeSynth{}, &fakeRunner{}, fakeShaper{}, store, Config{EnableClassification: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := e.RunTurn(ctx, &TurnRequest{SessionID: "s1", Input: "plot a sine wave"}); err != nil {
		t.Fatal(err)
	}

	// The second turn sees the first as conversation context.
	if _, err := e.RunTurn(ctx, &TurnRequest{SessionID: "s1", Input: "make it red please"}); err != nil {
		t.Fatal(err)
	}

	if gotConv == nil || len(gotConv.RecentMessages) == 0 {
		t.Fatal("no conversation context loaded from store")
	}
	if gotConv.RecentMessages[0].Content != "plot a sine wave" {
		t.Errorf("first context message = %q", gotConv.RecentMessages[0].Content)
	}
	if gotConv.LastCode == "" {
		t.Error("LastCode not populated from stored turn")
	}
}

// capturingClassifier records the conversation context it was given.
type capturingClassifier struct {
	captured **api.ConversationContext
}

func (c *capturingClassifier) Classify(_ context.Context, request string, conv *api.ConversationContext) *api.Intent {
	*c.captured = conv
	return &api.Intent{
		TaskCategory: api.TaskPlot,
		Confidence:   0.9,
		Parameters:   map[string]any{api.ParamUserRequest: request},
	}
}

func TestNew_NilDependencies(t *testing.T) {
	if _, err := New(nil, &fakeSynth{}, &fakeRunner{}, fakeShaper{}, nil, Config{}, nil); err == nil {
		t.Error("expected error for nil classifier")
	}
	if _, err := New(&fakeClassifier{}, nil, &fakeRunner{}, fakeShaper{}, nil, Config{}, nil); err == nil {
		t.Error("expected error for nil synthesizer")
	}
	if _, err := New(&fakeClassifier{}, &fakeSynth{}, nil, fakeShaper{}, nil, Config{}, nil); err == nil {
		t.Error("expected error for nil runner")
	}
}
