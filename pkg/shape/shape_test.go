package shape

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/completion"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		result api.ExecutionResult
		want   ResultKind
	}{
		{
			"error dominates images and output",
			api.ExecutionResult{Succeeded: false, Error: "boom", Output: "partial", Images: [][]byte{{1}}},
			KindError,
		},
		{
			"images beat output",
			api.ExecutionResult{Succeeded: true, Output: "log", Images: [][]byte{{1}}},
			KindSuccessWithImage,
		},
		{
			"output",
			api.ExecutionResult{Succeeded: true, Output: "result: 42"},
			KindSuccessWithOutput,
		},
		{
			"whitespace output is empty",
			api.ExecutionResult{Succeeded: true, Output: "   \n  "},
			KindEmpty,
		},
		{
			"empty",
			api.ExecutionResult{Succeeded: true},
			KindEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(&tt.result); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_TextResult(t *testing.T) {
	s := New(Options{MaxMessageLength: 1000})
	result := &api.ExecutionResult{Succeeded: true, Output: "result: 42"}

	msg := s.Render(context.Background(), "compute", "print(42)", result)

	if !strings.Contains(msg, "Execution complete") {
		t.Errorf("missing success banner: %q", msg)
	}
	if !strings.Contains(msg, "result: 42") {
		t.Errorf("missing output: %q", msg)
	}
}

func TestRender_TextResultTruncated(t *testing.T) {
	s := New(Options{MaxMessageLength: 20})
	result := &api.ExecutionResult{Succeeded: true, Output: strings.Repeat("x", 100)}

	msg := s.Render(context.Background(), "r", "c", result)

	if !strings.Contains(msg, "truncated") {
		t.Errorf("missing truncation note: %q", msg)
	}
	if strings.Contains(msg, strings.Repeat("x", 100)) {
		t.Error("full output leaked into truncated message")
	}
}

func TestRender_ImageResult(t *testing.T) {
	s := New(Options{})
	result := &api.ExecutionResult{
		Succeeded: true,
		Output:    "saved plot",
		Images:    [][]byte{{0x89}, {0x89}},
	}

	msg := s.Render(context.Background(), "plot", "code", result)

	if !strings.Contains(msg, "2 images generated") {
		t.Errorf("missing image count: %q", msg)
	}
	// Image bytes never appear in the rendered text.
	if strings.Contains(msg, "\x89") {
		t.Error("image bytes leaked into message")
	}
}

func TestRender_ErrorResultWithHints(t *testing.T) {
	s := New(Options{})
	result := &api.ExecutionResult{
		Succeeded: false,
		Error:     "ModuleNotFoundError: No module named 'foo'",
	}

	msg := s.Render(context.Background(), "r", "import foo", result)

	if !strings.Contains(msg, "Execution failed") {
		t.Errorf("missing failure banner: %q", msg)
	}
	if !strings.Contains(msg, "ModuleNotFoundError") {
		t.Errorf("missing error text: %q", msg)
	}
	if !strings.Contains(msg, "Module not found") {
		t.Errorf("missing remediation hint: %q", msg)
	}
}

func TestRender_EmptyResult(t *testing.T) {
	s := New(Options{})
	msg := s.Render(context.Background(), "r", "c", &api.ExecutionResult{Succeeded: true})
	if !strings.Contains(msg, "no output") {
		t.Errorf("msg = %q", msg)
	}
}

func TestRender_SummaryAdded(t *testing.T) {
	mock := completion.NewMock("The sine wave was plotted over one period.")
	s := New(Options{EnableSummary: true, Client: mock, Model: "m"})

	result := &api.ExecutionResult{Succeeded: true, Output: "done"}
	msg := s.Render(context.Background(), "plot a sine wave", "code", result)

	if !strings.HasPrefix(msg, "Summary\n") {
		t.Errorf("summary not prepended: %q", msg)
	}
	if !strings.Contains(msg, "Execution complete") {
		t.Errorf("base rendering lost: %q", msg)
	}
}

func TestRender_SummaryPromptTruncatesOnRunes(t *testing.T) {
	mock := completion.NewMock("summary")
	s := New(Options{EnableSummary: true, Client: mock, Model: "m"})

	// Long multi-byte output must be cut at a rune boundary before it is
	// embedded in the summary prompt.
	result := &api.ExecutionResult{Succeeded: true, Output: strings.Repeat("日", 600)}
	s.Render(context.Background(), "r", "c", result)

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if !utf8.ValidString(calls[0].Prompt) {
		t.Error("summary prompt contains broken UTF-8")
	}
	if want := strings.Repeat("日", 500); !strings.Contains(calls[0].Prompt, want) {
		t.Error("summary prompt missing the truncated output")
	}
	if strings.Contains(calls[0].Prompt, strings.Repeat("日", 501)) {
		t.Error("summary prompt output not capped at 500 runes")
	}
}

func TestRender_SummarySkippedOnError(t *testing.T) {
	mock := completion.NewMock("should never be called")
	s := New(Options{EnableSummary: true, Client: mock, Model: "m"})

	result := &api.ExecutionResult{Succeeded: false, Error: "boom"}
	msg := s.Render(context.Background(), "r", "c", result)

	if strings.Contains(msg, "Summary") {
		t.Error("error results must not be summarized")
	}
	if len(mock.Calls()) != 0 {
		t.Error("completion service called for an error result")
	}
}

func TestRender_SummaryFailureDegradesSilently(t *testing.T) {
	mock := completion.NewMock()
	mock.Script(completion.MockResponse{Err: errors.New("backend down")})
	s := New(Options{EnableSummary: true, Client: mock, Model: "m"})

	result := &api.ExecutionResult{Succeeded: true, Output: "done"}
	msg := s.Render(context.Background(), "r", "c", result)

	if strings.Contains(msg, "Summary") {
		t.Errorf("failed summary leaked: %q", msg)
	}
	if !strings.Contains(msg, "Execution complete") {
		t.Errorf("base rendering lost: %q", msg)
	}
}

func TestRender_Idempotent(t *testing.T) {
	s := New(Options{})
	result := &api.ExecutionResult{Succeeded: true, Output: "stable"}

	first := s.Render(context.Background(), "r", "c", result)
	second := s.Render(context.Background(), "r", "c", result)
	if first != second {
		t.Error("rendering the same result twice produced different messages")
	}
}

func TestRenderMinimal(t *testing.T) {
	if msg := RenderMinimal(&api.ExecutionResult{Succeeded: false, Error: "x"}); !strings.Contains(msg, "failed") {
		t.Errorf("msg = %q", msg)
	}
	if msg := RenderMinimal(&api.ExecutionResult{Succeeded: true, Images: [][]byte{{1}}}); !strings.Contains(msg, "1 image") {
		t.Errorf("msg = %q", msg)
	}
	if msg := RenderMinimal(&api.ExecutionResult{Succeeded: true}); !strings.Contains(msg, "no output") {
		t.Errorf("msg = %q", msg)
	}
}

func TestAnalyzeError(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		hintSub string
	}{
		{"module", "ModuleNotFoundError: No module named 'x'", "Module not found"},
		{"syntax", "SyntaxError: invalid syntax", "Syntax error"},
		{"name", "NameError: name 'x' is not defined", "not defined"},
		{"type", "TypeError: unsupported operand", "Type error"},
		{"value", "ValueError: could not convert", "Value error"},
		{"index", "IndexError: list index out of range", "Index error"},
		{"key", "KeyError: 'missing'", "Key error"},
		{"file", "FileNotFoundError: [Errno 2]", "File not found"},
		{"timeout", "code execution timed out (limit 1m0s)", "time limit"},
		{"generic", "something completely different", "Check the code logic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := AnalyzeError(tt.errMsg)
			if len(hints) == 0 {
				t.Fatal("no hints returned")
			}
			found := false
			for _, h := range hints {
				if strings.Contains(h, tt.hintSub) {
					found = true
				}
			}
			if !found {
				t.Errorf("hints %v missing %q", hints, tt.hintSub)
			}
		})
	}
}
