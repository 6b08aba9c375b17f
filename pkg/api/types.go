package api

import (
	"sort"
	"time"
)

// ParamUserRequest is the reserved parameter key that always carries the
// raw user text through the pipeline.
const ParamUserRequest = "user_request"

// Task categories produced by the intent classifier.
const (
	TaskPlot         = "plot"
	TaskDataAnalysis = "data_analysis"
	TaskWeb          = "web"
	TaskFile         = "file"
	TaskMath         = "math"
	TaskOther        = "other"
)

// Intent is the structured interpretation of a free-text user request.
// It is produced once per turn by the classifier and immutable afterwards.
type Intent struct {
	// TaskCategory is one of the Task* constants. Never empty; the
	// classifier falls back to TaskOther.
	TaskCategory string `json:"task_category"`

	// SubCategory refines the category (e.g. "sine_wave", "statistics").
	// Empty when the classifier did not produce one.
	SubCategory string `json:"sub_category,omitempty"`

	// Parameters holds extracted request parameters. The raw user text is
	// always present under ParamUserRequest.
	Parameters map[string]any `json:"parameters"`

	// Confidence is the classifier's self-assessed confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// NeedsPriorContext is true when the request references earlier turns
	// ("it", "again", ...).
	NeedsPriorContext bool `json:"needs_prior_context"`

	// ContextReferences lists the referring words that triggered
	// NeedsPriorContext.
	ContextReferences []string `json:"context_references,omitempty"`
}

// UserRequest returns the raw user text carried in Parameters, or "".
func (in *Intent) UserRequest() string {
	if in == nil || in.Parameters == nil {
		return ""
	}
	s, _ := in.Parameters[ParamUserRequest].(string)
	return s
}

// ContextMessage is one entry of the bounded conversation window.
type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationContext is the caller-supplied view of the conversation.
// It is read-only to the pipeline and may be empty.
type ConversationContext struct {
	// RecentMessages is a bounded window, most recent last.
	RecentMessages []ContextMessage `json:"recent_messages,omitempty"`

	// LastResult is a summary of the previous execution, if any.
	LastResult *ExecutionResult `json:"last_result,omitempty"`

	// LastCode is the most recently executed code, if any.
	LastCode string `json:"last_code,omitempty"`

	// LastImages holds opaque references to previously delivered images.
	LastImages []string `json:"last_images,omitempty"`

	// Variables carries caller-defined values available to prompts.
	Variables map[string]any `json:"variables,omitempty"`
}

// ParameterSpec describes one template parameter.
type ParameterSpec struct {
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Template is a named, parameterized code skeleton with match metadata.
// Templates are loaded once at startup and never mutated.
type Template struct {
	Name          string                   `json:"name"`
	Description   string                   `json:"description"`
	TaskCategory  string                   `json:"task_category"`
	SubCategory   string                   `json:"sub_category"`
	MatchKeywords []string                 `json:"match_keywords"`
	Parameters    map[string]ParameterSpec `json:"parameters"`

	// CodeBody contains {name} placeholders for the parameters above.
	CodeBody string `json:"code_body"`

	// SuccessRate is the historically observed success rate in [0,1].
	SuccessRate float64 `json:"success_rate"`

	// EstimatedRuntime is the expected execution time.
	EstimatedRuntime time.Duration `json:"estimated_runtime"`

	// Examples holds example requests with their parameter sets.
	Examples []TemplateExample `json:"examples,omitempty"`
}

// TemplateExample pairs a sample request with the parameters it implies.
type TemplateExample struct {
	UserRequest string         `json:"user_request"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// MissingRequired returns the names of required parameters absent from
// params, in declaration-independent sorted order. Empty means valid.
func (t *Template) MissingRequired(params map[string]any) []string {
	var missing []string
	for name, spec := range t.Parameters {
		if !spec.Required {
			continue
		}
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Origin identifies which synthesis tier produced a piece of code.
type Origin string

const (
	// OriginTemplateFilled means raw template substitution (tier 3).
	OriginTemplateFilled Origin = "template_filled"

	// OriginLLMFromTemplate means the completion service adapted a
	// template (tier 1).
	OriginLLMFromTemplate Origin = "llm_from_template"

	// OriginLLMFreeform means free-form completion-service generation
	// (tier 2).
	OriginLLMFreeform Origin = "llm_freeform"

	// OriginLiteral means the caller submitted the code verbatim and no
	// synthesis ran.
	OriginLiteral Origin = "literal"
)

// GeneratedCode is the output of the synthesizer, consumed once by the
// sandbox runner.
type GeneratedCode struct {
	Code             string        `json:"code"`
	Origin           Origin        `json:"origin"`
	TemplateName     string        `json:"template_name,omitempty"`
	Confidence       float64       `json:"confidence"`
	EstimatedRuntime time.Duration `json:"estimated_runtime"`
}

// ExecutionResult is the normalized outcome of one sandbox execution.
//
// Invariant: Succeeded == (Error == ""). The sandbox runner's normalizer
// is the only producer of this type.
type ExecutionResult struct {
	Succeeded bool `json:"succeeded"`

	// Output is the captured stdout text, already length-capped.
	Output string `json:"output"`

	// Error holds the captured error text; empty iff Succeeded.
	Error string `json:"error,omitempty"`

	// Images holds decoded image payloads. They are delivered through a
	// separate channel and never embedded in rendered text.
	Images [][]byte `json:"-"`
}

// TurnRecord is the persisted summary of one completed turn. Persistence
// is an optional side channel; the pipeline itself keeps no state.
type TurnRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Input        string    `json:"input"`
	TaskCategory string    `json:"task_category"`
	Code         string    `json:"code"`
	Origin       Origin    `json:"origin"`
	TemplateName string    `json:"template_name,omitempty"`
	Succeeded    bool      `json:"succeeded"`
	Output       string    `json:"output"`
	ErrorText    string    `json:"error_text,omitempty"`
	ImageCount   int       `json:"image_count"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}
