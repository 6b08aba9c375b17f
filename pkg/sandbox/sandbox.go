// Package sandbox executes generated Python code in isolated remote
// sandboxes. The Runner owns the full lifecycle of one execution:
// provisioning with classified retries, bounded execution, trace
// normalization, and best-effort teardown.
package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Service provisions sandbox instances. Implementations exist for a
// static sandbox server URL (development) and Kubernetes SandboxClaims.
type Service interface {
	// Name identifies the provisioning mode ("http", "kubernetes").
	Name() string

	// Provision acquires a ready-to-use sandbox instance. The caller must
	// Close the instance after use.
	Provision(ctx context.Context) (Instance, error)
}

// Instance is one provisioned sandbox.
type Instance interface {
	// Run executes code and returns the raw execution trace. The context
	// bounds the wall-clock execution time.
	Run(ctx context.Context, req *ExecRequest) (*RawTrace, error)

	// Close releases the sandbox. Idempotent.
	Close(ctx context.Context) error
}

// ExecRequest is one code execution.
type ExecRequest struct {
	// Code is the Python script to run.
	Code string

	// Timeout is the wall-clock execution limit enforced by the sandbox.
	Timeout time.Duration

	// Requirements lists Python packages to install before execution.
	Requirements []string
}

// RawTrace is the unshaped outcome of one sandbox execution. Stream text
// and rendered artifacts arrive in backend-specific shapes; the
// normalizer in this package is the only consumer and accepts all of
// them.
type RawTrace struct {
	Stdout   TextBlock
	Stderr   TextBlock
	ExitCode int

	// ErrorName, ErrorValue, and Traceback carry a structured interpreter
	// error when the sandbox reports one. Empty otherwise.
	ErrorName  string
	ErrorValue string
	Traceback  string

	// Results holds the rendered artifacts produced by the execution, one
	// entry per display payload.
	Results []TraceResult

	// Duration is the sandbox-reported execution time.
	Duration time.Duration
}

// TextBlock is captured stream text. Backends report it either as a
// single string or as a sequence of lines; both wire shapes unmarshal
// into Lines.
type TextBlock struct {
	Lines []string
}

// Text wraps a plain string in a TextBlock.
func Text(s string) TextBlock {
	if s == "" {
		return TextBlock{}
	}
	return TextBlock{Lines: []string{s}}
}

// String joins the lines with newlines.
func (b TextBlock) String() string {
	return strings.Join(b.Lines, "\n")
}

func (b TextBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *TextBlock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = Text(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("text block must be a string or a list of strings")
	}
	b.Lines = lines
	return nil
}

// TraceResult is one rendered artifact from the execution's result list.
// Backends encode image payloads differently: already-decoded bytes, a
// base64 PNG field, or a formats map keyed by MIME type or format name.
// Normally exactly one field is set.
type TraceResult struct {
	// PNGBytes is a decoded payload, set by in-process producers.
	PNGBytes []byte `json:"-"`

	// PNGBase64 is a base64-encoded PNG.
	PNGBase64 string `json:"png,omitempty"`

	// Formats maps a MIME type or format name to a base64 payload.
	Formats map[string]string `json:"formats,omitempty"`
}

// imageFormatKeys is the preference order for picking a payload out of a
// formats map.
var imageFormatKeys = []string{
	"image/png", "png", "image/jpeg", "jpeg", "image/gif", "gif",
}

// payload returns the decoded image bytes, or nil when the result
// carries no decodable payload.
func (r *TraceResult) payload() []byte {
	if len(r.PNGBytes) > 0 {
		return r.PNGBytes
	}
	if r.PNGBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(r.PNGBase64)
		if err != nil {
			return nil
		}
		return data
	}
	for _, key := range imageFormatKeys {
		b64, ok := r.Formats[key]
		if !ok {
			continue
		}
		if data, err := base64.StdEncoding.DecodeString(b64); err == nil {
			return data
		}
	}
	return nil
}
