package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// HTTPConfig configures the static-URL sandbox service.
type HTTPConfig struct {
	// URL is the sandbox server base URL.
	URL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string
}

// httpService provisions against a fixed sandbox server URL. Provisioning
// is a health probe; the server itself is long-lived and shared.
type httpService struct {
	cfg    HTTPConfig
	client *http.Client
}

var _ Service = (*httpService)(nil)

// NewHTTPService creates a Service backed by a static sandbox server.
func NewHTTPService(cfg HTTPConfig) (Service, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sandbox: URL is required")
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &httpService{
		cfg: cfg,
		client: &http.Client{
			Timeout: 120 * time.Second, // Execution timeout is enforced by the sandbox.
		},
	}, nil
}

func (s *httpService) Name() string {
	return "http"
}

// Provision probes the sandbox server health endpoint. A refused or
// timed-out probe surfaces as-is so the runner can classify it.
func (s *httpService) Provision(ctx context.Context) (Instance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox connection failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sandbox unhealthy (HTTP %d)", resp.StatusCode)
	}

	return &httpInstance{url: s.cfg.URL, apiKey: s.cfg.APIKey, client: s.client}, nil
}

// NewHTTPInstance returns an Instance bound to a known-ready sandbox URL
// without probing it. Used by provisioners that establish readiness
// through other means.
func NewHTTPInstance(url, apiKey string) Instance {
	return &httpInstance{
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// httpInstance executes against the shared sandbox server.
type httpInstance struct {
	url    string
	apiKey string
	client *http.Client
}

var _ Instance = (*httpInstance)(nil)

// executeRequest is the request body for POST /execute.
type executeRequest struct {
	Code           string            `json:"code"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Requirements   []string          `json:"requirements,omitempty"`
	Files          map[string]string `json:"files,omitempty"`
}

// executeResponse is the response body for POST /execute. Stdout and
// stderr arrive as a string or a list of lines depending on the server
// version; notebook-style servers additionally report rendered
// artifacts under "results".
type executeResponse struct {
	Status          string            `json:"status"`
	Stdout          TextBlock         `json:"stdout"`
	Stderr          TextBlock         `json:"stderr"`
	ExitCode        int               `json:"exit_code"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	FilesProduced   map[string]string `json:"files_produced,omitempty"`
	Results         []TraceResult     `json:"results,omitempty"`
}

func (i *httpInstance) Run(ctx context.Context, req *ExecRequest) (*RawTrace, error) {
	body, err := json.Marshal(executeRequest{
		Code:           req.Code,
		TimeoutSeconds: int(req.Timeout / time.Second),
		Requirements:   req.Requirements,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+i.apiKey)
	}

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sandbox request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("sandbox at capacity (HTTP 429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sandbox returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var execResp executeResponse
	if err := json.Unmarshal(respBody, &execResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return traceFromResponse(&execResp), nil
}

// Close is a no-op: the static sandbox server outlives executions.
func (i *httpInstance) Close(ctx context.Context) error {
	return nil
}

// imageExtensions are the produced-file extensions delivered as images.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
}

// traceFromResponse converts the wire response into a RawTrace. Produced
// image files join the result list still base64-encoded; the normalizer
// decodes them and drops any that do not decode. Non-image files are
// noted on stdout.
func traceFromResponse(resp *executeResponse) *RawTrace {
	trace := &RawTrace{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		Results:  resp.Results,
		Duration: time.Duration(resp.ExecutionTimeMs) * time.Millisecond,
	}

	var extras []string
	for name, b64 := range resp.FilesProduced {
		ext := strings.ToLower(filepath.Ext(name))
		if imageExtensions[ext] {
			trace.Results = append(trace.Results, TraceResult{PNGBase64: b64})
		} else {
			extras = append(extras, fmt.Sprintf("[file: %s]", name))
		}
	}
	if len(extras) > 0 {
		trace.Stdout.Lines = append(trace.Stdout.Lines, extras...)
	}

	return trace
}
