package completion

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scriptable Client for tests. Responses are returned in order;
// when the script is exhausted the last entry repeats.
type Mock struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     []*Request
	models    []ModelInfo
	modelsErr error
}

// MockResponse is one scripted outcome.
type MockResponse struct {
	Text string
	Err  error
}

var _ Client = (*Mock)(nil)

// NewMock creates a Mock that replies with the given texts in order.
func NewMock(texts ...string) *Mock {
	m := &Mock{}
	for _, t := range texts {
		m.responses = append(m.responses, MockResponse{Text: t})
	}
	return m
}

// Script replaces the response sequence.
func (m *Mock) Script(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
}

// SetModels sets the ListModels reply.
func (m *Mock) SetModels(models []ModelInfo, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = models
	m.modelsErr = err
}

// Calls returns the requests seen so far.
func (m *Mock) Calls() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) Generate(ctx context.Context, req *Request) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock: no scripted responses")
	}

	idx := len(m.calls) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	resp := m.responses[idx]
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Result{Text: resp.Text, Model: req.Model}, nil
}

func (m *Mock) ListModels(ctx context.Context) ([]ModelInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.modelsErr != nil {
		return nil, m.modelsErr
	}
	return m.models, nil
}

func (m *Mock) Close() error {
	return nil
}
