package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jkoenig/werkbank/pkg/api"
)

// fakeService scripts provisioning outcomes per attempt.
type fakeService struct {
	outcomes []error
	calls    int
	instance *fakeInstance
}

func (s *fakeService) Name() string { return "fake" }

func (s *fakeService) Provision(ctx context.Context) (Instance, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.outcomes) && s.outcomes[idx] != nil {
		return nil, s.outcomes[idx]
	}
	if s.instance == nil {
		s.instance = &fakeInstance{}
	}
	return s.instance, nil
}

type fakeInstance struct {
	trace  *RawTrace
	runErr error
	block  bool
	closed int
	gotReq *ExecRequest
}

func (i *fakeInstance) Run(ctx context.Context, req *ExecRequest) (*RawTrace, error) {
	i.gotReq = req
	if i.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if i.runErr != nil {
		return nil, i.runErr
	}
	if i.trace == nil {
		return &RawTrace{Stdout: Text("ok")}, nil
	}
	return i.trace, nil
}

func (i *fakeInstance) Close(ctx context.Context) error {
	i.closed++
	return nil
}

func newTestRunner(svc Service, cfg RunnerConfig) (*Runner, *[]time.Duration) {
	r := NewRunner(svc, cfg, nil)
	var sleeps []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return r, &sleeps
}

func TestRun_Success(t *testing.T) {
	svc := &fakeService{}
	r, _ := newTestRunner(svc, RunnerConfig{MaxRetries: 2})

	result, err := r.Run(context.Background(), "print('hi')", nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.Succeeded || result.Output != "ok" {
		t.Errorf("result = %+v", result)
	}
	if svc.instance.closed != 1 {
		t.Errorf("instance closed %d times, want 1", svc.instance.closed)
	}
}

func TestRun_EmptyCode(t *testing.T) {
	r, _ := newTestRunner(&fakeService{}, RunnerConfig{})

	_, err := r.Run(context.Background(), "   \n  ", nil)
	if api.KindOf(err) != api.ErrorKindValidation {
		t.Errorf("kind = %q, want validation", api.KindOf(err))
	}
}

func TestRun_ProvisionTimeoutRetriesWithBackoff(t *testing.T) {
	svc := &fakeService{outcomes: []error{context.DeadlineExceeded, nil}}
	r, sleeps := newTestRunner(svc, RunnerConfig{MaxRetries: 2})

	result, err := r.Run(context.Background(), "print(1)", nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.Succeeded {
		t.Errorf("result = %+v", result)
	}
	if svc.calls != 2 {
		t.Errorf("provision calls = %d, want 2", svc.calls)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != timeoutBackoff {
		t.Errorf("sleeps = %v, want one %s back-off", *sleeps, timeoutBackoff)
	}
}

func TestRun_ConnectivityFailureRetriesWithLongerBackoff(t *testing.T) {
	svc := &fakeService{outcomes: []error{errors.New("sandbox connection failed: dial tcp: connection refused"), nil}}
	r, sleeps := newTestRunner(svc, RunnerConfig{MaxRetries: 2})

	if _, err := r.Run(context.Background(), "print(1)", nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != connectivityBackoff {
		t.Errorf("sleeps = %v, want one %s back-off", *sleeps, connectivityBackoff)
	}
}

func TestRun_FatalProvisionErrorDoesNotRetry(t *testing.T) {
	svc := &fakeService{outcomes: []error{errors.New("sandbox unhealthy (HTTP 401)"), nil}}
	r, sleeps := newTestRunner(svc, RunnerConfig{MaxRetries: 3})

	_, err := r.Run(context.Background(), "print(1)", nil)
	if api.KindOf(err) != api.ErrorKindProvisioningFatal {
		t.Errorf("kind = %q, want provisioning_fatal", api.KindOf(err))
	}
	if svc.calls != 1 {
		t.Errorf("provision calls = %d, want 1 (no retry)", svc.calls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", *sleeps)
	}
}

func TestRun_RetriesExhausted(t *testing.T) {
	connErr := errors.New("connection refused")
	svc := &fakeService{outcomes: []error{connErr, connErr}}
	r, _ := newTestRunner(svc, RunnerConfig{MaxRetries: 2})

	_, err := r.Run(context.Background(), "print(1)", nil)
	if api.KindOf(err) != api.ErrorKindProvisioningTransient {
		t.Errorf("kind = %q, want provisioning_transient", api.KindOf(err))
	}
	if svc.calls != 2 {
		t.Errorf("provision calls = %d, want 2", svc.calls)
	}

	var perr *api.PipelineError
	if !errors.As(err, &perr) {
		t.Fatal("expected *api.PipelineError")
	}
	if len(perr.Hints) == 0 {
		t.Error("connectivity exhaustion should carry remediation hints")
	}
}

func TestRun_ExecutionTimeoutIsTerminalResult(t *testing.T) {
	svc := &fakeService{instance: &fakeInstance{block: true}}
	r, _ := newTestRunner(svc, RunnerConfig{
		MaxRetries:       2,
		ExecutionTimeout: 50 * time.Millisecond,
	})

	result, err := r.Run(context.Background(), "while True: pass", nil)
	if err != nil {
		t.Fatalf("Run() error: %v, timeout must become a result", err)
	}
	if result.Succeeded {
		t.Error("timed-out execution reported success")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("error = %q", result.Error)
	}
	// No re-provision after the timeout.
	if svc.calls != 1 {
		t.Errorf("provision calls = %d, want 1", svc.calls)
	}
	if svc.instance.closed != 1 {
		t.Errorf("instance closed %d times, want 1 (teardown still runs)", svc.instance.closed)
	}
}

func TestRun_RuntimeErrorBecomesFailedResult(t *testing.T) {
	svc := &fakeService{instance: &fakeInstance{runErr: fmt.Errorf("sandbox at capacity (HTTP 429)")}}
	r, _ := newTestRunner(svc, RunnerConfig{MaxRetries: 2})

	result, err := r.Run(context.Background(), "print(1)", nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Succeeded {
		t.Error("failed execution reported success")
	}
	if !strings.Contains(result.Error, "runtime error") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestRun_AutoRequirements(t *testing.T) {
	svc := &fakeService{instance: &fakeInstance{}}
	r, _ := newTestRunner(svc, RunnerConfig{MaxRetries: 1, AutoRequirements: true})

	code := "import numpy as np\nimport requests\nprint(np.pi)"
	if _, err := r.Run(context.Background(), code, nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	got := svc.instance.gotReq.Requirements
	want := []string{"numpy", "requests"}
	if len(got) != len(want) {
		t.Fatalf("requirements = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("requirements = %v, want %v", got, want)
		}
	}
}

func TestRun_ExplicitRequirementsWin(t *testing.T) {
	svc := &fakeService{instance: &fakeInstance{}}
	r, _ := newTestRunner(svc, RunnerConfig{MaxRetries: 1, AutoRequirements: true})

	if _, err := r.Run(context.Background(), "import numpy", []string{"scipy"}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := svc.instance.gotReq.Requirements
	if len(got) != 1 || got[0] != "scipy" {
		t.Errorf("requirements = %v, want explicit [scipy]", got)
	}
}

func TestRun_SetupPreambleInjected(t *testing.T) {
	svc := &fakeService{instance: &fakeInstance{}}
	r, _ := newTestRunner(svc, RunnerConfig{MaxRetries: 1, InjectSetupCode: true})

	if _, err := r.Run(context.Background(), "print(1)", nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	code := svc.instance.gotReq.Code
	if !strings.HasPrefix(code, SetupPreamble) {
		t.Error("setup preamble not prepended")
	}
	if !strings.HasSuffix(code, "print(1)") {
		t.Errorf("user code lost: %q", code)
	}
}

func TestClassifyProvisionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want provisionFailureClass
	}{
		{"deadline", context.DeadlineExceeded, failureTimeout},
		{"wrapped deadline", fmt.Errorf("provision: %w", context.DeadlineExceeded), failureTimeout},
		{"connection refused", errors.New("dial tcp 10.0.0.1:8080: connection refused"), failureConnectivity},
		{"no such host", errors.New("dial tcp: lookup sandbox: no such host"), failureConnectivity},
		{"http 401", errors.New("sandbox unhealthy (HTTP 401)"), failureFatal},
		{"bad template", errors.New("create SandboxClaim: template not found"), failureFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyProvisionError(tt.err); got != tt.want {
				t.Errorf("classifyProvisionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
