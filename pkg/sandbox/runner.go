package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/debug"
)

// Back-off delays between provisioning attempts, by failure class.
const (
	timeoutBackoff      = 2 * time.Second
	connectivityBackoff = 3 * time.Second
)

// teardownTimeout bounds the best-effort instance teardown.
const teardownTimeout = 5 * time.Second

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// ExecutionTimeout is the wall-clock limit per execution.
	ExecutionTimeout time.Duration

	// ProvisionTimeout bounds each provisioning attempt.
	ProvisionTimeout time.Duration

	// MaxRetries is the number of provisioning attempts. Minimum 1.
	MaxRetries int

	// MaxOutputLength caps the normalized output in runes.
	MaxOutputLength int

	// InjectSetupCode prepends the environment preamble to every script.
	InjectSetupCode bool

	// AutoRequirements detects packages from import statements when the
	// caller supplies none.
	AutoRequirements bool
}

// Runner owns the execution lifecycle: provision with classified retries,
// execute under a deadline, normalize, and tear down.
type Runner struct {
	service Service
	cfg     RunnerConfig
	logger  *slog.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner over the given provisioning service.
func NewRunner(service Service, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 60 * time.Second
	}
	if cfg.ProvisionTimeout <= 0 {
		cfg.ProvisionTimeout = 60 * time.Second
	}
	return &Runner{
		service: service,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Run executes code in a fresh sandbox and returns the normalized result.
//
// Provisioning failures are retried per their class; execution failures
// are terminal and become failed results rather than errors. An error
// return means the turn-level handling decides what the user sees.
func (r *Runner) Run(ctx context.Context, code string, requirements []string) (*api.ExecutionResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, api.NewValidationError("code must not be empty")
	}

	if r.cfg.AutoRequirements && len(requirements) == 0 {
		requirements = DetectRequirements(code)
		if len(requirements) > 0 {
			r.logger.Info("auto-detected requirements", "packages", requirements)
		}
	}
	if r.cfg.InjectSetupCode {
		code = SetupPreamble + code
	}

	inst, err := r.provision(ctx)
	if err != nil {
		return nil, err
	}
	defer r.teardown(inst)

	r.logger.Info("executing code",
		"timeout", r.cfg.ExecutionTimeout,
		"requirements", len(requirements),
	)
	debug.Trace("sandbox", "executing", "code", debug.Truncate(code, 2000))

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.ExecutionTimeout)
	defer cancel()

	trace, err := inst.Run(execCtx, &ExecRequest{
		Code:         code,
		Timeout:      r.cfg.ExecutionTimeout,
		Requirements: requirements,
	})
	if err != nil {
		// An execution timeout is terminal: the sandbox state is unknown
		// and a retry would double-spend the work.
		if execCtx.Err() == context.DeadlineExceeded {
			r.logger.Warn("execution timed out", "limit", r.cfg.ExecutionTimeout)
			return &api.ExecutionResult{
				Succeeded: false,
				Error:     fmt.Sprintf("code execution timed out (limit %s)", r.cfg.ExecutionTimeout),
			}, nil
		}
		r.logger.Error("execution failed", "error", err.Error())
		return &api.ExecutionResult{
			Succeeded: false,
			Error:     fmt.Sprintf("runtime error: %v", err),
		}, nil
	}

	result := Normalize(trace, r.cfg.MaxOutputLength)
	r.logger.Info("execution complete",
		"succeeded", result.Succeeded,
		"output_len", len(result.Output),
		"images", len(result.Images),
		"duration", trace.Duration,
	)
	return result, nil
}

// provisionFailureClass classifies a provisioning error for retry
// handling.
type provisionFailureClass int

const (
	failureTimeout provisionFailureClass = iota
	failureConnectivity
	failureFatal
)

func classifyProvisionError(err error) provisionFailureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failureTimeout
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "connect") ||
		strings.Contains(msg, "no such host") {
		return failureConnectivity
	}
	return failureFatal
}

func (r *Runner) provision(ctx context.Context) (Instance, error) {
	var lastErr error
	var lastClass provisionFailureClass

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		r.logger.Info("provisioning sandbox",
			"attempt", attempt,
			"max_attempts", r.cfg.MaxRetries,
			"mode", r.service.Name(),
		)

		provCtx, cancel := context.WithTimeout(ctx, r.cfg.ProvisionTimeout)
		inst, err := r.service.Provision(provCtx)
		cancel()
		if err == nil {
			r.logger.Info("sandbox provisioned")
			return inst, nil
		}

		lastErr = err
		lastClass = classifyProvisionError(err)

		switch lastClass {
		case failureTimeout:
			r.logger.Warn("provisioning timed out", "attempt", attempt)
			if attempt < r.cfg.MaxRetries {
				if serr := r.sleep(ctx, timeoutBackoff); serr != nil {
					return nil, api.NewProvisioningTransientError("provisioning canceled", serr)
				}
			}
		case failureConnectivity:
			r.logger.Warn("sandbox connection failed", "attempt", attempt, "error", err.Error())
			if attempt < r.cfg.MaxRetries {
				if serr := r.sleep(ctx, connectivityBackoff); serr != nil {
					return nil, api.NewProvisioningTransientError("provisioning canceled", serr)
				}
			}
		default:
			// Anything else (rejected credentials, bad template) will not
			// heal on retry.
			r.logger.Error("provisioning failed", "error", err.Error())
			return nil, api.NewProvisioningFatalError("sandbox provisioning failed", err)
		}
	}

	perr := api.NewProvisioningTransientError(
		fmt.Sprintf("sandbox provisioning failed after %d attempts", r.cfg.MaxRetries),
		lastErr,
	)
	if lastClass == failureConnectivity {
		perr.Hints = []string{
			"the sandbox endpoint may be unreachable",
			"check network connectivity and proxy settings",
			"verify the sandbox credentials",
		}
	}
	return nil, perr
}

// teardown releases the instance with a bounded, shielded context so a
// canceled request cannot leak a sandbox.
func (r *Runner) teardown(inst Instance) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if err := inst.Close(ctx); err != nil {
		r.logger.Warn("sandbox teardown failed", "error", err.Error())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
