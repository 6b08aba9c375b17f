package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/jkoenig/werkbank/pkg/api"
	"github.com/jkoenig/werkbank/pkg/engine"
)

func okRunner(res *engine.TurnResult) TurnRunner {
	return TurnRunnerFunc(func(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error) {
		return res, nil
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next TurnRunner) TurnRunner {
			return TurnRunnerFunc(func(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error) {
				order = append(order, name+":in")
				res, err := next.RunTurn(ctx, req)
				order = append(order, name+":out")
				return res, err
			})
		}
	}

	runner := Chain(tag("a"), tag("b"))(okRunner(&engine.TurnResult{TurnID: "turn_x"}))
	if _, err := runner.RunTurn(context.Background(), &engine.TurnRequest{}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	want := []string{"a:in", "b:in", "b:out", "a:out"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestRecovery_ConvertsPanic(t *testing.T) {
	panicking := TurnRunnerFunc(func(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error) {
		panic("nil pointer somewhere")
	})

	res, err := Recovery()(panicking).RunTurn(context.Background(), &engine.TurnRequest{})
	if res != nil {
		t.Errorf("expected nil result after panic, got %+v", res)
	}
	if err == nil {
		t.Fatal("expected error after panic")
	}
	if api.KindOf(err) != api.ErrorKindInternal {
		t.Errorf("kind = %q, want internal", api.KindOf(err))
	}
	if !strings.Contains(err.Error(), "nil pointer somewhere") {
		t.Errorf("error should carry the panic value, got %q", err.Error())
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	res, err := Recovery()(okRunner(&engine.TurnResult{TurnID: "turn_ok"})).RunTurn(context.Background(), &engine.TurnRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TurnID != "turn_ok" {
		t.Errorf("TurnID = %q", res.TurnID)
	}
}

func TestRequestID_Generates(t *testing.T) {
	var seen string
	inner := TurnRunnerFunc(func(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error) {
		seen = RequestIDFromContext(ctx)
		return &engine.TurnResult{}, nil
	})

	if _, err := RequestID()(inner).RunTurn(context.Background(), &engine.TurnRequest{}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !strings.HasPrefix(seen, "req_") || len(seen) != len("req_")+16 {
		t.Errorf("request ID = %q, want req_ prefix and 16 hex chars", seen)
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	var seen string
	inner := TurnRunnerFunc(func(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error) {
		seen = RequestIDFromContext(ctx)
		return &engine.TurnResult{}, nil
	})

	ctx := ContextWithRequestID(context.Background(), "req_client_supplied")
	if _, err := RequestID()(inner).RunTurn(ctx, &engine.TurnRequest{}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if seen != "req_client_supplied" {
		t.Errorf("request ID = %q, want client-supplied value preserved", seen)
	}
}

func TestLogging_SuccessAndFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	runner := Logging(logger)(okRunner(&engine.TurnResult{TurnID: "turn_abc", SessionID: "s1"}))
	if _, err := runner.RunTurn(context.Background(), &engine.TurnRequest{SessionID: "s1", Input: "plot"}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !strings.Contains(buf.String(), "turn completed") {
		t.Errorf("expected completion log, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "turn_abc") {
		t.Errorf("log should carry the turn ID, got %q", buf.String())
	}

	buf.Reset()
	failing := TurnRunnerFunc(func(ctx context.Context, req *engine.TurnRequest) (*engine.TurnResult, error) {
		return nil, errors.New("backend down")
	})
	if _, err := Logging(logger)(failing).RunTurn(context.Background(), &engine.TurnRequest{SessionID: "s1"}); err == nil {
		t.Fatal("expected error to propagate")
	}
	if !strings.Contains(buf.String(), "turn failed") {
		t.Errorf("expected failure log, got %q", buf.String())
	}
}
