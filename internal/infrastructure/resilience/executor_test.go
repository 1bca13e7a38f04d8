package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	}
}

func alwaysRetry(error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	}, alwaysRetry)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, alwaysRetry)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteStopsAtMaxAttempts(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	wantErr := errors.New("still failing")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return wantErr
	}, alwaysRetry)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last attempt error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteDoesNotRetryNonRetryable(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("bad request")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestExecuteHonorsCancelledContext(t *testing.T) {
	exec := NewExecutor(fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := exec.Execute(ctx, "op", func(context.Context) error {
		calls++
		return nil
	}, alwaysRetry)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", calls)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	exec := NewExecutor(cfg)

	fail := func(context.Context) error { return errors.New("provider down") }
	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "op", fail, alwaysRetry)
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("callback should not run with an open breaker")
		return nil
	}, alwaysRetry)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit error, got %v", err)
	}
}

func TestBreakerIgnoresUnrecordedFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	exec := NewExecutor(cfg)

	noRecord := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	fail := func(context.Context) error { return errors.New("caller cancelled") }
	for i := 0; i < 10; i++ {
		_ = exec.Execute(context.Background(), "op", fail, noRecord)
	}

	ran := false
	_ = exec.Execute(context.Background(), "op", func(context.Context) error {
		ran = true
		return nil
	}, noRecord)
	if !ran {
		t.Fatalf("expected breaker to stay closed for unrecorded failures")
	}
}

func TestBreakersAreScopedPerOperation(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	exec := NewExecutor(cfg)

	fail := func(context.Context) error { return errors.New("provider down") }
	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "embeddings", fail, alwaysRetry)
	}

	ran := false
	if err := exec.Execute(context.Background(), "chat", func(context.Context) error {
		ran = true
		return nil
	}, alwaysRetry); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !ran {
		t.Fatalf("expected unrelated operation to run")
	}
}

func TestNilCallbackRejected(t *testing.T) {
	exec := NewExecutor(DefaultConfig())

	if err := exec.Execute(context.Background(), "op", nil, nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
}
