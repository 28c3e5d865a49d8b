package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

type codedError struct {
	code string
}

func (e *codedError) Error() string     { return "aws error: " + e.code }
func (e *codedError) ErrorCode() string { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "context cancelled", err: context.Canceled, want: model.ErrKindCancelled},
		{name: "context deadline", err: context.DeadlineExceeded, want: model.ErrKindTimeout},
		{name: "already classified passes through", err: &model.ClassifiedError{Kind: model.ErrKindAuth, Err: errors.New("x")}, want: model.ErrKindAuth},
		{name: "NoSuchEntity code", err: &codedError{code: "NoSuchEntity"}, want: model.ErrKindNotFound},
		{name: "not found message fallback", err: errors.New("resource does not exist"), want: model.ErrKindNotFound},
		{name: "AccessDenied code", err: &codedError{code: "AccessDenied"}, want: model.ErrKindAuth},
		{name: "DependencyViolation code", err: &codedError{code: "DependencyViolation"}, want: model.ErrKindDependencyViolation},
		{name: "Throttling code", err: &codedError{code: "Throttling"}, want: model.ErrKindThrottled},
		{name: "throttle message fallback", err: errors.New("Rate exceeded"), want: model.ErrKindThrottled},
		{name: "InternalFailure code", err: &codedError{code: "InternalFailure"}, want: model.ErrKindTransientApi},
		{name: "unknown code defaults transient", err: &codedError{code: "SomeWeirdCode"}, want: model.ErrKindTransientApi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		kind        model.ErrKind
		attempts    int
		maxAttempts int
		want        Decision
	}{
		{name: "not found always skips", kind: model.ErrKindNotFound, attempts: 1, maxAttempts: 5, want: DecisionSkip},
		{name: "throttled retries while attempts remain", kind: model.ErrKindThrottled, attempts: 2, maxAttempts: 5, want: DecisionRetry},
		{name: "throttled fails once exhausted", kind: model.ErrKindThrottled, attempts: 5, maxAttempts: 5, want: DecisionFail},
		{name: "auth error always fails", kind: model.ErrKindAuth, attempts: 1, maxAttempts: 5, want: DecisionFail},
		{name: "dependency violation retries", kind: model.ErrKindDependencyViolation, attempts: 1, maxAttempts: 5, want: DecisionRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.kind, tt.attempts, tt.maxAttempts); got != tt.want {
				t.Errorf("Decide(%v, %d, %d) = %q, want %q", tt.kind, tt.attempts, tt.maxAttempts, got, tt.want)
			}
		})
	}
}

func TestRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	out, attempts, err := Retry(context.Background(), "task-1", nil, 3, func(attempt int) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" || attempts != 1 || calls != 1 {
		t.Fatalf("out=%q attempts=%d calls=%d", out, attempts, calls)
	}
}

func TestRetrySkipsOnNotFound(t *testing.T) {
	calls := 0
	_, attempts, err := Retry(context.Background(), "task-1", nil, 3, func(attempt int) (string, error) {
		calls++
		return "", &codedError{code: "InvalidInstanceID.NotFound"}
	})
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	var ce *model.ClassifiedError
	if !errors.As(err, &ce) || ce.Kind != model.ErrKindNotFound {
		t.Fatalf("expected ErrKindNotFound, got %v", err)
	}
}

func TestRetryFailsImmediatelyOnNonRetryable(t *testing.T) {
	calls := 0
	_, attempts, err := Retry(context.Background(), "task-1", nil, 3, func(attempt int) (string, error) {
		calls++
		return "", &codedError{code: "AccessDenied"}
	})
	if calls != 1 {
		t.Fatalf("expected exactly one call for a non-retryable error, got %d", calls)
	}
	var ce *model.ClassifiedError
	if !errors.As(err, &ce) || ce.Kind != model.ErrKindAuth {
		t.Fatalf("expected ErrKindAuth, got %v", err)
	}
	_ = attempts
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := Retry(ctx, "task-1", nil, 3, func(attempt int) (string, error) {
		calls++
		cancel()
		return "", &codedError{code: "Throttling"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call before cancellation, got %d", calls)
	}
}
