package executor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// awsErrorCode is satisfied by smithy's generic API error type; declared
// narrowly here so the classifier does not need to import smithy directly.
type awsErrorCode interface {
	ErrorCode() string
}

// Classify maps an error returned by an AWS API call to the error taxonomy
// the specification names. Classification by AWS error code takes
// precedence; a handful of string-matched fallbacks cover SDK calls that
// wrap the code in a plain error (e.g. subprocess exit statuses).
func Classify(err error) model.ErrKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return model.ErrKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrKindTimeout
	}

	var ce *model.ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	code := ""
	var ec awsErrorCode
	if errors.As(err, &ec) {
		code = ec.ErrorCode()
	}
	msg := strings.ToLower(err.Error())

	switch {
	case code == "NoSuchEntity", code == "InvalidGroupId.NotFound", code == "NoSuchBucket",
		code == "InvalidInstanceID.NotFound", strings.Contains(msg, "not found"),
		strings.Contains(msg, "does not exist"):
		return model.ErrKindNotFound
	case code == "AccessDenied", code == "UnauthorizedAccess", code == "AuthFailure":
		return model.ErrKindAuth
	case code == "DependencyViolation":
		return model.ErrKindDependencyViolation
	case code == "ReplicationConfigurationNotFoundError":
		return model.ErrKindNotFound
	case code == "Throttling", code == "ThrottlingException", code == "RequestLimitExceeded",
		strings.Contains(msg, "rate exceeded"), strings.Contains(msg, "throttl"):
		return model.ErrKindThrottled
	case isTransient5xx(code):
		return model.ErrKindTransientApi
	default:
		return model.ErrKindTransientApi
	}
}

func isTransient5xx(code string) bool {
	switch code {
	case "InternalFailure", "ServiceUnavailable", "InternalError":
		return true
	default:
		return false
	}
}

// Decision is what the Executor should do next after an API call failed
// and was classified.
type Decision string

const (
	DecisionRetry Decision = "retry"
	DecisionFail  Decision = "fail"
	DecisionSkip  Decision = "skip" // already-absent resource: treated as success, not a retry
)

// Decide maps a classified error kind to the Executor's next action. A
// retry count and the task's accumulated attempts decide whether a
// retryable kind has been exhausted.
func Decide(kind model.ErrKind, attempts, maxAttempts int) Decision {
	switch kind {
	case model.ErrKindNotFound:
		return DecisionSkip
	case model.ErrKindThrottled, model.ErrKindTransientApi, model.ErrKindDependencyViolation:
		if attempts < maxAttempts {
			return DecisionRetry
		}
		return DecisionFail
	default:
		return DecisionFail
	}
}

// DefaultMaxAttempts is the retry bound for throttling/transient errors;
// the specification names the same bound for the security-group
// DependencyViolation intermediate-cleanup loop.
const DefaultMaxAttempts = 5

// NewBackOff builds the exponential back-off policy used for API retries:
// base delay scaled per classified kind, with jitter of at least 20% per
// the specification's retry policy, capped so a single task deadline is
// never blown entirely on sleeping.
func NewBackOff(kind model.ErrKind) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0.2
	switch kind {
	case model.ErrKindDependencyViolation:
		b.InitialInterval = 30 * time.Second
		b.Multiplier = 1.0 // fixed 30s back-off between DependencyViolation attempts
		b.MaxInterval = 30 * time.Second
	default:
		b.InitialInterval = 2 * time.Second
		b.Multiplier = 2.0
		b.MaxInterval = 60 * time.Second
	}
	return b
}

// Retry runs op under the retry/back-off policy the specification
// describes for the classified error kind of op's own failures, up to
// maxAttempts total tries. progress, if non-nil, receives a Note before
// each sleep. A kind classified as non-retryable (DecisionFail) or
// already-absent (DecisionSkip) returns immediately without consuming the
// back-off schedule.
func Retry[T any](ctx context.Context, taskID string, progress *ProgressWriter, maxAttempts int, op func(attempt int) (T, error)) (T, int, error) {
	var zero T
	var lastErr error
	var bo backoff.BackOff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := op(attempt)
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err
		kind := Classify(err)
		decision := Decide(kind, attempt, maxAttempts)
		if decision == DecisionSkip {
			return zero, attempt, &model.ClassifiedError{Kind: model.ErrKindNotFound, Err: err}
		}
		if decision != DecisionRetry || attempt == maxAttempts {
			return zero, attempt, &model.ClassifiedError{Kind: kind, Err: err}
		}
		if bo == nil {
			bo = NewBackOff(kind)
		}
		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return zero, attempt, &model.ClassifiedError{Kind: kind, Err: err}
		}
		if progress != nil {
			progress.Note(taskID, "retrying after "+string(kind)+": backing off "+delay.Round(time.Millisecond).String())
		}
		select {
		case <-ctx.Done():
			return zero, attempt, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, maxAttempts, lastErr
}
