package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an analysis-boundary failure. Only transient
// kinds are retried; a structurally wrong response will not get
// better on retry.
type ErrorKind string

const (
	KindTimeout         ErrorKind = "timeout"
	KindRateLimited     ErrorKind = "rate_limited"
	KindServerError     ErrorKind = "server_error"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// StageError is a classified failure from one enrichment stage.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *StageError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindServerError:
		return true
	default:
		return false
	}
}

// ErrCostCeiling is returned when the batch cost accumulator declines
// a new external call.
var ErrCostCeiling = errors.New("batch cost ceiling reached")

// ErrDisqualified marks a concept whose profile failed structural
// validation (more than 3 core functions). Not retried and never
// persisted.
var ErrDisqualified = errors.New("concept disqualified")

// classifyError buckets a raw provider error into an ErrorKind. The
// providers surface HTTP status codes in their error text, so string
// matching is the classification mechanism of last resort after the
// context sentinels.
func classifyError(stage string, err error) *StageError {
	kind := KindServerError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	default:
		msg := err.Error()
		switch {
		case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
			kind = KindRateLimited
		case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
			strings.Contains(msg, "503") || strings.Contains(msg, "504") ||
			strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "connection reset"):
			kind = KindServerError
		case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
			kind = KindTimeout
		default:
			kind = KindServerError
		}
	}

	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// invalidResponse wraps a parse or validation failure. Never retried.
func invalidResponse(stage string, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindInvalidResponse, Err: err}
}
