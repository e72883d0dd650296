package models

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindCapability ErrorKind = "capability_unavailable"
	ErrorKindTransient  ErrorKind = "transient"
	ErrorKindMalformed  ErrorKind = "malformed_input"
	ErrorKindEmpty      ErrorKind = "empty_result"
)

var (
	// ErrCapabilityUnavailable means a strategy's prerequisite is missing
	// (no credentials, no browser). The strategy is skipped, never retried.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrTransient covers timeouts and transport or navigation failures.
	ErrTransient = errors.New("transient failure")
	// ErrMalformedInput is fatal for the run.
	ErrMalformedInput = errors.New("malformed input")
	// ErrEmptyResult is informational: the strategy legitimately found nothing.
	ErrEmptyResult = errors.New("empty result")
)

// StrategyError tags an error with its kind and the strategy that produced it.
type StrategyError struct {
	Kind     ErrorKind
	Strategy StrategyKind
	Err      error
}

func (e *StrategyError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("%s strategy: %s: %v", e.Strategy, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

func (e *StrategyError) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case ErrorKindCapability:
		return ErrCapabilityUnavailable
	case ErrorKindMalformed:
		return ErrMalformedInput
	case ErrorKindEmpty:
		return ErrEmptyResult
	default:
		return ErrTransient
	}
}

func Capability(strategy StrategyKind, format string, args ...interface{}) error {
	return &StrategyError{Kind: ErrorKindCapability, Strategy: strategy, Err: fmt.Errorf(format, args...)}
}

func Transient(strategy StrategyKind, err error) error {
	return &StrategyError{Kind: ErrorKindTransient, Strategy: strategy, Err: err}
}

func Malformed(strategy StrategyKind, format string, args ...interface{}) error {
	return &StrategyError{Kind: ErrorKindMalformed, Strategy: strategy, Err: fmt.Errorf(format, args...)}
}

// KindOf classifies err. Deadline overruns and unrecognised failures are
// transient; a nil error is an empty result.
func KindOf(err error) ErrorKind {
	var se *StrategyError
	switch {
	case err == nil:
		return ErrorKindEmpty
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, ErrCapabilityUnavailable):
		return ErrorKindCapability
	case errors.Is(err, ErrMalformedInput):
		return ErrorKindMalformed
	case errors.Is(err, ErrEmptyResult):
		return ErrorKindEmpty
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTransient
	default:
		return ErrorKindTransient
	}
}
