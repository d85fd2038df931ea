package engine

import (
	"fmt"
	"strings"
	"time"
)

// TimeoutError means the provider attempt was killed at its deadline.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: exceeded timeout (%s)", e.Provider, e.Timeout)
}

// ExecutionError means the worker ended without delivering a result.
type ExecutionError struct {
	Provider string
	ExitCode int
	State    string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s: worker exited without payload (exit_code=%d", e.Provider, e.ExitCode)
	if e.State != "" {
		msg += " state=" + e.State
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Attempt records one provider outcome in chain order.
type Attempt struct {
	Provider string
	Skipped  bool
	Err      error
}

// AllProvidersFailedError aggregates every skipped or failed provider.
type AllProvidersFailedError struct {
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all providers failed: no provider configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		msg := "unknown error"
		if a.Err != nil {
			msg = a.Err.Error()
		}
		if !strings.HasPrefix(msg, a.Provider+":") {
			msg = a.Provider + ": " + msg
		}
		if a.Skipped {
			msg += " (skipped)"
		}
		parts = append(parts, msg)
	}
	return "all providers failed: " + strings.Join(parts, " | ")
}

// Unwrap exposes every attempt error to errors.Is / errors.As.
func (e *AllProvidersFailedError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			out = append(out, a.Err)
		}
	}
	return out
}
