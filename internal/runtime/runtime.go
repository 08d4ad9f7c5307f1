// Package runtime contains one execution adapter per supported language.
// Every adapter enforces a hard external deadline, a byte ceiling on
// captured output, and a restricted set of capabilities; none of them trust
// the executed code to cooperate.
package runtime

import (
	"context"
	"time"
)

// Status classifies the outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
	StatusBlocked Status = "blocked"
)

// Default limits shared by the runtimes.
const (
	DefaultOutputLimit = 10 * 1024
	DefaultTimeout     = 5 * time.Second
	MaxTimeout         = 30 * time.Second
	// ExprTimeout is the tighter budget for expression-only evaluation.
	ExprTimeout = 1 * time.Second
)

// Result is the normalized outcome of executing a snippet. It is immutable
// once constructed; runtimes hand it to the engine, the engine to the caller.
type Result struct {
	Status      Status
	Stdout      string
	ErrorDetail string
	// Line is the 1-based source line of the fault, 0 when unknown.
	Line int
	// Duration is wall-clock time spent inside the runtime, excluding any
	// queueing for a sandbox.
	Duration  time.Duration
	Language  string
	Truncated bool
}

// Runtime executes source in one language under the given limits.
type Runtime interface {
	// Language returns the canonical language name this runtime handles.
	Language() string

	// Execute runs source with a hard deadline of timeout. bindings are
	// exposed to the snippet as read-only input values. Execute always
	// returns a Result; failures of the executed code are statuses, not
	// errors. The error return is reserved for infrastructure faults
	// (sandbox unavailable, pool closed).
	Execute(ctx context.Context, source string, timeout time.Duration, bindings map[string]any) (Result, error)
}

// clampTimeout applies the default and the hard ceiling.
func clampTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}
