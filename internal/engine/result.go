package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// FailureKind classifies why a probe or recognition attempt failed.
type FailureKind string

const (
	FailureUnavailable  FailureKind = "unavailable"
	FailureTimeout      FailureKind = "timeout"
	FailureTransport    FailureKind = "network-unreachable"
	FailureBackendError FailureKind = "backend-reported-error"
	FailureMalformed    FailureKind = "malformed-response"
	FailureCancelled    FailureKind = "cancelled"
)

// Failure is a typed backend failure. It is data, not a fault: adapters
// capture it inside the RawResult instead of raising it up the stack.
type Failure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

// Classify maps a transport-level error onto the failure taxonomy.
func Classify(err error) *Failure {
	switch {
	case errors.Is(err, context.Canceled):
		return &Failure{Kind: FailureCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: FailureTimeout, Err: err}
	}
	return &Failure{Kind: FailureTransport, Err: err}
}

// RawResult is the output of one backend invocation. Raw text is always
// present on success (possibly empty); the structured payload is the
// engine's own section array when it produced one, kept as raw JSON so the
// normalizer can decode it tolerantly.
type RawResult struct {
	EngineID       string
	Text           string
	Structured     json.RawMessage
	Confidence     float64
	ProcessingTime time.Duration
	Success        bool
	Failure        *Failure
}

func failedResult(id string, started time.Time, f *Failure) *RawResult {
	return &RawResult{
		EngineID:       id,
		ProcessingTime: time.Since(started),
		Failure:        f,
	}
}
