// Package pdp defines the Policy Decision Point client abstraction this
// core consumes, and the transport-level error taxonomy every concrete
// plugin (remoted or in-process) must surface through.
package pdp

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/authzcore/pkg/authz"
)

// Client is the thin boundary any concrete PDP plugin implements. Request
// building and response compilation stay outside it; Evaluate is the one
// suspension point the PEP awaits.
type Client interface {
	Evaluate(ctx context.Context, req authz.EvaluationRequest) (authz.EvaluationResponse, error)
}

// Code is the evaluation transport error taxonomy. Every Client
// implementation MUST surface failures through one of these, never a bare
// error, so the PEP can distinguish "the caller isn't allowed" (Denied,
// handled by the compiler) from "we couldn't even ask" (these codes).
type Code string

const (
	// CodeUnauthorized means the PDP rejected the calling service itself
	// (not the subject in the request) — a service-to-service auth failure.
	CodeUnauthorized Code = "unauthorized"
	// CodeNoPluginAvailable means no concrete plugin is configured or
	// reachable for this resource type.
	CodeNoPluginAvailable Code = "no_plugin_available"
	// CodeServiceUnavailable means the call is retriable: a timeout, a
	// connection failure, or a rate limiter that could not admit it in time.
	CodeServiceUnavailable Code = "service_unavailable"
	// CodeInternal means a protocol-level failure: malformed response,
	// schema violation, or an unexpected plugin panic surfaced as an error.
	CodeInternal Code = "internal"
)

// Error is the transport-level error a Client returns. The PEP wraps this
// verbatim into EnforcerError.EvaluationFailed; it is never recovered
// silently inside the core.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pdp: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("pdp: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retriable reports whether a caller may reasonably retry this evaluation.
// Only ServiceUnavailable is — the others are either a caller-side
// misconfiguration or a policy refusal no retry will change.
func (e *Error) Retriable() bool {
	return e.Code == CodeServiceUnavailable
}

// NewError builds a transport Error.
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}
