// Package rerrors implements the Research Orchestration Core's error
// taxonomy (spec §7), modeled on domain.MCPError's code/message/details
// shape rather than the teacher's full audit-trail error machinery, which
// exists to serve multi-tenant compliance reporting this single-request
// core has no use for.
package rerrors

import (
	"fmt"
	"time"
)

// Kind is one of the closed error kinds named by the orchestration core's
// error taxonomy.
type Kind string

const (
	// SearchError means one Search Provider failed; the Dispatcher always
	// catches it at its boundary and never lets it propagate as an exception.
	SearchError Kind = "SearchError"
	// JudgeError means the model returned a malformed or missing assessment.
	JudgeError Kind = "JudgeError"
	// BackendUnavailable means a transport or status error from the chat backend.
	BackendUnavailable Kind = "BackendUnavailable"
	// QuotaExhausted means a paid backend billing limit or free-tier quota was hit.
	QuotaExhausted Kind = "QuotaExhausted"
	// EmbeddingError means the embedder is unavailable.
	EmbeddingError Kind = "EmbeddingError"
	// ConfigurationError means a required setting was missing at startup.
	ConfigurationError Kind = "ConfigurationError"
	// SynthesisError means both normal and fallback synthesis failed.
	SynthesisError Kind = "SynthesisError"
)

// RateLimit is the sole documented SearchError subkind.
const RateLimit = "RateLimit"

// Error is the tagged error type carried through the orchestration core.
type Error struct {
	Kind      Kind      `json:"kind"`
	Subkind   string    `json:"subkind,omitempty"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Error) Error() string {
	if e.Subkind != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Subkind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Timestamp: time.Now().UTC()}
}

// Wrap constructs an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause, Timestamp: time.Now().UTC()}
}

// WithSubkind attaches a subkind (e.g. RateLimit) to an Error, returning it
// for chaining.
func (e *Error) WithSubkind(subkind string) *Error {
	e.Subkind = subkind
	return e
}

// Is reports whether err is an *Error of the given kind, per errors.Is
// semantics (used directly since Error implements Unwrap).
func Is(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			target = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return target != nil && target.Kind == kind
}
