// Package errcat provides a single wrapped-error shape used across the
// routing pipeline so that every component reports failures the same way:
// which operation failed, which component it failed in, and what resource
// (fingerprint, URL, session id) was involved.
package errcat

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure the way RoutingResult and the logs need it
// categorized. It is not a Go error type switch target on its own; callers
// compare Kind values after extracting an *Error with errors.As.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindUpstream      Kind = "upstream"
	KindParse         Kind = "parse"
	KindDegraded      Kind = "degraded"
)

// Error wraps an underlying cause with routing-pipeline context.
type Error struct {
	Op        string // e.g. "repairclient.Dispatch"
	Component string // e.g. "C7"
	Resource  string // fingerprint, URL, or session id, whichever applies
	Kind      Kind
	Cause     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Resource != "" {
		msg = fmt.Sprintf("%s(%s)", msg, e.Resource)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Component, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error without an underlying cause (e.g. a pure
// configuration failure like a missing API key).
func New(component, op string, kind Kind, resource string) *Error {
	return &Error{Op: op, Component: component, Resource: resource, Kind: kind}
}

// Wrap attaches routing-pipeline context to an existing error. Returns nil
// if cause is nil, so callers can write `return errcat.Wrap(...)` directly
// after a fallible call without an extra nil check.
func Wrap(component, op string, kind Kind, resource string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Op: op, Component: component, Resource: resource, Kind: kind, Cause: cause}
}

// Configuration builds a non-retryable configuration error.
func Configuration(component, op, resource string, cause error) *Error {
	return Wrap(component, op, KindConfiguration, resource, cause)
}

// Upstream builds an error for a failed outbound call (non-200, transport
// failure, timeout).
func Upstream(component, op, resource string, cause error) *Error {
	return Wrap(component, op, KindUpstream, resource, cause)
}

// Parse builds an error for a response that could not be decoded.
func Parse(component, op, resource string, cause error) *Error {
	return Wrap(component, op, KindParse, resource, cause)
}

// Degraded builds an error representing a gate that could not be evaluated
// and was therefore treated as passed (fail-open). Callers log it; it is
// never surfaced as a hard failure.
func Degraded(component, op, resource string, cause error) *Error {
	return Wrap(component, op, KindDegraded, resource, cause)
}

// IsKind reports whether err (or anything it wraps) is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
