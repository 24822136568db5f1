// Package errdefs defines the error taxonomy shared by the resolvers and
// the HTTP layer. Every failure a resolver surfaces carries exactly one
// Kind, which determines whether the result may be negative-cached and
// which status code the HTTP layer maps it to.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies a resolver failure.
type Kind string

const (
	// KindValidation is a missing or malformed required input. Surfaced
	// immediately, never touches cache or upstream.
	KindValidation Kind = "validation"

	// KindNotFound is a confirmed absence or confirmed default/placeholder
	// state. Cacheable as a negative marker.
	KindNotFound Kind = "not_found"

	// KindUpstream is a transport failure, non-2xx provider response, or
	// malformed provider payload. Never cached, retryable on the next call.
	KindUpstream Kind = "upstream"

	// KindTimeout is a deadline exceeded against a downstream target.
	// Distinguished from KindUpstream so callers can back off differently.
	KindTimeout Kind = "timeout"

	// KindDependency is a missing prerequisite cache record. Surfaced
	// without a network call when no refresh path exists.
	KindDependency Kind = "dependency"
)

// Error is a classified failure with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or "" if err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
