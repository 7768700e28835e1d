// Package apperr defines the error taxonomy shared by the store, memory
// engine, insight extractor, monitoring loop, and command injector. It
// generalizes the teacher's typed-string-enum convention (CaptainStatus,
// AgentStatus) from status values to error kinds.
package apperr

import "fmt"

// Kind is one of the error kinds named in the component design.
type Kind string

const (
	NotFound           Kind = "not_found"
	InvariantViolation Kind = "invariant_violation"
	AccessDenied       Kind = "access_denied"
	DangerousCommand   Kind = "dangerous_command"
	LockPoisoned       Kind = "lock_poisoned"
	DatabaseError      Kind = "database_error"
	DatabaseNotFound   Kind = "database_not_found"
	FeatureUnavailable Kind = "feature_unavailable"
	Serialization      Kind = "serialization"
	CollaboratorError  Kind = "collaborator_error"
	InvalidPromotion   Kind = "invalid_promotion"
)

// Error wraps a Kind with a human-readable reason and an optional cause.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// Is reports whether err is an *Error of the given kind. Mirrors the
// errors.Is contract so callers can write apperr.Is(err, apperr.NotFound).
func Is(err error, kind Kind) bool {
	var e *Error
	if err == nil {
		return false
	}
	if ae, ok := err.(*Error); ok {
		e = ae
	} else if ae, ok := unwrapToAppErr(err); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}

func unwrapToAppErr(err error) (*Error, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
