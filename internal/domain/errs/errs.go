// internal/domain/errs/errs.go
package errs

import (
	"errors"
	"fmt"
)

// Kind groups failures by how a caller should react to them.
type Kind int

const (
	KindUnknown       Kind = iota // infrastructure or unexpected failure
	KindValidation                // malformed input; never retried
	KindStateGuard                // expected workflow refusal; surfaced verbatim
	KindAuthorization             // caller is not allowed to act on the entity
	KindNotFound                  // referenced entity does not exist
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateGuard:
		return "state_guard"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every workflow operation.
// Two Errors match under errors.Is when their codes are equal, so callers
// can compare against the sentinels below even when the message differs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// State-guard violations.
var (
	ErrInvalidState         = newError(KindStateGuard, "invalid_state", "the request is not in a status that allows this action")
	ErrAlreadyCommitted     = newError(KindStateGuard, "already_committed", "the applicant has already been accepted by a sponsor")
	ErrCapacityExceeded     = newError(KindStateGuard, "capacity_exceeded", "the sponsor has no remaining capacity")
	ErrNoSlots              = newError(KindStateGuard, "no_slots", "the offering has no available slots")
	ErrOverlap              = newError(KindStateGuard, "overlap", "the offering window overlaps another offering of this sponsor")
	ErrDuplicateRequest     = newError(KindStateGuard, "duplicate_request", "the applicant already has a request for this offering")
	ErrHasCommittedRequests = newError(KindStateGuard, "has_committed_requests", "the offering has approved or completed requests")
	ErrOfferingNotActive    = newError(KindStateGuard, "offering_not_active", "the offering is not open for requests")
)

// Authorization failures.
var (
	ErrNotOwner         = newError(KindAuthorization, "not_owner", "the caller does not own this record")
	ErrNotTargetSponsor = newError(KindAuthorization, "not_target_sponsor", "the caller is not the sponsor of this request")
	ErrNotAuthorized    = newError(KindAuthorization, "not_authorized", "the caller is not a party to this request")
)

// Validation failures with a fixed meaning.
var (
	ErrInvalidInput  = newError(KindValidation, "invalid_input", "invalid input")
	ErrInvalidWindow = newError(KindValidation, "invalid_window", "the window end must be after the window start")
)

// ErrNotFound matches every error produced by NotFound.
var ErrNotFound = newError(KindNotFound, "not_found", "not found")

// Invalid returns a validation error carrying a caller-facing message.
// It matches ErrInvalidInput under errors.Is.
func Invalid(format string, args ...any) error {
	return newError(KindValidation, ErrInvalidInput.Code, fmt.Sprintf(format, args...))
}

// NotFound returns a not-found error naming the missing entity.
func NotFound(what string) error {
	return newError(KindNotFound, ErrNotFound.Code, what+" not found")
}

// KindOf classifies err. Errors that are not (and do not wrap) an *Error
// are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsExpected reports whether err is a typed workflow failure as opposed to
// an infrastructure error.
func IsExpected(err error) bool {
	return KindOf(err) != KindUnknown
}
