package workflows

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups business failures by how a caller should react.
type Kind string

const (
	// KindValidation failures never succeed on retry without new input.
	KindValidation Kind = "validation"
	// KindConflict failures may succeed after the caller refreshes state.
	KindConflict Kind = "conflict"
	// KindResource failures are expected outcomes about missing entities or budget.
	KindResource Kind = "resource"
)

// Code identifies a specific business failure.
type Code string

const (
	CodeInvalidTransition           Code = "INVALID_TRANSITION"
	CodeReasonRequired              Code = "REASON_REQUIRED"
	CodeProjectNotAcceptingRequests Code = "PROJECT_NOT_ACCEPTING_REQUESTS"
	CodeInvalidAmount               Code = "INVALID_AMOUNT"
	CodeInvalidInput                Code = "INVALID_INPUT"
	CodeForbidden                   Code = "FORBIDDEN"

	CodeAlreadyReviewed   Code = "ALREADY_REVIEWED"
	CodeStaleStatus       Code = "STALE_STATUS"
	CodeDiscussionPending Code = "DISCUSSION_PENDING"
	CodeDuplicateCode     Code = "DUPLICATE_CODE"

	CodeNotFound           Code = "NOT_FOUND"
	CodeInsufficientBudget Code = "INSUFFICIENT_BUDGET"
	CodeProjectNotActive   Code = "PROJECT_NOT_ACTIVE"
)

// Error is a business failure. Anything that is not an *Error returned by
// the core is an infrastructure failure.
type Error struct {
	Kind            Kind     `json:"kind"`
	Code            Code     `json:"code"`
	Message         string   `json:"message"`
	ValidNextStates []string `json:"valid_next_states"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error carrying the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError builds a business error.
func NewError(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidTransition           = NewError(KindValidation, CodeInvalidTransition, "invalid status transition")
	ErrReasonRequired              = NewError(KindValidation, CodeReasonRequired, "reason is required")
	ErrProjectNotAcceptingRequests = NewError(KindValidation, CodeProjectNotAcceptingRequests, "project is not accepting requests")
	ErrInvalidAmount               = NewError(KindValidation, CodeInvalidAmount, "invalid hour amount")
	ErrInvalidInput                = NewError(KindValidation, CodeInvalidInput, "invalid input")
	ErrForbidden                   = NewError(KindValidation, CodeForbidden, "forbidden")
	ErrAlreadyReviewed             = NewError(KindConflict, CodeAlreadyReviewed, "discussion already reviewed")
	ErrStaleStatus                 = NewError(KindConflict, CodeStaleStatus, "status changed concurrently")
	ErrDiscussionPending           = NewError(KindConflict, CodeDiscussionPending, "a discussion is already pending")
	ErrDuplicateCode               = NewError(KindConflict, CodeDuplicateCode, "project code already exists")
	ErrNotFound                    = NewError(KindResource, CodeNotFound, "not found")
	ErrInsufficientBudget          = NewError(KindResource, CodeInsufficientBudget, "insufficient budget")
	ErrProjectNotActive            = NewError(KindResource, CodeProjectNotActive, "project is not active")
)

// InvalidProjectTransition reports a rejected project edge, listing the
// valid next states of the current status.
func InvalidProjectTransition(from, to ProjectStatus) *Error {
	next := StatusStrings(ValidNextStates(from))
	return &Error{
		Kind:            KindValidation,
		Code:            CodeInvalidTransition,
		Message:         fmt.Sprintf("cannot transition project from %s to %s; valid next states: [%s]", from, to, strings.Join(next, ", ")),
		ValidNextStates: next,
	}
}

// InvalidRequestTransition reports a rejected request edge.
func InvalidRequestTransition(from, to RequestStatus) *Error {
	next := requestStatusStrings(ValidNextRequestStates(from))
	return &Error{
		Kind:            KindValidation,
		Code:            CodeInvalidTransition,
		Message:         fmt.Sprintf("cannot transition request from %s to %s; valid next states: [%s]", from, to, strings.Join(next, ", ")),
		ValidNextStates: next,
	}
}

// NotFound builds a NotFound error for an entity.
func NotFound(entity string, id fmt.Stringer) *Error {
	return NewError(KindResource, CodeNotFound, fmt.Sprintf("%s %s not found", entity, id))
}

// InsufficientBudget reports a draw larger than the available hours.
func InsufficientBudget(requested, available float64) *Error {
	return NewError(KindResource, CodeInsufficientBudget,
		fmt.Sprintf("requested %.2f hours but only %.2f available", requested, available))
}

// AsError extracts a business error, if err is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsBusinessError reports whether err is an expected business outcome
// rather than an infrastructure failure.
func IsBusinessError(err error) bool {
	_, ok := AsError(err)
	return ok
}
