package types

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	// validation
	KIND_MISSING_REQUIRED_ANSWERS ErrorKind = "MissingRequiredAnswers"
	KIND_REASON_REQUIRED          ErrorKind = "ReasonRequired"
	KIND_INVALID_INPUT            ErrorKind = "InvalidInput"
	KIND_CORRUPT_SEQUENCE         ErrorKind = "CorruptSequence"

	// state conflicts
	KIND_ACTIVE_SESSION_EXISTS ErrorKind = "ActiveSessionExists"
	KIND_ALREADY_CLOSED        ErrorKind = "AlreadyClosed"
	KIND_ALREADY_SUBMITTED     ErrorKind = "AlreadySubmitted"
	KIND_ARCHIVED_IMMUTABLE    ErrorKind = "ArchivedImmutable"
	KIND_LOCKED_IMMUTABLE      ErrorKind = "LockedImmutable"
	KIND_INVALID_TRANSITION    ErrorKind = "InvalidTransition"
	KIND_NOT_VOIDABLE          ErrorKind = "NotVoidable"
	KIND_SURVEY_NOT_ACTIVE     ErrorKind = "SurveyNotActive"

	KIND_NOT_FOUND         ErrorKind = "NotFound"
	KIND_SUBMISSION_FAILED ErrorKind = "SubmissionFailed"
	KIND_CAPACITY_EXCEEDED ErrorKind = "CapacityExceeded"
)

// Error is a typed domain error. Current and Target carry the stored state and the attempted
// state for conflicts, Count the number of missing answers, Attempts and Err the outcome of an
// exhausted submission.
type Error struct {
	Kind     ErrorKind
	Message  string
	Current  string
	Target   string
	Count    int
	Attempts int
	DraftID  string
	Err      error
}

func (e *Error) Error() string {
	parts := []string{string(e.Kind)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Current != "" {
		parts = append(parts, "current: "+e.Current)
	}
	if e.Target != "" {
		parts = append(parts, "target: "+e.Target)
	}
	if e.Count > 0 {
		parts = append(parts, fmt.Sprintf("count: %d", e.Count))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts: %d", e.Attempts))
	}
	if e.Err != nil {
		parts = append(parts, "last error: "+e.Err.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so errors.Is(err, ErrAlreadyClosed) works for any
// AlreadyClosed error regardless of its context fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMissingRequiredAnswers = &Error{Kind: KIND_MISSING_REQUIRED_ANSWERS}
	ErrReasonRequired         = &Error{Kind: KIND_REASON_REQUIRED}
	ErrInvalidInput           = &Error{Kind: KIND_INVALID_INPUT}
	ErrCorruptSequence        = &Error{Kind: KIND_CORRUPT_SEQUENCE}
	ErrActiveSessionExists    = &Error{Kind: KIND_ACTIVE_SESSION_EXISTS}
	ErrAlreadyClosed          = &Error{Kind: KIND_ALREADY_CLOSED}
	ErrAlreadySubmitted       = &Error{Kind: KIND_ALREADY_SUBMITTED}
	ErrArchivedImmutable      = &Error{Kind: KIND_ARCHIVED_IMMUTABLE}
	ErrLockedImmutable        = &Error{Kind: KIND_LOCKED_IMMUTABLE}
	ErrInvalidTransition      = &Error{Kind: KIND_INVALID_TRANSITION}
	ErrNotVoidable            = &Error{Kind: KIND_NOT_VOIDABLE}
	ErrSurveyNotActive        = &Error{Kind: KIND_SURVEY_NOT_ACTIVE}
	ErrNotFound               = &Error{Kind: KIND_NOT_FOUND}
	ErrSubmissionFailed       = &Error{Kind: KIND_SUBMISSION_FAILED}
	ErrCapacityExceeded       = &Error{Kind: KIND_CAPACITY_EXCEEDED}
)

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewStateConflict reports a conflict between the stored state and the attempted one.
func NewStateConflict(kind ErrorKind, current string, target string) *Error {
	return &Error{Kind: kind, Current: current, Target: target}
}

// KindOf returns the kind of the first domain error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidationKind(kind ErrorKind) bool {
	switch kind {
	case KIND_MISSING_REQUIRED_ANSWERS, KIND_REASON_REQUIRED, KIND_INVALID_INPUT, KIND_CORRUPT_SEQUENCE:
		return true
	}
	return false
}

func IsStateConflictKind(kind ErrorKind) bool {
	switch kind {
	case KIND_ACTIVE_SESSION_EXISTS, KIND_ALREADY_CLOSED, KIND_ALREADY_SUBMITTED, KIND_ARCHIVED_IMMUTABLE,
		KIND_LOCKED_IMMUTABLE, KIND_INVALID_TRANSITION, KIND_NOT_VOIDABLE, KIND_SURVEY_NOT_ACTIVE:
		return true
	}
	return false
}
