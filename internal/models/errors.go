package models

import "errors"

// ErrorKind classifies a domain failure so callers can tell "does not exist"
// apart from "exists but is in the wrong state".
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindIllegalState
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindIllegalState:
		return "illegal_state"
	default:
		return "unknown"
	}
}

// Error is a domain failure carrying a message fit for direct display.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches another *Error with the same kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// NewValidationError returns a validation failure with the given message.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewNotFoundError returns a not-found failure with the given message.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewConflictError returns a conflict failure with the given message.
func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NewIllegalStateError returns a domain-rule violation with the given message.
func NewIllegalStateError(message string) *Error {
	return &Error{Kind: KindIllegalState, Message: message}
}

// KindOf reports the kind of a domain error anywhere in err's chain, or zero.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
