package annotation

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes annotation errors.
type ErrorCode string

const (
	// ErrCodeMalformed indicates a loaded record with dangling references.
	ErrCodeMalformed ErrorCode = "MALFORMED_ANNOTATION"

	// ErrCodeNotFound indicates an operation referenced a nonexistent id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidSpan indicates start > end or a negative offset.
	ErrCodeInvalidSpan ErrorCode = "INVALID_SPAN"

	// ErrCodeUnresolvable indicates a tie endpoint with neither or both keys,
	// or one that points at a dead reference.
	ErrCodeUnresolvable ErrorCode = "UNRESOLVABLE_ENDPOINT"

	// ErrCodeConflict indicates a create that would overwrite a live row,
	// such as a second mention of the same span.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeEmptyGroup indicates a group operation that would leave a group
	// without members.
	ErrCodeEmptyGroup ErrorCode = "EMPTY_GROUP"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its code.
var (
	ErrMalformedAnnotation  = &Error{Code: ErrCodeMalformed}
	ErrNotFound             = &Error{Code: ErrCodeNotFound}
	ErrInvalidSpan          = &Error{Code: ErrCodeInvalidSpan}
	ErrUnresolvableEndpoint = &Error{Code: ErrCodeUnresolvable}
	ErrConflict             = &Error{Code: ErrCodeConflict}
	ErrEmptyGroup           = &Error{Code: ErrCodeEmptyGroup}
)

// Error is the data-integrity error returned by the store and the editor.
// A failed operation never leaves partial state behind.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Kind is the map the offending id belongs to ("entities", "ties", ...).
	Kind string

	// ID is the offending id, if any.
	ID string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Kind != "" || e.ID != "" {
		msg += fmt.Sprintf(" (%s %q)", e.Kind, e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so callers can compare against
// the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Kind == "" && t.ID == ""
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidSpan reports whether err is an INVALID_SPAN error.
func IsInvalidSpan(err error) bool { return errors.Is(err, ErrInvalidSpan) }

// IsUnresolvable reports whether err is an UNRESOLVABLE_ENDPOINT error.
func IsUnresolvable(err error) bool { return errors.Is(err, ErrUnresolvableEndpoint) }

// IsMalformed reports whether err is a MALFORMED_ANNOTATION error.
func IsMalformed(err error) bool { return errors.Is(err, ErrMalformedAnnotation) }

func notFound(kind, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Kind: kind, ID: id, Message: "no such " + singular(kind)}
}

func invalidSpan(start, end int) *Error {
	return &Error{
		Code:    ErrCodeInvalidSpan,
		Message: fmt.Sprintf("span [%d, %d] must satisfy 0 <= start <= end", start, end),
	}
}

func malformed(kind, id, message string, cause error) *Error {
	return &Error{Code: ErrCodeMalformed, Kind: kind, ID: id, Message: message, Err: cause}
}

func singular(kind string) string {
	switch kind {
	case "entities":
		return "entity"
	case "groups":
		return "group"
	case "locations":
		return "location"
	case "ties":
		return "tie"
	}
	return kind
}
