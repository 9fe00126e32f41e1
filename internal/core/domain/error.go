package domain

import (
	"errors"
	"fmt"
)

// Error codes. The HTTP layer maps them to status codes.
const (
	EINVALID  = "invalid"   // 400 - validation error, operation was a no-op
	ENOTFOUND = "not_found" // 404 - lookup miss
	ECONFLICT = "conflict"  // 409 - duplicate request or stock conflict
	EINTERNAL = "internal"  // 500 - hide details
)

// Error is an application error with a machine readable code and a message
// that is safe to show to an operator.
type Error struct {
	Code    string
	Message string

	// Op is the operation that failed, e.g. "cart.add". Logged, never displayed.
	Op string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code and message so sentinel errors
// survive being re-created with a different Op.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// ErrorCode returns the code of the outermost domain error, EINTERNAL for
// any other non-nil error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns a message fit for display. Internal errors and
// foreign errors collapse to a generic text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Invalid creates a validation error.
func Invalid(op, format string, args ...any) error {
	return &Error{Code: EINVALID, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error for a resource.
// Example: domain.NotFound("scan", "product with barcode", code)
func NotFound(op, resource, identifier string) error {
	return &Error{Code: ENOTFOUND, Op: op, Message: fmt.Sprintf("%s not found: %s", resource, identifier)}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// Internal wraps err. Users see a generic message; err is kept for logs.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}
