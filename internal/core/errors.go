package core

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy. Every command failure maps to exactly one
// kind; collaborator failures keep their cause via Unwrap.
type Kind int

const (
	KindNotFound Kind = iota
	KindUnauthorised
	KindUnprocessableEntity
	KindTransferFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindUnauthorised:
		return "Unauthorised"
	case KindUnprocessableEntity:
		return "UnprocessableEntity"
	case KindTransferFailed:
		return "TransferFailed"
	default:
		return "Unknown"
	}
}

// Error is a classified command failure.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NotFound reports an absent record.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Msg: entity}
}

// Unauthorised reports a caller lacking the required role.
func Unauthorised() *Error {
	return &Error{Kind: KindUnauthorised}
}

// Unprocessable reports a business-rule violation.
func Unprocessable(reason string) *Error {
	return &Error{Kind: KindUnprocessableEntity, Msg: reason}
}

// Unprocessablef reports a business-rule violation with formatting.
func Unprocessablef(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnprocessableEntity, Msg: fmt.Sprintf(format, args...)}
}

// TransferFailed wraps a custody failure.
func TransferFailed(cause error) *Error {
	return &Error{Kind: KindTransferFailed, Msg: cause.Error(), cause: cause}
}

// IsKind reports whether err is a core error of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// ErrorKind extracts the kind of a core error; ok is false for foreign
// errors (router/oracle failures propagate verbatim).
func ErrorKind(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// FatalError marks an unrecoverable inconsistency: the incentive reserve
// no longer matches its accounting. The engine panics with this value
// rather than returning it; callers must not attempt recovery in-process.
type FatalError struct {
	Op    string
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("FATAL: %s: %v", e.Op, e.Cause)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}
