// Package coreerr defines the error taxonomy the core uses internally:
// every error a shard produces carries one of a small set of wire codes,
// so edge handlers never need to string-match to pick an HTTP status.
package coreerr

import "fmt"

// Code is one of the wire-level reply codes a shard attaches to a failure.
type Code int

const (
	CodeOK Code = 0
	CodeInvalid Code = 400
	CodeForbidden Code = 403
	CodeNotFound Code = 404
	CodeInternal Code = 500
)

// Error is a coded error: every failure path inside a shard returns one of
// these, never a bare string, so the propagation policy ("errors
// inside one shard never escape to another") has a concrete type to check.
type Error struct {
	Code Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newf(code Code, format string, args...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Invalidf builds a 400 input error (unparsable decimal, non-positive
// amount, invalid kind/side code). An unknown symbol is a 404, not a 400.
func Invalidf(format string, args...any) *Error { return newf(CodeInvalid, format, args...) }

// InsufficientBalance is the 400 state error for a failed Decrease/Freeze
// guard: a failed guard aborts the transition outright, no partial update
// is ever applied.
func InsufficientBalance() *Error {
	return newf(CodeInvalid, "insufficient available balance")
}

// Forbidden is the 403 for a cancel issued by a non-owner account.
func Forbidden() *Error { return newf(CodeForbidden, "order belongs to a different account") }

// NotFoundf is the 404 for an unknown account, symbol, or order.
func NotFoundf(format string, args...any) *Error { return newf(CodeNotFound, format, args...) }

// Internalf is the 500 reserved for channel-closed-during-shutdown cases
// and other conditions that should never happen in a healthy shard.
func Internalf(format string, args...any) *Error { return newf(CodeInternal, format, args...) }

// CodeOf extracts the wire code from any error, defaulting unrecognized
// errors to 500 per the propagation policy.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	if ce, ok := err.(*Error); ok {
		return ce.Code
	}
	return CodeInternal
}
