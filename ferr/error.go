package ferr

import (
	"errors"
	"fmt"
)

// Error is a Code plus an optional formatted message and cause, in the shape
// of a typed error struct rather than a bare sentinel — the same pattern as
// an API error that carries both a kind and the detail behind it.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ferr.ErrInvalidType) (the sentinel, not *Error) match.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*sentinelError)
	return ok && sentinel.code == e.Code
}

// New builds an *Error carrying msg, with no wrapped cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf builds an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Err: cause}
}

type sentinelError struct {
	code Code
}

func (s *sentinelError) Error() string { return s.code.String() }

// Sentinels usable with errors.Is(err, ferr.ErrNotFound) against any *Error
// of the matching Code, regardless of message or cause.
var (
	ErrInvalidArgument = &sentinelError{InvalidArgument}
	ErrInvalidType     = &sentinelError{InvalidType}
	ErrOutOfRange      = &sentinelError{OutOfRange}
	ErrNotFound        = &sentinelError{NotFound}
	ErrVersionMismatch = &sentinelError{VersionMismatch}
	ErrOutOfMemory     = &sentinelError{OutOfMemory}
	ErrIoError         = &sentinelError{IoError}
	ErrCancelled       = &sentinelError{Cancelled}
	ErrBusy            = &sentinelError{Busy}
	ErrNotSupported    = &sentinelError{NotSupported}
)

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error; ok is false otherwise.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
