package upd

import (
	"errors"
	"fmt"
)

// Result is the fixed, ABI-stable outcome code every request and
// synchronous submission carries (spec.md §3, §7; SPEC_FULL.md §6 "C-style
// ABI surface"). Values are stable across versions by contract.
type Result int8

const (
	ResultOK Result = iota
	ResultInvalid
	ResultAborted
	ResultNomem
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultInvalid:
		return "INVALID"
	case ResultAborted:
		return "ABORTED"
	case ResultNomem:
		return "NOMEM"
	default:
		return fmt.Sprintf("Result(%d)", int8(r))
	}
}

// Error is the structured error type returned by the public API,
// following the teacher's errors.go almost exactly: an operation name,
// the file the operation targeted (if any), a stable Result code, a
// human message, and an optional wrapped cause for errors.Is/As.
type Error struct {
	Op     string
	FileID FileID
	Code   Result
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Op != "" {
		if e.FileID != InvalidFileID {
			return fmt.Sprintf("upd: %s (op=%s file=%d)", msg, e.Op, e.FileID)
		}
		return fmt.Sprintf("upd: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("upd: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// NewError builds an *Error with no file context, e.g. for
// registry-level failures (duplicate driver name, unknown lookup).
func NewError(op string, code Result, msg string) *Error {
	return &Error{Op: op, FileID: InvalidFileID, Code: code, Msg: msg}
}

// NewFileError builds an *Error scoped to one file.
func NewFileError(op string, id FileID, code Result, msg string) *Error {
	return &Error{Op: op, FileID: id, Code: code, Msg: msg}
}

// WrapError attaches an operation name to an existing error, folding in
// the inner Result code when the wrapped error is itself an *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var ue *Error
	if errors.As(inner, &ue) {
		return &Error{Op: op, FileID: ue.FileID, Code: ue.Code, Msg: ue.Msg, Inner: ue.Inner}
	}
	return &Error{Op: op, FileID: InvalidFileID, Code: ResultAborted, Msg: inner.Error(), Inner: inner}
}

// IsResult reports whether err carries the given Result code.
func IsResult(err error, code Result) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code == code
	}
	return false
}
