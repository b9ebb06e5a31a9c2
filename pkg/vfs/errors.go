package vfs

import (
	"errors"
	"fmt"
)

// ErrorCode is a filesystem error category. Each code maps to exactly one
// nfsstat3 value.
type ErrorCode int

const (
	ErrNotFound ErrorCode = iota + 1
	ErrExist
	ErrNotDir
	ErrIsDir
	ErrNotEmpty
	ErrInvalid
	ErrNameTooLong
	ErrStale
	ErrNotSupported
	ErrIO
	ErrReadOnly
	ErrAccess
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:     "no such file or directory",
	ErrExist:        "file exists",
	ErrNotDir:       "not a directory",
	ErrIsDir:        "is a directory",
	ErrNotEmpty:     "directory not empty",
	ErrInvalid:      "invalid argument",
	ErrNameTooLong:  "name too long",
	ErrStale:        "stale file handle",
	ErrNotSupported: "operation not supported",
	ErrIO:           "i/o error",
	ErrReadOnly:     "read-only file",
	ErrAccess:       "permission denied",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("vfs error %d", int(c))
}

// Error is returned by FileSystem operations.
type Error struct {
	Code ErrorCode
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Code.String()
	if e.Name != "" {
		msg = e.Op + " " + e.Name + ": " + e.Code.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, &Error{Code: c}) match on code alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Name == ""
}

func NewError(code ErrorCode, op, name string) *Error {
	return &Error{Code: code, Op: op, Name: name}
}

// WrapError attaches a cause, typically a store failure, as ErrIO.
func WrapError(op, name string, err error) *Error {
	return &Error{Code: ErrIO, Op: op, Name: name, Err: err}
}

// CodeOf returns the code of a vfs error. Other errors are ErrIO.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrIO
}

// IsCode reports whether err is a vfs error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
