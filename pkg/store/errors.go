package store

import (
	"errors"
	"fmt"

	"github.com/marmos91/yak/pkg/object"
)

// Error is a domain error returned by ObjectStore implementations.
//
// Protocol layers translate Code into their own status vocabulary (RPC
// status values for the protocol service, nfsstat3 for mounts).
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable description
	Message string

	// ID is the hex id of the object involved, when there is one
	ID string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.ID != "" {
		msg += ": " + e.ID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode is the category of a store error.
type ErrorCode int

const (
	// ErrNotFound: no object with the requested id exists in the store
	ErrNotFound ErrorCode = iota

	// ErrInvalidArgument: the object violates a store invariant, such as a
	// commit without parents or a tree with duplicate names
	ErrInvalidArgument

	// ErrIO: the backend failed to read or write
	ErrIO
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not found"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrIO:
		return "io error"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Kind names the object kind in error messages and metrics labels.
type Kind string

const (
	KindFile    Kind = "file"
	KindSymlink Kind = "symlink"
	KindTree    Kind = "tree"
	KindCommit  Kind = "commit"
)

func NewNotFoundError(kind Kind, id object.ID) *Error {
	return &Error{Code: ErrNotFound, Message: fmt.Sprintf("%s not found", kind), ID: id.String()}
}

func NewInvalidArgumentError(kind Kind, err error) *Error {
	return &Error{Code: ErrInvalidArgument, Message: fmt.Sprintf("invalid %s", kind), Err: err}
}

func NewIOError(kind Kind, op string, err error) *Error {
	return &Error{Code: ErrIO, Message: fmt.Sprintf("%s %s", op, kind), Err: err}
}

// CodeOf extracts the ErrorCode of err, reporting false when err is not a
// store error.
func CodeOf(err error) (ErrorCode, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotFound
}

func IsInvalidArgument(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrInvalidArgument
}

var errNilObject = errors.New("nil object")

// ValidateNotNil rejects nil file and symlink writes.
func ValidateNotNil(kind Kind, isNil bool) error {
	if isNil {
		return NewInvalidArgumentError(kind, errNilObject)
	}
	return nil
}
