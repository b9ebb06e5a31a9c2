package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/yak"
	"github.com/marmos91/yak/pkg/checkout"
	"github.com/marmos91/yak/pkg/mount"
	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/registry"
	"github.com/marmos91/yak/pkg/store"
	"github.com/marmos91/yak/pkg/vfs/workingcopy"
)

// Code is the category of a service failure.
type Code int

const (
	CodeInternal Code = iota
	CodeNotFound
	CodeInvalidArgument
	CodeBindFailed
	CodeNotSupported
	CodeFailedPrecondition
)

func (c Code) String() string {
	return c.Status().String()
}

// Status returns the wire status of c.
func (c Code) Status() yak.Status {
	switch c {
	case CodeNotFound:
		return yak.StatusNotFound
	case CodeInvalidArgument:
		return yak.StatusInvalidArgument
	case CodeBindFailed:
		return yak.StatusBindFailed
	case CodeNotSupported:
		return yak.StatusNotSupported
	case CodeFailedPrecondition:
		return yak.StatusFailedPrecondition
	default:
		return yak.StatusInternal
	}
}

// Error is a failed service operation.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errorf builds an Error from a message.
func errorf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// wrap classifies err as an Error of op. Errors that are already service
// errors keep their code.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Code: classify(err), Op: op, Err: err}
}

func classify(err error) Code {
	switch {
	case errors.Is(err, workingcopy.ErrMissingObject):
		return CodeFailedPrecondition
	case errors.Is(err, mount.ErrBindFailed):
		return CodeBindFailed
	case errors.Is(err, mount.ErrNotMounted):
		return CodeFailedPrecondition
	case errors.Is(err, registry.ErrWorkspaceNotFound):
		return CodeNotFound
	case errors.Is(err, registry.ErrInvalidWorkspace),
		errors.Is(err, workingcopy.ErrRootMismatch),
		errors.Is(err, checkout.ErrInvalidPath),
		errors.Is(err, checkout.ErrTreeEntry),
		errors.Is(err, checkout.ErrPathCollision),
		errors.Is(err, object.ErrUnknownKind),
		errors.Is(err, yak.ErrUnknownKind):
		return CodeInvalidArgument
	case store.IsNotFound(err):
		return CodeNotFound
	case store.IsInvalidArgument(err):
		return CodeInvalidArgument
	default:
		return CodeInternal
	}
}

// StatusOf maps err to a wire status and the message sent with it. Internal
// errors get a generic message so that their details stay in the log.
func StatusOf(err error) (yak.Status, string) {
	if err == nil {
		return yak.StatusOK, ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return yak.StatusInternal, "request cancelled"
	}

	code := classify(err)
	var se *Error
	if errors.As(err, &se) {
		code = se.Code
	}
	if code == CodeInternal {
		return yak.StatusInternal, "internal error"
	}
	return code.Status(), err.Error()
}
