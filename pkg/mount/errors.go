package mount

import (
	"errors"
	"fmt"
)

var (
	// ErrBindFailed matches every *BindError.
	ErrBindFailed = errors.New("bind failed")

	// ErrClosed is returned by commands sent after Shutdown.
	ErrClosed = errors.New("mount manager closed")

	// ErrNotMounted is returned by Unbind for a workspace without a server.
	ErrNotMounted = errors.New("workspace is not mounted")
)

// BindError reports a Bind that ran out of ports, attempts or time.
type BindError struct {
	Workspace string
	Attempts  int

	// Err is the last listen failure, or the timeout.
	Err error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: no port after %d attempt(s): %v", e.Workspace, e.Attempts, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

func (e *BindError) Is(target error) bool {
	return target == ErrBindFailed
}
