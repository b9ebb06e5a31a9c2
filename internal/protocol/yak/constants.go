// Package yak defines the wire schema of the daemon's protocol service: an
// ONC RPC program whose arguments and results are XDR structs.
//
// Every reply body is a ReplyHeader followed by the procedure's result
// only when the header's status is StatusOK.
package yak

import (
	"fmt"

	"github.com/marmos91/yak/internal/protocol/rpc"
)

const (
	Program = rpc.ProgramYak
	Version = 1
)

// Procedure numbers
const (
	ProcNull             = 0
	ProcDaemonStatus     = 1
	ProcInitialize       = 2
	ProcGetEmptyTreeID   = 3
	ProcConcurrency      = 4
	ProcWriteFile        = 5
	ProcReadFile         = 6
	ProcWriteSymlink     = 7
	ProcReadSymlink      = 8
	ProcWriteTree        = 9
	ProcReadTree         = 10
	ProcWriteCommit      = 11
	ProcReadCommit       = 12
	ProcGetCheckoutState = 13
	ProcSetCheckoutState = 14
	ProcSnapshot         = 15
	ProcGetTreeState     = 16
	ProcUnmount          = 17
)

// Status is the outcome carried in every reply header.
type Status uint32

const (
	StatusOK                 Status = 0
	StatusNotFound           Status = 1
	StatusInvalidArgument    Status = 2
	StatusBindFailed         Status = 3
	StatusNotSupported       Status = 4
	StatusInternal           Status = 5
	StatusFailedPrecondition Status = 6
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusInvalidArgument:
		return "INVALID_ARGUMENT"
	case StatusBindFailed:
		return "BIND_FAILED"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusInternal:
		return "INTERNAL"
	case StatusFailedPrecondition:
		return "FAILED_PRECONDITION"
	default:
		return fmt.Sprintf("STATUS_%d", uint32(s))
	}
}

// ProcName returns the procedure name used in logs and metric labels.
func ProcName(proc uint32) string {
	if name, ok := procNames[proc]; ok {
		return name
	}
	return fmt.Sprintf("PROC_%d", proc)
}

var procNames = map[uint32]string{
	ProcNull:             "NULL",
	ProcDaemonStatus:     "DAEMON_STATUS",
	ProcInitialize:       "INITIALIZE",
	ProcGetEmptyTreeID:   "GET_EMPTY_TREE_ID",
	ProcConcurrency:      "CONCURRENCY",
	ProcWriteFile:        "WRITE_FILE",
	ProcReadFile:         "READ_FILE",
	ProcWriteSymlink:     "WRITE_SYMLINK",
	ProcReadSymlink:      "READ_SYMLINK",
	ProcWriteTree:        "WRITE_TREE",
	ProcReadTree:         "READ_TREE",
	ProcWriteCommit:      "WRITE_COMMIT",
	ProcReadCommit:       "READ_COMMIT",
	ProcGetCheckoutState: "GET_CHECKOUT_STATE",
	ProcSetCheckoutState: "SET_CHECKOUT_STATE",
	ProcSnapshot:         "SNAPSHOT",
	ProcGetTreeState:     "GET_TREE_STATE",
	ProcUnmount:          "UNMOUNT",
}
