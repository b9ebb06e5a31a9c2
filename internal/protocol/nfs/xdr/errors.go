package xdr

import (
	"context"
	"errors"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/pkg/vfs"
)

// ============================================================================
// Error Mapping - Filesystem Errors → NFS Status Codes
// ============================================================================

var statusByCode = map[vfs.ErrorCode]uint32{
	vfs.ErrNotFound:     types.NFS3ErrNoEnt,
	vfs.ErrExist:        types.NFS3ErrExist,
	vfs.ErrNotDir:       types.NFS3ErrNotDir,
	vfs.ErrIsDir:        types.NFS3ErrIsDir,
	vfs.ErrNotEmpty:     types.NFS3ErrNotEmpty,
	vfs.ErrInvalid:      types.NFS3ErrInval,
	vfs.ErrNameTooLong:  types.NFS3ErrNameTooLong,
	vfs.ErrStale:        types.NFS3ErrStale,
	vfs.ErrNotSupported: types.NFS3ErrNotSupp,
	vfs.ErrIO:           types.NFS3ErrIO,
	vfs.ErrReadOnly:     types.NFS3ErrRofs,
	vfs.ErrAccess:       types.NFS3ErrAcces,
}

// StatusOf maps a filesystem error to its nfsstat3 value.
func StatusOf(err error) uint32 {
	if err == nil {
		return types.NFS3OK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NFS3ErrIO
	}
	if status, ok := statusByCode[vfs.CodeOf(err)]; ok {
		return status
	}
	return types.NFS3ErrIO
}

// MapFSErrorToNFSStatus maps err with StatusOf and logs it. Client errors
// (NOENT, EXIST and the like) are logged at debug level, I/O failures as
// errors.
func MapFSErrorToNFSStatus(err error, clientIP string, operation string) uint32 {
	status := StatusOf(err)
	switch status {
	case types.NFS3OK:
	case types.NFS3ErrIO, types.NFS3ErrServerFault:
		logger.Errorf("%s failed: %v client=%s", operation, err, clientIP)
	default:
		logger.Debugf("%s: %s (%v) client=%s", operation, types.StatusString(status), err, clientIP)
	}
	return status
}
