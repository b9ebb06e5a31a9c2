package xdr

import (
	"encoding/binary"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/pkg/vfs"
)

// NewFileHandle builds the handle of id on the mount identified by fsid.
//
// Handle format: [fsid:8 bytes][fileid:8 bytes], big-endian.
func NewFileHandle(fsid uint64, id vfs.FileID) []byte {
	handle := make([]byte, types.FileHandleSize)
	binary.BigEndian.PutUint64(handle[:8], fsid)
	binary.BigEndian.PutUint64(handle[8:], uint64(id))
	return handle
}

// ParseFileHandle extracts the file id of a handle issued by the mount
// identified by fsid. It returns NFS3ERR_BADHANDLE for handles of the wrong
// shape and NFS3ERR_STALE for handles of another mount.
func ParseFileHandle(handle []byte, fsid uint64) (vfs.FileID, uint32) {
	if len(handle) != types.FileHandleSize {
		return 0, types.NFS3ErrBadHandle
	}
	if binary.BigEndian.Uint64(handle[:8]) != fsid {
		return 0, types.NFS3ErrStale
	}
	id := binary.BigEndian.Uint64(handle[8:])
	if id == 0 {
		return 0, types.NFS3ErrBadHandle
	}
	return vfs.FileID(id), types.NFS3OK
}
