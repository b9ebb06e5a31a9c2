package xdr

import (
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/pkg/vfs"
)

// AttrToNFS converts filesystem attributes to fattr3 for the mount
// identified by fsid.
func AttrToNFS(attr *vfs.Attr, fsid uint64) *types.NFSFileAttr {
	if attr == nil {
		return nil
	}

	return &types.NFSFileAttr{
		Type:   fileType(attr.Type),
		Mode:   attr.Mode & 07777,
		Nlink:  attr.Nlink,
		UID:    attr.UID,
		GID:    attr.GID,
		Size:   attr.Size,
		Used:   attr.Size,
		Fsid:   fsid,
		Fileid: uint64(attr.ID),
		Atime:  TimeToTimeVal(attr.Atime),
		Mtime:  TimeToTimeVal(attr.Mtime),
		Ctime:  TimeToTimeVal(attr.Ctime),
	}
}

func fileType(t vfs.FileType) uint32 {
	switch t {
	case vfs.TypeDirectory:
		return types.NF3DIR
	case vfs.TypeSymlink:
		return types.NF3LNK
	default:
		return types.NF3REG
	}
}

// CaptureWccAttr captures the pre-operation attributes of a modifying call.
// It must be taken before the operation runs.
func CaptureWccAttr(attr *vfs.Attr) *types.WccAttr {
	if attr == nil {
		return nil
	}

	return &types.WccAttr{
		Size:  attr.Size,
		Mtime: TimeToTimeVal(attr.Mtime),
		Ctime: TimeToTimeVal(attr.Ctime),
	}
}
