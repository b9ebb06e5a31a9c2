package types

import "fmt"

// TimeVal is nfstime3: seconds and nanoseconds since the UNIX epoch.
type TimeVal struct {
	Seconds  uint32
	Nseconds uint32
}

// NFSFileAttr is fattr3 (RFC 1813 Section 2.3.1) in wire order.
type NFSFileAttr struct {
	Type   uint32
	Mode   uint32
	Nlink  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Used   uint64
	Rdev   SpecData
	Fsid   uint64
	Fileid uint64
	Atime  TimeVal
	Mtime  TimeVal
	Ctime  TimeVal
}

// SpecData is specdata3, the device numbers of special files. Always zero
// here since devices cannot be created.
type SpecData struct {
	Major uint32
	Minor uint32
}

// WccAttr is the pre-operation half of wcc_data. Clients compare it with
// their cached attributes to decide whether the cache survived the call.
type WccAttr struct {
	Size  uint64
	Mtime TimeVal
	Ctime TimeVal
}

// DirEntry is one entry of a READDIR reply.
type DirEntry struct {
	Fileid uint64
	Name   string
	Cookie uint64
}

// DirEntryPlus is one entry of a READDIRPLUS reply.
type DirEntryPlus struct {
	Fileid uint64
	Name   string
	Cookie uint64
	Attr   *NFSFileAttr
	Handle []byte
}

// FSStat is the body of a successful FSSTAT reply.
type FSStat struct {
	TotalBytes uint64
	FreeBytes  uint64
	AvailBytes uint64
	TotalFiles uint64
	FreeFiles  uint64
	AvailFiles uint64
	Invarsec   uint32
}

// TimeGuard is sattrguard3: when Check is set, SETATTR only proceeds if the
// object's ctime still equals Time.
type TimeGuard struct {
	Check bool
	Time  TimeVal
}

// StatusString returns the RFC 1813 name of an nfsstat3 value, used as a
// metric label and in logs.
func StatusString(status uint32) string {
	switch status {
	case NFS3OK:
		return "NFS3_OK"
	case NFS3ErrPerm:
		return "NFS3ERR_PERM"
	case NFS3ErrNoEnt:
		return "NFS3ERR_NOENT"
	case NFS3ErrIO:
		return "NFS3ERR_IO"
	case NFS3ErrAcces:
		return "NFS3ERR_ACCES"
	case NFS3ErrExist:
		return "NFS3ERR_EXIST"
	case NFS3ErrNotDir:
		return "NFS3ERR_NOTDIR"
	case NFS3ErrIsDir:
		return "NFS3ERR_ISDIR"
	case NFS3ErrInval:
		return "NFS3ERR_INVAL"
	case NFS3ErrFBig:
		return "NFS3ERR_FBIG"
	case NFS3ErrNoSpc:
		return "NFS3ERR_NOSPC"
	case NFS3ErrRofs:
		return "NFS3ERR_ROFS"
	case NFS3ErrNameTooLong:
		return "NFS3ERR_NAMETOOLONG"
	case NFS3ErrNotEmpty:
		return "NFS3ERR_NOTEMPTY"
	case NFS3ErrStale:
		return "NFS3ERR_STALE"
	case NFS3ErrBadHandle:
		return "NFS3ERR_BADHANDLE"
	case NFS3ErrNotSync:
		return "NFS3ERR_NOT_SYNC"
	case NFS3ErrBadCookie:
		return "NFS3ERR_BAD_COOKIE"
	case NFS3ErrNotSupp:
		return "NFS3ERR_NOTSUPP"
	case NFS3ErrTooSmall:
		return "NFS3ERR_TOOSMALL"
	case NFS3ErrServerFault:
		return "NFS3ERR_SERVERFAULT"
	default:
		return fmt.Sprintf("UNKNOWN_%d", status)
	}
}
