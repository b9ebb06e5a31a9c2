// Package vfs defines the filesystem capability a per-mount NFS server
// serves. Handlers in internal/protocol/nfs translate wire calls into these
// operations and map *Error codes onto nfsstat3 values.
package vfs

import (
	"context"
	"time"
)

// FileID identifies a node for the lifetime of a FileSystem. IDs are never
// reused, so an ID that no longer resolves is stale.
type FileID uint64

type FileType uint8

const (
	TypeRegular FileType = iota + 1
	TypeDirectory
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Attr is the attribute set of a node.
type Attr struct {
	ID    FileID
	Type  FileType
	Mode  uint32 // permission bits only
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  uint64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// SetAttr carries the attributes a caller wants to change. Nil fields are
// left untouched.
type SetAttr struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Size  *uint64
	Atime *time.Time
	Mtime *time.Time
}

// IsEmpty reports whether no attribute is set.
func (s SetAttr) IsEmpty() bool {
	return s.Mode == nil && s.UID == nil && s.GID == nil && s.Size == nil && s.Atime == nil && s.Mtime == nil
}

// DirEntry is one directory listing entry. Cookie is the position to resume
// after this entry.
type DirEntry struct {
	ID     FileID
	Name   string
	Cookie uint64
	Attr   *Attr
}

// Capabilities describes static limits of a FileSystem, reported through
// FSINFO and PATHCONF.
type Capabilities struct {
	ReadOnly        bool
	MaxReadSize     uint32
	PreferredRead   uint32
	MaxWriteSize    uint32
	PreferredWrite  uint32
	MaxFileSize     uint64
	MaxNameLen      uint32
	SupportsSymlink bool
	SupportsLinks   bool
	CaseSensitive   bool
}

// DefaultCapabilities are used by the working-copy filesystem.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		MaxReadSize:     1 << 20,
		PreferredRead:   64 << 10,
		MaxWriteSize:    1 << 20,
		PreferredWrite:  64 << 10,
		MaxFileSize:     1 << 40,
		MaxNameLen:      255,
		SupportsSymlink: true,
		CaseSensitive:   true,
	}
}

// FileSystem is the operation surface of a served working copy.
//
// Implementations must be safe for concurrent use; NFS connections call
// into the same FileSystem from many goroutines.
type FileSystem interface {
	Root() FileID
	Capabilities() Capabilities

	// Lookup resolves name inside dir. "." and ".." are accepted.
	Lookup(ctx context.Context, dir FileID, name string) (FileID, *Attr, error)
	GetAttr(ctx context.Context, id FileID) (*Attr, error)
	SetAttr(ctx context.Context, id FileID, set SetAttr) (*Attr, error)

	// Read returns up to count bytes at offset and whether the end of the
	// file was reached.
	Read(ctx context.Context, id FileID, offset uint64, count uint32) ([]byte, bool, error)
	Write(ctx context.Context, id FileID, offset uint64, data []byte) (*Attr, error)

	// Create makes a new regular file; it fails with ErrExist when name is
	// taken.
	Create(ctx context.Context, dir FileID, name string, set SetAttr) (FileID, *Attr, error)

	// CreateExclusive makes a new regular file tagged with verf. A retry
	// with the same verifier returns the file created by the first call.
	CreateExclusive(ctx context.Context, dir FileID, name string, verf [8]byte) (FileID, *Attr, error)

	// Remove unlinks a file or symlink, or removes an empty directory.
	Remove(ctx context.Context, dir FileID, name string) error
	Rename(ctx context.Context, fromDir FileID, fromName string, toDir FileID, toName string) error
	Mkdir(ctx context.Context, dir FileID, name string, set SetAttr) (FileID, *Attr, error)
	Symlink(ctx context.Context, dir FileID, name, target string, set SetAttr) (FileID, *Attr, error)
	ReadLink(ctx context.Context, id FileID) (string, error)

	// ReadDir lists dir in name order, resuming after cookie (0 starts at
	// the beginning). At most limit entries are returned; the bool reports
	// whether the listing is complete.
	ReadDir(ctx context.Context, dir FileID, cookie uint64, limit int) ([]DirEntry, bool, error)
}
