package workingcopy

import (
	"fmt"
	"time"

	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/vfs"
)

type nodeKind uint8

const (
	kindFile nodeKind = iota
	kindDir
	kindSymlink
	kindConflict
)

// node is one inode of the working copy.
//
// Leaves carry their last stored object id in blob. stored is false while
// the node holds changes that only exist in the journal (content for files,
// target for new symlinks); snapshot writes those and flips stored back.
type node struct {
	id     vfs.FileID
	parent vfs.FileID
	name   string
	kind   nodeKind

	mode  uint32
	uid   uint32
	gid   uint32
	atime time.Time
	mtime time.Time
	ctime time.Time

	blob   object.ID
	stored bool

	// files: content is the journal buffer once loaded
	content  []byte
	loaded   bool
	size     uint64
	verifier *[8]byte

	// symlinks
	target string

	// conflicts
	conflict object.ID

	// directories: tree is the id of the last tree written or checked out
	// for this directory, valid until something below it changes
	children  map[string]vfs.FileID
	tree      object.ID
	treeValid bool
}

func (n *node) executable() bool {
	return n.kind == kindFile && n.mode&0o100 != 0
}

// entry returns the tree entry the node would snapshot to, hashing journal
// content without storing it.
func (n *node) entry() object.TreeEntry {
	switch n.kind {
	case kindFile:
		id := n.blob
		if !n.stored {
			id = object.Hash(&object.File{Content: n.content})
		}
		return object.FileEntry(id, n.executable())
	case kindSymlink:
		id := n.blob
		if !n.stored {
			id = object.Hash(&object.Symlink{Target: n.target})
		}
		return object.SymlinkEntry(id)
	case kindConflict:
		return object.ConflictEntry(n.conflict)
	default:
		panic(fmt.Sprintf("workingcopy: entry of directory node %d", n.id))
	}
}

// conflictText is what reading a conflict entry yields.
func conflictText(id object.ID) []byte {
	return fmt.Appendf(nil, "unresolved conflict %s\n", id)
}

func (n *node) fileType() vfs.FileType {
	switch n.kind {
	case kindDir:
		return vfs.TypeDirectory
	case kindSymlink:
		return vfs.TypeSymlink
	default:
		return vfs.TypeRegular
	}
}

func (n *node) byteSize() uint64 {
	switch n.kind {
	case kindFile:
		return n.size
	case kindSymlink:
		return uint64(len(n.target))
	case kindConflict:
		return uint64(len(conflictText(n.conflict)))
	default:
		return 4096
	}
}
