// Package workingcopy implements vfs.FileSystem over a workspace checkout.
//
// Clean files are read from the object store by id. The first write to a
// file copies its content into a per-node journal buffer; the node and every
// directory above it are then dirty until Snapshot stores the journal as new
// objects. Checkout replaces the whole inode table at once.
package workingcopy

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/yak/pkg/checkout"
	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/store"
	"github.com/marmos91/yak/pkg/vfs"
)

const rootID vfs.FileID = 1

const (
	defaultFileMode    = 0o644
	defaultExecMode    = 0o755
	defaultDirMode     = 0o755
	defaultSymlinkMode = 0o777
	conflictMode       = 0o444
)

// Options configures attribute defaults.
type Options struct {
	// UID and GID own every node unless changed through SetAttr
	UID uint32
	GID uint32

	// Now is the clock used for timestamps (default: time.Now)
	Now func() time.Time

	// Capabilities overrides vfs.DefaultCapabilities when MaxNameLen is set
	Capabilities vfs.Capabilities
}

// FS is the live working copy of one workspace.
//
// One RWMutex guards the inode table. Snapshot holds it exclusively for the
// whole walk and so sees a single consistent tree.
type FS struct {
	store store.ObjectStore
	opts  Options

	nextID atomic.Uint64

	mu    sync.RWMutex
	nodes map[vfs.FileID]*node
	state *checkout.State
}

var _ vfs.FileSystem = (*FS)(nil)

// New returns a working copy of workspace checked out at the empty tree.
func New(s store.ObjectStore, workspace string, opts Options) *FS {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Capabilities.MaxNameLen == 0 {
		opts.Capabilities = vfs.DefaultCapabilities()
	}

	fs := &FS{
		store: s,
		opts:  opts,
		state: &checkout.State{
			WorkspaceID: workspace,
			RootTree:    s.EmptyTreeID(),
			Entries:     map[string]object.TreeEntry{},
		},
	}
	fs.nextID.Store(uint64(rootID))
	root := fs.newRoot()
	root.tree = s.EmptyTreeID()
	root.treeValid = true
	fs.nodes = map[vfs.FileID]*node{rootID: root}
	return fs
}

// Workspace returns the workspace key this working copy belongs to.
func (fs *FS) Workspace() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.state.WorkspaceID
}

func (fs *FS) Root() vfs.FileID {
	return rootID
}

func (fs *FS) Capabilities() vfs.Capabilities {
	return fs.opts.Capabilities
}

// ============================================================================
// Inode table helpers (callers hold mu)
// ============================================================================

func (fs *FS) newRoot() *node {
	now := fs.opts.Now()
	return &node{
		id:       rootID,
		parent:   rootID,
		kind:     kindDir,
		mode:     defaultDirMode,
		uid:      fs.opts.UID,
		gid:      fs.opts.GID,
		atime:    now,
		mtime:    now,
		ctime:    now,
		children: make(map[string]vfs.FileID),
	}
}

// newNode creates a detached node with a fresh id.
func (fs *FS) newNode(kind nodeKind, parent vfs.FileID, name string, mode uint32) *node {
	now := fs.opts.Now()
	n := &node{
		id:     vfs.FileID(fs.nextID.Add(1)),
		parent: parent,
		name:   name,
		kind:   kind,
		mode:   mode,
		uid:    fs.opts.UID,
		gid:    fs.opts.GID,
		atime:  now,
		mtime:  now,
		ctime:  now,
	}
	if kind == kindDir {
		n.children = make(map[string]vfs.FileID)
	}
	return n
}

// link inserts n under dir and marks dir modified.
func (fs *FS) link(dir *node, n *node) {
	fs.nodes[n.id] = n
	dir.children[n.name] = n.id
	now := fs.opts.Now()
	dir.mtime, dir.ctime = now, now
	fs.invalidate(dir)
}

func (fs *FS) node(op string, id vfs.FileID) (*node, error) {
	n, ok := fs.nodes[id]
	if !ok {
		return nil, vfs.NewError(vfs.ErrStale, op, "")
	}
	return n, nil
}

func (fs *FS) dir(op string, id vfs.FileID) (*node, error) {
	n, err := fs.node(op, id)
	if err != nil {
		return nil, err
	}
	if n.kind != kindDir {
		return nil, vfs.NewError(vfs.ErrNotDir, op, n.name)
	}
	return n, nil
}

func (fs *FS) child(dir *node, name string) (*node, bool) {
	id, ok := dir.children[name]
	if !ok {
		return nil, false
	}
	return fs.nodes[id], true
}

// invalidate drops the cached tree id of n (when n is a directory) and of
// every directory above it.
func (fs *FS) invalidate(n *node) {
	if n.kind != kindDir {
		n = fs.nodes[n.parent]
	}
	for {
		n.treeValid = false
		if n.id == rootID {
			return
		}
		n = fs.nodes[n.parent]
	}
}

func (fs *FS) checkName(op, name string) error {
	if uint32(len(name)) > fs.opts.Capabilities.MaxNameLen {
		return vfs.NewError(vfs.ErrNameTooLong, op, name)
	}
	if err := object.ValidateName(name); err != nil {
		return &vfs.Error{Code: vfs.ErrInvalid, Op: op, Name: name, Err: err}
	}
	return nil
}

func (fs *FS) attr(n *node) *vfs.Attr {
	a := &vfs.Attr{
		ID:    n.id,
		Type:  n.fileType(),
		Mode:  n.mode,
		Nlink: 1,
		UID:   n.uid,
		GID:   n.gid,
		Size:  n.byteSize(),
		Atime: n.atime,
		Mtime: n.mtime,
		Ctime: n.ctime,
	}
	if n.kind == kindDir {
		a.Nlink = 2
		for _, id := range n.children {
			if fs.nodes[id].kind == kindDir {
				a.Nlink++
			}
		}
	}
	return a
}

// ensureLoaded copies a clean file's content into its journal buffer.
func (fs *FS) ensureLoaded(ctx context.Context, op string, n *node) error {
	if n.loaded {
		return nil
	}
	f, err := fs.store.ReadFile(ctx, n.blob)
	if err != nil {
		return vfs.WrapError(op, n.name, err)
	}
	n.content = f.Content
	n.loaded = true
	return nil
}

// ============================================================================
// Read-only operations
// ============================================================================

func (fs *FS) GetAttr(ctx context.Context, id vfs.FileID) (*vfs.Attr, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.node("getattr", id)
	if err != nil {
		return nil, err
	}
	return fs.attr(n), nil
}

func (fs *FS) Lookup(ctx context.Context, dirID vfs.FileID, name string) (vfs.FileID, *vfs.Attr, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	dir, err := fs.dir("lookup", dirID)
	if err != nil {
		return 0, nil, err
	}

	switch name {
	case ".":
		return dir.id, fs.attr(dir), nil
	case "..":
		parent := fs.nodes[dir.parent]
		return parent.id, fs.attr(parent), nil
	}
	if uint32(len(name)) > fs.opts.Capabilities.MaxNameLen {
		return 0, nil, vfs.NewError(vfs.ErrNameTooLong, "lookup", name)
	}

	n, ok := fs.child(dir, name)
	if !ok {
		return 0, nil, vfs.NewError(vfs.ErrNotFound, "lookup", name)
	}
	return n.id, fs.attr(n), nil
}

func (fs *FS) Read(ctx context.Context, id vfs.FileID, offset uint64, count uint32) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.node("read", id)
	if err != nil {
		return nil, false, err
	}

	var data []byte
	switch n.kind {
	case kindDir:
		return nil, false, vfs.NewError(vfs.ErrIsDir, "read", n.name)
	case kindSymlink:
		return nil, false, vfs.NewError(vfs.ErrInvalid, "read", n.name)
	case kindConflict:
		data = conflictText(n.conflict)
	case kindFile:
		if n.loaded {
			data = n.content
		} else {
			f, err := fs.store.ReadFile(ctx, n.blob)
			if err != nil {
				return nil, false, vfs.WrapError("read", n.name, err)
			}
			data = f.Content
		}
	}

	size := uint64(len(data))
	if offset >= size {
		return []byte{}, true, nil
	}
	end := min(offset+uint64(count), size)
	return slices.Clone(data[offset:end]), end == size, nil
}

func (fs *FS) ReadLink(ctx context.Context, id vfs.FileID) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.node("readlink", id)
	if err != nil {
		return "", err
	}
	if n.kind != kindSymlink {
		return "", vfs.NewError(vfs.ErrInvalid, "readlink", n.name)
	}
	return n.target, nil
}

func (fs *FS) ReadDir(ctx context.Context, dirID vfs.FileID, cookie uint64, limit int) ([]vfs.DirEntry, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	dir, err := fs.dir("readdir", dirID)
	if err != nil {
		return nil, false, err
	}

	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	slices.Sort(names)

	if cookie >= uint64(len(names)) {
		return nil, true, nil
	}
	end := len(names)
	if limit > 0 && int(cookie)+limit < end {
		end = int(cookie) + limit
	}

	entries := make([]vfs.DirEntry, 0, end-int(cookie))
	for i := int(cookie); i < end; i++ {
		n := fs.nodes[dir.children[names[i]]]
		entries = append(entries, vfs.DirEntry{
			ID:     n.id,
			Name:   names[i],
			Cookie: uint64(i + 1),
			Attr:   fs.attr(n),
		})
	}
	return entries, end == len(names), nil
}
