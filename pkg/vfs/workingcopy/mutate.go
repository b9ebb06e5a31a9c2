package workingcopy

import (
	"context"

	"github.com/marmos91/yak/pkg/vfs"
)

func (fs *FS) SetAttr(ctx context.Context, id vfs.FileID, set vfs.SetAttr) (*vfs.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.node("setattr", id)
	if err != nil {
		return nil, err
	}
	if n.kind == kindConflict && (set.Size != nil || set.Mode != nil) {
		return nil, vfs.NewError(vfs.ErrReadOnly, "setattr", n.name)
	}

	if set.Size != nil {
		switch n.kind {
		case kindDir:
			return nil, vfs.NewError(vfs.ErrIsDir, "setattr", n.name)
		case kindSymlink:
			return nil, vfs.NewError(vfs.ErrInvalid, "setattr", n.name)
		}
		if err := fs.truncate(ctx, n, *set.Size); err != nil {
			return nil, err
		}
	}
	if set.Mode != nil {
		wasExec := n.executable()
		n.mode = *set.Mode & 0o7777
		if n.executable() != wasExec {
			fs.invalidate(n)
		}
	}
	if set.UID != nil {
		n.uid = *set.UID
	}
	if set.GID != nil {
		n.gid = *set.GID
	}
	if set.Atime != nil {
		n.atime = *set.Atime
	}
	if set.Mtime != nil {
		n.mtime = *set.Mtime
	}
	n.ctime = fs.opts.Now()
	return fs.attr(n), nil
}

func (fs *FS) truncate(ctx context.Context, n *node, size uint64) error {
	if size == n.size {
		return nil
	}
	if size > fs.opts.Capabilities.MaxFileSize {
		return vfs.NewError(vfs.ErrInvalid, "setattr", n.name)
	}
	if err := fs.ensureLoaded(ctx, "setattr", n); err != nil {
		return err
	}
	if size < uint64(len(n.content)) {
		n.content = n.content[:size]
	} else {
		n.content = append(n.content, make([]byte, size-uint64(len(n.content)))...)
	}
	fs.markWritten(n)
	return nil
}

// markWritten records a content change of a file node.
func (fs *FS) markWritten(n *node) {
	n.size = uint64(len(n.content))
	n.stored = false
	now := fs.opts.Now()
	n.mtime, n.ctime = now, now
	fs.invalidate(n)
}

func (fs *FS) Write(ctx context.Context, id vfs.FileID, offset uint64, data []byte) (*vfs.Attr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.node("write", id)
	if err != nil {
		return nil, err
	}
	switch n.kind {
	case kindDir:
		return nil, vfs.NewError(vfs.ErrIsDir, "write", n.name)
	case kindSymlink:
		return nil, vfs.NewError(vfs.ErrInvalid, "write", n.name)
	case kindConflict:
		return nil, vfs.NewError(vfs.ErrReadOnly, "write", n.name)
	}

	end := offset + uint64(len(data))
	if end < offset || end > fs.opts.Capabilities.MaxFileSize {
		return nil, vfs.NewError(vfs.ErrInvalid, "write", n.name)
	}
	if err := fs.ensureLoaded(ctx, "write", n); err != nil {
		return nil, err
	}
	if end > uint64(len(n.content)) {
		n.content = append(n.content, make([]byte, end-uint64(len(n.content)))...)
	}
	copy(n.content[offset:end], data)
	fs.markWritten(n)
	return fs.attr(n), nil
}

// applyCreateAttrs applies the attributes NFS clients send with CREATE,
// MKDIR and SYMLINK.
func applyCreateAttrs(n *node, set vfs.SetAttr) {
	if set.Mode != nil {
		n.mode = *set.Mode & 0o7777
	}
	if set.UID != nil {
		n.uid = *set.UID
	}
	if set.GID != nil {
		n.gid = *set.GID
	}
	if set.Atime != nil {
		n.atime = *set.Atime
	}
	if set.Mtime != nil {
		n.mtime = *set.Mtime
	}
}

func (fs *FS) prepareCreate(op string, dirID vfs.FileID, name string) (*node, error) {
	dir, err := fs.dir(op, dirID)
	if err != nil {
		return nil, err
	}
	if err := fs.checkName(op, name); err != nil {
		return nil, err
	}
	if _, exists := dir.children[name]; exists {
		return nil, vfs.NewError(vfs.ErrExist, op, name)
	}
	return dir, nil
}

func (fs *FS) newFile(dir *node, name string) *node {
	n := fs.newNode(kindFile, dir.id, name, defaultFileMode)
	n.content = []byte{}
	n.loaded = true
	return n
}

func (fs *FS) Create(ctx context.Context, dirID vfs.FileID, name string, set vfs.SetAttr) (vfs.FileID, *vfs.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := fs.prepareCreate("create", dirID, name)
	if err != nil {
		return 0, nil, err
	}

	n := fs.newFile(dir, name)
	applyCreateAttrs(n, set)
	fs.link(dir, n)
	if set.Size != nil && *set.Size > 0 {
		if err := fs.truncate(ctx, n, *set.Size); err != nil {
			return 0, nil, err
		}
	}
	return n.id, fs.attr(n), nil
}

func (fs *FS) CreateExclusive(ctx context.Context, dirID vfs.FileID, name string, verf [8]byte) (vfs.FileID, *vfs.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := fs.dir("create", dirID)
	if err != nil {
		return 0, nil, err
	}
	if existing, ok := fs.child(dir, name); ok {
		if existing.kind == kindFile && existing.verifier != nil && *existing.verifier == verf {
			return existing.id, fs.attr(existing), nil
		}
		return 0, nil, vfs.NewError(vfs.ErrExist, "create", name)
	}
	if err := fs.checkName("create", name); err != nil {
		return 0, nil, err
	}

	n := fs.newFile(dir, name)
	n.verifier = &verf
	fs.link(dir, n)
	return n.id, fs.attr(n), nil
}

func (fs *FS) Mkdir(ctx context.Context, dirID vfs.FileID, name string, set vfs.SetAttr) (vfs.FileID, *vfs.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := fs.prepareCreate("mkdir", dirID, name)
	if err != nil {
		return 0, nil, err
	}

	n := fs.newNode(kindDir, dir.id, name, defaultDirMode)
	applyCreateAttrs(n, set)
	fs.link(dir, n)
	return n.id, fs.attr(n), nil
}

func (fs *FS) Symlink(ctx context.Context, dirID vfs.FileID, name, target string, set vfs.SetAttr) (vfs.FileID, *vfs.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := fs.prepareCreate("symlink", dirID, name)
	if err != nil {
		return 0, nil, err
	}
	if target == "" {
		return 0, nil, vfs.NewError(vfs.ErrInvalid, "symlink", name)
	}

	n := fs.newNode(kindSymlink, dir.id, name, defaultSymlinkMode)
	n.target = target
	applyCreateAttrs(n, set)
	fs.link(dir, n)
	return n.id, fs.attr(n), nil
}

func (fs *FS) Remove(ctx context.Context, dirID vfs.FileID, name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := fs.dir("remove", dirID)
	if err != nil {
		return err
	}
	if name == "." || name == ".." {
		return vfs.NewError(vfs.ErrInvalid, "remove", name)
	}
	n, ok := fs.child(dir, name)
	if !ok {
		return vfs.NewError(vfs.ErrNotFound, "remove", name)
	}
	if n.kind == kindDir && len(n.children) > 0 {
		return vfs.NewError(vfs.ErrNotEmpty, "remove", name)
	}

	fs.unlink(dir, n)
	return nil
}

func (fs *FS) unlink(dir *node, n *node) {
	delete(dir.children, n.name)
	delete(fs.nodes, n.id)
	now := fs.opts.Now()
	dir.mtime, dir.ctime = now, now
	fs.invalidate(dir)
}

// isAncestor reports whether a is d or one of d's ancestors.
func (fs *FS) isAncestor(a, d *node) bool {
	for {
		if d.id == a.id {
			return true
		}
		if d.id == rootID {
			return false
		}
		d = fs.nodes[d.parent]
	}
}

func (fs *FS) Rename(ctx context.Context, fromDirID vfs.FileID, fromName string, toDirID vfs.FileID, toName string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	from, err := fs.dir("rename", fromDirID)
	if err != nil {
		return err
	}
	to, err := fs.dir("rename", toDirID)
	if err != nil {
		return err
	}
	if fromName == "." || fromName == ".." {
		return vfs.NewError(vfs.ErrInvalid, "rename", fromName)
	}
	if err := fs.checkName("rename", toName); err != nil {
		return err
	}

	src, ok := fs.child(from, fromName)
	if !ok {
		return vfs.NewError(vfs.ErrNotFound, "rename", fromName)
	}
	if from.id == to.id && fromName == toName {
		return nil
	}
	if src.kind == kindDir && fs.isAncestor(src, to) {
		return vfs.NewError(vfs.ErrInvalid, "rename", toName)
	}

	if dst, exists := fs.child(to, toName); exists {
		switch {
		case src.kind == kindDir && dst.kind != kindDir:
			return vfs.NewError(vfs.ErrNotDir, "rename", toName)
		case src.kind != kindDir && dst.kind == kindDir:
			return vfs.NewError(vfs.ErrIsDir, "rename", toName)
		case dst.kind == kindDir && len(dst.children) > 0:
			return vfs.NewError(vfs.ErrNotEmpty, "rename", toName)
		}
		fs.unlink(to, dst)
	}

	delete(from.children, fromName)
	now := fs.opts.Now()
	from.mtime, from.ctime = now, now
	fs.invalidate(from)

	src.parent = to.id
	src.name = toName
	src.ctime = now
	fs.link(to, src)
	return nil
}
