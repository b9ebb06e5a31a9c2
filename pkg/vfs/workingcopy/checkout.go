package workingcopy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/marmos91/yak/pkg/checkout"
	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/store"
	"github.com/marmos91/yak/pkg/vfs"
)

var (
	// ErrMissingObject is returned when a checkout references an object the
	// store does not hold.
	ErrMissingObject = errors.New("checkout references a missing object")

	// ErrRootMismatch is returned when a checkout carries both a root tree
	// and a mapping that do not describe the same content.
	ErrRootMismatch = errors.New("root tree does not match checkout entries")
)

// Checkout replaces the working copy with st.
//
// A zero RootTree means the tree is built from st.Entries. Nil Entries
// means the mapping is read from RootTree. When both are present they must
// agree. Everything is validated before the current inode table, including
// any unsnapshotted change, is discarded.
func (fs *FS) Checkout(ctx context.Context, st *checkout.State) error {
	root, entries, err := fs.resolve(ctx, st)
	if err != nil {
		return err
	}

	loaded, err := fs.loadObjects(ctx, entries)
	if err != nil {
		return err
	}
	if root.IsZero() {
		if root, err = checkout.Build(ctx, fs.store, entries); err != nil {
			return err
		}
	}

	nodes := map[vfs.FileID]*node{}
	rootNode := fs.newRoot()
	nodes[rootID] = rootNode
	if err := fs.materialize(ctx, nodes, rootNode, root, loaded); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.nodes = nodes
	fs.state = &checkout.State{
		WorkspaceID: fs.state.WorkspaceID,
		OperationID: slices.Clone(st.OperationID),
		RootTree:    root,
		Entries:     entries,
	}
	return nil
}

// resolve returns the validated mapping of st and its root tree, which is
// zero when the tree still has to be built from the mapping.
func (fs *FS) resolve(ctx context.Context, st *checkout.State) (object.ID, map[string]object.TreeEntry, error) {
	if st.RootTree.IsZero() {
		entries := maps.Clone(st.Entries)
		if entries == nil {
			entries = map[string]object.TreeEntry{}
		}
		if err := checkout.Validate(entries); err != nil {
			return object.ID{}, nil, err
		}
		return object.ID{}, entries, nil
	}

	flat, err := checkout.Flatten(ctx, fs.store, st.RootTree)
	if store.IsNotFound(err) {
		return object.ID{}, nil, fmt.Errorf("%w: %w", ErrMissingObject, err)
	}
	if err != nil {
		return object.ID{}, nil, err
	}
	if st.Entries != nil {
		if err := checkout.Validate(st.Entries); err != nil {
			return object.ID{}, nil, err
		}
		if !checkout.Equal(flat, st.Entries) {
			return object.ID{}, nil, fmt.Errorf("%w: differing paths %v", ErrRootMismatch, checkout.Diff(flat, st.Entries))
		}
	}
	return st.RootTree, flat, nil
}

// loadedObjects holds what materialize needs from leaf objects.
type loadedObjects struct {
	sizes   map[object.ID]uint64
	targets map[object.ID]string
}

// loadObjects reads every file and symlink the mapping references.
func (fs *FS) loadObjects(ctx context.Context, entries map[string]object.TreeEntry) (*loadedObjects, error) {
	out := &loadedObjects{
		sizes:   make(map[object.ID]uint64),
		targets: make(map[object.ID]string),
	}
	for _, p := range slices.Sorted(maps.Keys(entries)) {
		e := entries[p]
		switch e.Kind {
		case object.KindFile:
			if _, ok := out.sizes[e.ID]; ok {
				continue
			}
			f, err := fs.store.ReadFile(ctx, e.ID)
			if err != nil {
				return nil, missing(p, err)
			}
			out.sizes[e.ID] = uint64(len(f.Content))
		case object.KindSymlink:
			if _, ok := out.targets[e.ID]; ok {
				continue
			}
			l, err := fs.store.ReadSymlink(ctx, e.ID)
			if err != nil {
				return nil, missing(p, err)
			}
			out.targets[e.ID] = l.Target
		}
	}
	return out, nil
}

func missing(path string, err error) error {
	if store.IsNotFound(err) {
		return fmt.Errorf("%w at %q: %w", ErrMissingObject, path, err)
	}
	return fmt.Errorf("load %q: %w", path, err)
}

// materialize builds the inode subtree for tree id below dir.
func (fs *FS) materialize(ctx context.Context, nodes map[vfs.FileID]*node, dir *node, id object.ID, loaded *loadedObjects) error {
	tree, err := fs.store.ReadTree(ctx, id)
	if err != nil {
		return fmt.Errorf("read tree %s: %w", id.Short(), err)
	}
	dir.tree = id
	dir.treeValid = true

	for _, m := range tree.Entries {
		var n *node
		switch m.Entry.Kind {
		case object.KindTree:
			n = fs.newNode(kindDir, dir.id, m.Name, defaultDirMode)
			if err := fs.materialize(ctx, nodes, n, m.Entry.ID, loaded); err != nil {
				return err
			}
		case object.KindFile:
			mode := uint32(defaultFileMode)
			if m.Entry.Executable {
				mode = defaultExecMode
			}
			n = fs.newNode(kindFile, dir.id, m.Name, mode)
			n.blob = m.Entry.ID
			n.stored = true
			n.size = loaded.sizes[m.Entry.ID]
		case object.KindSymlink:
			n = fs.newNode(kindSymlink, dir.id, m.Name, defaultSymlinkMode)
			n.blob = m.Entry.ID
			n.stored = true
			n.target = loaded.targets[m.Entry.ID]
		case object.KindConflict:
			n = fs.newNode(kindConflict, dir.id, m.Name, conflictMode)
			n.conflict = m.Entry.ID
			n.stored = true
		default:
			return fmt.Errorf("%w %d at %q", object.ErrUnknownKind, uint8(m.Entry.Kind), m.Name)
		}
		nodes[n.id] = n
		dir.children[m.Name] = n.id
	}
	return nil
}
