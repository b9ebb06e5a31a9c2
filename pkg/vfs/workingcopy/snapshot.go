package workingcopy

import (
	"context"
	"fmt"

	"github.com/marmos91/yak/pkg/checkout"
	"github.com/marmos91/yak/pkg/object"
)

// Snapshot stores every changed file, symlink and directory bottom-up and
// returns the new root tree id. Directories whose cached tree is still
// valid are reused without touching the store. Directories with no leaves
// below them are left out, since a checkout mapping cannot hold them.
//
// A node only forgets its pending change after the store accepted the
// object, so a failed snapshot can simply be retried.
func (fs *FS) Snapshot(ctx context.Context) (object.ID, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries := make(map[string]object.TreeEntry)
	root, _, err := fs.snapshotDir(ctx, fs.nodes[rootID], "", entries)
	if err != nil {
		return object.ID{}, err
	}

	fs.state.RootTree = root
	fs.state.Entries = entries
	return root, nil
}

func (fs *FS) snapshotDir(ctx context.Context, dir *node, prefix string, out map[string]object.TreeEntry) (object.ID, bool, error) {
	if err := ctx.Err(); err != nil {
		return object.ID{}, false, err
	}
	if dir.treeValid {
		leaves := fs.collect(dir, prefix, out)
		return dir.tree, leaves > 0, nil
	}

	tree := &object.Tree{Entries: make([]object.TreeEntryMapping, 0, len(dir.children))}
	for name, id := range dir.children {
		n := fs.nodes[id]
		p := checkout.Join(prefix, name)

		var entry object.TreeEntry
		if n.kind == kindDir {
			sub, hasLeaves, err := fs.snapshotDir(ctx, n, p, out)
			if err != nil {
				return object.ID{}, false, err
			}
			if !hasLeaves {
				continue
			}
			entry = object.TreeEntryOf(sub)
		} else {
			e, err := fs.storeLeaf(ctx, n)
			if err != nil {
				return object.ID{}, false, fmt.Errorf("snapshot %q: %w", p, err)
			}
			entry = e
			out[p] = e
		}
		tree.Entries = append(tree.Entries, object.TreeEntryMapping{Name: name, Entry: entry})
	}

	if len(tree.Entries) == 0 {
		dir.tree = fs.store.EmptyTreeID()
		dir.treeValid = true
		return dir.tree, false, nil
	}

	tree.SortEntries()
	id, err := fs.store.WriteTree(ctx, tree)
	if err != nil {
		return object.ID{}, false, fmt.Errorf("snapshot %q: %w", prefix, err)
	}
	dir.tree = id
	dir.treeValid = true
	return id, true, nil
}

// storeLeaf writes a leaf's pending change, if any, and returns its entry.
func (fs *FS) storeLeaf(ctx context.Context, n *node) (object.TreeEntry, error) {
	switch n.kind {
	case kindFile:
		if !n.stored {
			id, err := fs.store.WriteFile(ctx, &object.File{Content: n.content})
			if err != nil {
				return object.TreeEntry{}, err
			}
			n.blob = id
			n.stored = true
		}
	case kindSymlink:
		if !n.stored {
			id, err := fs.store.WriteSymlink(ctx, &object.Symlink{Target: n.target})
			if err != nil {
				return object.TreeEntry{}, err
			}
			n.blob = id
			n.stored = true
		}
	}
	return n.entry(), nil
}

// collect adds the leaves below dir to out and returns how many it found.
func (fs *FS) collect(dir *node, prefix string, out map[string]object.TreeEntry) int {
	count := 0
	for name, id := range dir.children {
		n := fs.nodes[id]
		p := checkout.Join(prefix, name)
		if n.kind == kindDir {
			count += fs.collect(n, p, out)
			continue
		}
		out[p] = n.entry()
		count++
	}
	return count
}

// DirtyPaths returns the sorted paths whose current content differs from
// the last checkout or snapshot.
func (fs *FS) DirtyPaths() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	current := make(map[string]object.TreeEntry, len(fs.state.Entries))
	fs.collect(fs.nodes[rootID], "", current)
	return checkout.Diff(fs.state.Entries, current)
}

// State returns a copy of the checkout the working copy was last
// synchronized with.
func (fs *FS) State() *checkout.State {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.state.Clone()
}
