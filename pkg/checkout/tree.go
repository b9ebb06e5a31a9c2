package checkout

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/marmos91/yak/pkg/object"
)

// TreeReader is the subset of the object store Flatten needs.
type TreeReader interface {
	ReadTree(ctx context.Context, id object.ID) (*object.Tree, error)
}

// TreeWriter is the subset of the object store Build needs.
type TreeWriter interface {
	WriteTree(ctx context.Context, t *object.Tree) (object.ID, error)
}

// Flatten walks the tree rooted at root and returns its leaf mapping.
func Flatten(ctx context.Context, r TreeReader, root object.ID) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)
	if err := flatten(ctx, r, root, "", entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func flatten(ctx context.Context, r TreeReader, id object.ID, prefix string, out map[string]object.TreeEntry) error {
	tree, err := r.ReadTree(ctx, id)
	if err != nil {
		return fmt.Errorf("read tree %s at %q: %w", id.Short(), prefix, err)
	}
	for _, m := range tree.Entries {
		p := Join(prefix, m.Name)
		if m.Entry.Kind == object.KindTree {
			if err := flatten(ctx, r, m.Entry.ID, p, out); err != nil {
				return err
			}
			continue
		}
		out[p] = m.Entry
	}
	return nil
}

// dirNode is an intermediate directory while building trees.
type dirNode struct {
	leaves  map[string]object.TreeEntry
	subdirs map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{
		leaves:  make(map[string]object.TreeEntry),
		subdirs: make(map[string]*dirNode),
	}
}

// Build writes the trees for a validated leaf mapping bottom-up and returns
// the root tree id. Every tree is sorted by name. An empty mapping yields
// the empty tree.
func Build(ctx context.Context, w TreeWriter, entries map[string]object.TreeEntry) (object.ID, error) {
	if err := Validate(entries); err != nil {
		return object.ID{}, err
	}

	root := newDirNode()
	for p, e := range entries {
		dir, name := Split(p)
		node := root
		if dir != "" {
			for part := range strings.SplitSeq(dir, "/") {
				child, ok := node.subdirs[part]
				if !ok {
					child = newDirNode()
					node.subdirs[part] = child
				}
				node = child
			}
		}
		node.leaves[name] = e
	}
	return root.write(ctx, w)
}

func (n *dirNode) write(ctx context.Context, w TreeWriter) (object.ID, error) {
	tree := &object.Tree{Entries: make([]object.TreeEntryMapping, 0, len(n.leaves)+len(n.subdirs))}
	for name, e := range n.leaves {
		tree.Entries = append(tree.Entries, object.TreeEntryMapping{Name: name, Entry: e})
	}
	for name, sub := range n.subdirs {
		id, err := sub.write(ctx, w)
		if err != nil {
			return object.ID{}, err
		}
		tree.Entries = append(tree.Entries, object.TreeEntryMapping{Name: name, Entry: object.TreeEntryOf(id)})
	}
	tree.SortEntries()
	return w.WriteTree(ctx, tree)
}

// Equal reports whether two mappings bind the same paths to the same
// entries.
func Equal(a, b map[string]object.TreeEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for p, e := range a {
		if other, ok := b[p]; !ok || other != e {
			return false
		}
	}
	return true
}

// Diff returns the sorted paths whose entries differ between a and b,
// including paths present in only one of them.
func Diff(a, b map[string]object.TreeEntry) []string {
	var out []string
	for p, e := range a {
		if other, ok := b[p]; !ok || other != e {
			out = append(out, p)
		}
	}
	for p := range b {
		if _, ok := a[p]; !ok {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}
