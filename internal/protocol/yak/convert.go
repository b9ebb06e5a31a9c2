package yak

import (
	"errors"
	"fmt"

	"github.com/marmos91/yak/pkg/checkout"
	"github.com/marmos91/yak/pkg/object"
)

// ErrUnknownKind is returned for a wire tree entry with an unknown kind.
var ErrUnknownKind = errors.New("unknown tree entry kind")

func FromID(id object.ID) ID {
	return ID(id)
}

func (id ID) Object() object.ID {
	return object.ID(id)
}

func fromIDs(ids []object.ID) []ID {
	out := make([]ID, len(ids))
	for i, id := range ids {
		out[i] = FromID(id)
	}
	return out
}

func toIDs(ids []ID) []object.ID {
	out := make([]object.ID, len(ids))
	for i, id := range ids {
		out[i] = id.Object()
	}
	return out
}

func FromFile(f *object.File) *File {
	return &File{Content: f.Content}
}

func (f *File) Object() *object.File {
	return &object.File{Content: f.Content}
}

func FromSymlink(s *object.Symlink) *Symlink {
	return &Symlink{Target: s.Target}
}

func (s *Symlink) Object() *object.Symlink {
	return &object.Symlink{Target: s.Target}
}

func FromTreeEntry(e object.TreeEntry) TreeEntry {
	switch e.Kind {
	case object.KindFile:
		return TreeEntry{Kind: EntryFile, ID: FromID(e.ID), Executable: e.Executable}
	case object.KindTree:
		return TreeEntry{Kind: EntryTree, ID: FromID(e.ID)}
	case object.KindSymlink:
		return TreeEntry{Kind: EntrySymlink, ID: FromID(e.ID)}
	case object.KindConflict:
		return TreeEntry{Kind: EntryConflict, ID: FromID(e.ID)}
	default:
		// Stores reject unknown kinds, so this only passes a value through
		// for the peer to refuse.
		return TreeEntry{Kind: uint32(e.Kind), ID: FromID(e.ID)}
	}
}

// Object converts a wire entry. The executable flag is dropped for every
// kind but files.
func (e TreeEntry) Object() (object.TreeEntry, error) {
	id := e.ID.Object()
	switch e.Kind {
	case EntryFile:
		return object.FileEntry(id, e.Executable), nil
	case EntryTree:
		return object.TreeEntryOf(id), nil
	case EntrySymlink:
		return object.SymlinkEntry(id), nil
	case EntryConflict:
		return object.ConflictEntry(id), nil
	default:
		return object.TreeEntry{}, fmt.Errorf("%w %d", ErrUnknownKind, e.Kind)
	}
}

func FromTree(t *object.Tree) *Tree {
	out := &Tree{Entries: make([]TreeEntryMapping, len(t.Entries))}
	for i, m := range t.Entries {
		out.Entries[i] = TreeEntryMapping{Name: m.Name, Entry: FromTreeEntry(m.Entry)}
	}
	return out
}

func (t *Tree) Object() (*object.Tree, error) {
	out := &object.Tree{Entries: make([]object.TreeEntryMapping, len(t.Entries))}
	for i, m := range t.Entries {
		entry, err := m.Entry.Object()
		if err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i, m.Name, err)
		}
		out.Entries[i] = object.TreeEntryMapping{Name: m.Name, Entry: entry}
	}
	return out, nil
}

func fromSignature(s *object.CommitSignature) (bool, Signature) {
	if s == nil {
		return false, Signature{}
	}
	return true, Signature{
		Name:      s.Name,
		Email:     s.Email,
		Timestamp: Timestamp{MillisSinceEpoch: s.Timestamp.MillisSinceEpoch, TZOffset: s.Timestamp.TZOffset},
	}
}

func (s Signature) object(present bool) *object.CommitSignature {
	if !present {
		return nil
	}
	return &object.CommitSignature{
		Name:      s.Name,
		Email:     s.Email,
		Timestamp: object.CommitTimestamp{MillisSinceEpoch: s.Timestamp.MillisSinceEpoch, TZOffset: s.Timestamp.TZOffset},
	}
}

func FromCommit(c *object.Commit) *Commit {
	out := &Commit{
		Parents:                fromIDs(c.Parents),
		Predecessors:           fromIDs(c.Predecessors),
		RootTree:               FromID(c.RootTree),
		UsesTreeConflictFormat: c.UsesTreeConflictFormat,
		ChangeID:               c.ChangeID,
		Description:            c.Description,
	}
	out.HasAuthor, out.Author = fromSignature(c.Author)
	out.HasCommitter, out.Committer = fromSignature(c.Committer)
	return out
}

func (c *Commit) Object() *object.Commit {
	return &object.Commit{
		Parents:                toIDs(c.Parents),
		Predecessors:           toIDs(c.Predecessors),
		RootTree:               c.RootTree.Object(),
		UsesTreeConflictFormat: c.UsesTreeConflictFormat,
		ChangeID:               c.ChangeID,
		Description:            c.Description,
		Author:                 c.Author.object(c.HasAuthor),
		Committer:              c.Committer.object(c.HasCommitter),
	}
}

// FromCheckoutState converts a checkout; entries are sorted by path.
func FromCheckoutState(st *checkout.State) CheckoutState {
	out := CheckoutState{
		OperationID: st.OperationID,
		RootTree:    FromID(st.RootTree),
		HasEntries:  st.Entries != nil,
		Entries:     make([]PathEntry, 0, len(st.Entries)),
	}
	for _, p := range st.Paths() {
		out.Entries = append(out.Entries, PathEntry{Path: p, Entry: FromTreeEntry(st.Entries[p])})
	}
	return out
}

// Object converts a wire checkout for workspace. Duplicate paths are an
// error.
func (s *CheckoutState) Object(workspace string) (*checkout.State, error) {
	st := &checkout.State{
		WorkspaceID: workspace,
		OperationID: s.OperationID,
		RootTree:    s.RootTree.Object(),
	}
	if !s.HasEntries {
		return st, nil
	}

	st.Entries = make(map[string]object.TreeEntry, len(s.Entries))
	for _, pe := range s.Entries {
		if _, dup := st.Entries[pe.Path]; dup {
			return nil, fmt.Errorf("%w: duplicate path %q", checkout.ErrInvalidPath, pe.Path)
		}
		entry, err := pe.Entry.Object()
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", pe.Path, err)
		}
		st.Entries[pe.Path] = entry
	}
	return st, nil
}
