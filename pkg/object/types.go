package object

import (
	"bytes"
	"fmt"
	"slices"
)

// EntryKind discriminates the variants of TreeEntry. The numeric values are
// part of the hash encoding and must never change.
type EntryKind uint8

const (
	KindFile EntryKind = iota
	KindTree
	KindSymlink
	KindConflict
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindTree:
		return "tree"
	case KindSymlink:
		return "symlink"
	case KindConflict:
		return "conflict"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the known variants.
func (k EntryKind) Valid() bool {
	switch k {
	case KindFile, KindTree, KindSymlink, KindConflict:
		return true
	default:
		return false
	}
}

// File is a content blob.
type File struct {
	Content []byte
}

func (f *File) Clone() *File {
	return &File{Content: bytes.Clone(f.Content)}
}

// Symlink stores the target path of a symbolic link.
type Symlink struct {
	Target string
}

func (s *Symlink) Clone() *Symlink {
	c := *s
	return &c
}

// TreeEntry is one named child of a Tree. Executable is only meaningful
// when Kind is KindFile.
type TreeEntry struct {
	Kind       EntryKind
	ID         ID
	Executable bool
}

func FileEntry(id ID, executable bool) TreeEntry {
	return TreeEntry{Kind: KindFile, ID: id, Executable: executable}
}

func TreeEntryOf(id ID) TreeEntry {
	return TreeEntry{Kind: KindTree, ID: id}
}

func SymlinkEntry(id ID) TreeEntry {
	return TreeEntry{Kind: KindSymlink, ID: id}
}

func ConflictEntry(id ID) TreeEntry {
	return TreeEntry{Kind: KindConflict, ID: id}
}

func (e TreeEntry) String() string {
	if e.Kind == KindFile && e.Executable {
		return fmt.Sprintf("file+x:%s", e.ID.Short())
	}
	return fmt.Sprintf("%s:%s", e.Kind, e.ID.Short())
}

type TreeEntryMapping struct {
	Name  string
	Entry TreeEntry
}

// Tree is a directory snapshot. Entry order is significant for hashing.
type Tree struct {
	Entries []TreeEntryMapping
}

func (t *Tree) Clone() *Tree {
	return &Tree{Entries: slices.Clone(t.Entries)}
}

// Lookup returns the entry called name.
func (t *Tree) Lookup(name string) (TreeEntry, bool) {
	for _, m := range t.Entries {
		if m.Name == name {
			return m.Entry, true
		}
	}
	return TreeEntry{}, false
}

// SortEntries orders entries by name, the canonical order of trees the
// daemon builds itself.
func (t *Tree) SortEntries() {
	slices.SortFunc(t.Entries, func(a, b TreeEntryMapping) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})
}

type CommitTimestamp struct {
	MillisSinceEpoch int64
	// TZOffset is the UTC offset in minutes.
	TZOffset int32
}

type CommitSignature struct {
	Name      string
	Email     string
	Timestamp CommitTimestamp
}

func (s *CommitSignature) clone() *CommitSignature {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

type Commit struct {
	Parents                []ID
	Predecessors           []ID
	RootTree               ID
	UsesTreeConflictFormat bool
	ChangeID               []byte
	Description            string
	Author                 *CommitSignature
	Committer              *CommitSignature
}

func (c *Commit) Clone() *Commit {
	return &Commit{
		Parents:                slices.Clone(c.Parents),
		Predecessors:           slices.Clone(c.Predecessors),
		RootTree:               c.RootTree,
		UsesTreeConflictFormat: c.UsesTreeConflictFormat,
		ChangeID:               bytes.Clone(c.ChangeID),
		Description:            c.Description,
		Author:                 c.Author.clone(),
		Committer:              c.Committer.clone(),
	}
}
