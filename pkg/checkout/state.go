// Package checkout models the binding between a workspace's working copy and
// the object store: a flat mapping from slash-separated paths to the tree
// entries checked out at those paths.
//
// Only leaf entries (files, symlinks, conflicts) appear in a mapping.
// Directories are implied by the paths below them, so an empty directory
// cannot be represented, the same as in the commit trees the mapping is
// built from.
package checkout

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/marmos91/yak/pkg/object"
)

var (
	ErrInvalidPath   = errors.New("invalid checkout path")
	ErrTreeEntry     = errors.New("tree entries are implied by paths")
	ErrPathCollision = errors.New("path is both a leaf and a directory")
)

// State is the checkout of one workspace.
type State struct {
	// WorkspaceID is the cleaned workspace path
	WorkspaceID string

	// OperationID is the host VCS operation that produced this checkout.
	// The daemon stores it and hands it back unchanged.
	OperationID []byte

	// RootTree is the tree whose flattening is Entries
	RootTree object.ID

	// Entries maps relative paths to leaf entries
	Entries map[string]object.TreeEntry
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	return &State{
		WorkspaceID: s.WorkspaceID,
		OperationID: slices.Clone(s.OperationID),
		RootTree:    s.RootTree,
		Entries:     maps.Clone(s.Entries),
	}
}

// Paths returns the mapping's paths in byte order.
func (s *State) Paths() []string {
	return slices.Sorted(maps.Keys(s.Entries))
}

// ValidatePath checks that p is relative, cleaned and made of valid tree
// entry names.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for part := range strings.SplitSeq(p, "/") {
		if err := object.ValidateName(part); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidPath, p, err)
		}
	}
	return nil
}

// Validate checks every path and entry of a mapping. A path may not be both
// a leaf and the parent of another leaf.
func Validate(entries map[string]object.TreeEntry) error {
	for p, e := range entries {
		if err := ValidatePath(p); err != nil {
			return err
		}
		switch e.Kind {
		case object.KindFile, object.KindSymlink, object.KindConflict:
		case object.KindTree:
			return fmt.Errorf("%q: %w", p, ErrTreeEntry)
		default:
			return fmt.Errorf("%q: %w %d", p, object.ErrUnknownKind, uint8(e.Kind))
		}
		if e.Kind != object.KindFile && e.Executable {
			return fmt.Errorf("%q: executable bit on %s entry", p, e.Kind)
		}
		for dir := range parents(p) {
			if _, leaf := entries[dir]; leaf {
				return fmt.Errorf("%w: %q is below %q", ErrPathCollision, p, dir)
			}
		}
	}
	return nil
}

// parents yields every proper ancestor directory of p, deepest first.
func parents(p string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := strings.LastIndexByte(p, '/'); i > 0; i = strings.LastIndexByte(p, '/') {
			p = p[:i]
			if !yield(p) {
				return
			}
		}
	}
}

// Split returns the directory part and the final name of p. The directory
// of a top-level path is "".
func Split(p string) (dir, name string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// Join joins a directory path and a name.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
