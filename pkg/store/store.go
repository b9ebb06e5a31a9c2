// Package store defines the content-addressed object store the daemon keeps
// for files, symlinks, trees and commits.
package store

import (
	"context"

	"github.com/marmos91/yak/pkg/object"
)

// ObjectStore is an append-only, content-addressed store.
//
// Every Write is idempotent: the returned id is object.Hash of the value and
// writing the same content twice keeps a single copy. Reads of unknown ids
// return an *Error with Code ErrNotFound. Objects returned by Reads are
// private copies.
//
// Implementations must be safe for concurrent use. The four kinds are
// independent: writers of one kind never wait on another kind.
type ObjectStore interface {
	WriteFile(ctx context.Context, f *object.File) (object.ID, error)
	ReadFile(ctx context.Context, id object.ID) (*object.File, error)

	WriteSymlink(ctx context.Context, s *object.Symlink) (object.ID, error)
	ReadSymlink(ctx context.Context, id object.ID) (*object.Symlink, error)

	// WriteTree validates the tree name policy before storing.
	WriteTree(ctx context.Context, t *object.Tree) (object.ID, error)
	ReadTree(ctx context.Context, id object.ID) (*object.Tree, error)

	// WriteCommit rejects commits with no parents.
	WriteCommit(ctx context.Context, c *object.Commit) (object.ID, error)
	ReadCommit(ctx context.Context, id object.ID) (*object.Commit, error)

	// EmptyTreeID is object.Hash(&object.Tree{}), fixed at construction.
	EmptyTreeID() object.ID

	// Stats reports how many objects of each kind are stored.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

type Stats struct {
	Files    int
	Symlinks int
	Trees    int
	Commits  int
}

// EmptyTreeID is the id of the tree with no entries.
var EmptyTreeID = object.Hash(&object.Tree{})

// ValidateTree applies the tree policy and wraps failures as
// ErrInvalidArgument.
func ValidateTree(t *object.Tree) error {
	if t == nil {
		return NewInvalidArgumentError(KindTree, errNilObject)
	}
	if err := t.Validate(); err != nil {
		return NewInvalidArgumentError(KindTree, err)
	}
	return nil
}

// ValidateCommit rejects commits without parents.
func ValidateCommit(c *object.Commit) error {
	if c == nil {
		return NewInvalidArgumentError(KindCommit, errNilObject)
	}
	if err := c.Validate(); err != nil {
		return NewInvalidArgumentError(KindCommit, err)
	}
	return nil
}
