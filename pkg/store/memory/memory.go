// Package memory implements store.ObjectStore with four independently
// locked maps.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/store"
)

// table is one content-addressed map. Values are private copies; clone
// produces the copy handed to or taken from callers.
//
// The lock is held only for a single lookup or insert. Hashing and copying
// happen before Lock or after RUnlock.
type table[T any] struct {
	mu      sync.RWMutex
	objects map[object.ID]T
}

func newTable[T any]() *table[T] {
	return &table[T]{objects: make(map[object.ID]T)}
}

// put stores v under id unless an object is already there. Identical
// content always has an identical id, so the first writer wins and later
// writers are no-ops.
func (t *table[T]) put(id object.ID, v T) {
	t.mu.Lock()
	if _, exists := t.objects[id]; !exists {
		t.objects[id] = v
	}
	t.mu.Unlock()
}

func (t *table[T]) get(id object.ID) (T, bool) {
	t.mu.RLock()
	v, ok := t.objects[id]
	t.mu.RUnlock()
	return v, ok
}

func (t *table[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.objects)
}

// MemoryObjectStore keeps every object in process memory.
//
// Characteristics:
//   - Volatile: everything is lost when the daemon exits
//   - Append-only: objects are never mutated or deleted
//   - Fine-grained locking: one RWMutex per object kind
type MemoryObjectStore struct {
	files    *table[*object.File]
	symlinks *table[*object.Symlink]
	trees    *table[*object.Tree]
	commits  *table[*object.Commit]

	emptyTree object.ID
}

var _ store.ObjectStore = (*MemoryObjectStore)(nil)

// NewMemoryObjectStore returns an empty store. The empty tree id is
// computed here once and never changes.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		files:     newTable[*object.File](),
		symlinks:  newTable[*object.Symlink](),
		trees:     newTable[*object.Tree](),
		commits:   newTable[*object.Commit](),
		emptyTree: object.Hash(&object.Tree{}),
	}
}

func (s *MemoryObjectStore) EmptyTreeID() object.ID {
	return s.emptyTree
}

func (s *MemoryObjectStore) WriteFile(ctx context.Context, f *object.File) (object.ID, error) {
	if err := ctx.Err(); err != nil {
		return object.ID{}, err
	}
	if err := store.ValidateNotNil(store.KindFile, f == nil); err != nil {
		return object.ID{}, err
	}

	id := object.Hash(f)
	s.files.put(id, f.Clone())
	return id, nil
}

func (s *MemoryObjectStore) ReadFile(ctx context.Context, id object.ID) (*object.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := s.files.get(id)
	if !ok {
		return nil, store.NewNotFoundError(store.KindFile, id)
	}
	return f.Clone(), nil
}

func (s *MemoryObjectStore) WriteSymlink(ctx context.Context, l *object.Symlink) (object.ID, error) {
	if err := ctx.Err(); err != nil {
		return object.ID{}, err
	}
	if err := store.ValidateNotNil(store.KindSymlink, l == nil); err != nil {
		return object.ID{}, err
	}

	id := object.Hash(l)
	s.symlinks.put(id, l.Clone())
	return id, nil
}

func (s *MemoryObjectStore) ReadSymlink(ctx context.Context, id object.ID) (*object.Symlink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, ok := s.symlinks.get(id)
	if !ok {
		return nil, store.NewNotFoundError(store.KindSymlink, id)
	}
	return l.Clone(), nil
}

func (s *MemoryObjectStore) WriteTree(ctx context.Context, t *object.Tree) (object.ID, error) {
	if err := ctx.Err(); err != nil {
		return object.ID{}, err
	}
	if err := store.ValidateTree(t); err != nil {
		return object.ID{}, err
	}

	id := object.Hash(t)
	s.trees.put(id, t.Clone())
	return id, nil
}

func (s *MemoryObjectStore) ReadTree(ctx context.Context, id object.ID) (*object.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := s.trees.get(id)
	if !ok {
		// The empty tree is always readable, even before anyone wrote it.
		if id == s.emptyTree {
			return &object.Tree{}, nil
		}
		return nil, store.NewNotFoundError(store.KindTree, id)
	}
	return t.Clone(), nil
}

func (s *MemoryObjectStore) WriteCommit(ctx context.Context, c *object.Commit) (object.ID, error) {
	if err := ctx.Err(); err != nil {
		return object.ID{}, err
	}
	if err := store.ValidateCommit(c); err != nil {
		return object.ID{}, err
	}

	id := object.Hash(c)
	s.commits.put(id, c.Clone())
	return id, nil
}

func (s *MemoryObjectStore) ReadCommit(ctx context.Context, id object.ID) (*object.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := s.commits.get(id)
	if !ok {
		return nil, store.NewNotFoundError(store.KindCommit, id)
	}
	return c.Clone(), nil
}

func (s *MemoryObjectStore) Stats(ctx context.Context) (store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return store.Stats{}, err
	}
	return store.Stats{
		Files:    s.files.len(),
		Symlinks: s.symlinks.len(),
		Trees:    s.trees.len(),
		Commits:  s.commits.len(),
	}, nil
}

// Close is a no-op; the maps are released with the store.
func (s *MemoryObjectStore) Close() error {
	return nil
}
