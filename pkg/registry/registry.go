// Package registry tracks the workspaces known to the daemon and the live
// working copy of each.
//
// A workspace is created by the first initialize for its path and lives
// for the rest of the process. Its working copy survives unmounts, so a
// workspace that is bound again serves the same content.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/yak/pkg/store"
	"github.com/marmos91/yak/pkg/vfs/workingcopy"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrInvalidWorkspace  = errors.New("invalid workspace path")
)

// Workspace is one registered working copy.
type Workspace struct {
	// Key is the cleaned absolute path of the workspace
	Key string

	FS *workingcopy.FS

	CreatedAt time.Time
}

// Registry maps workspace keys to workspaces.
//
// Example usage:
//
//	reg := registry.New(objectStore, workingcopy.Options{UID: 1000, GID: 1000})
//	ws, created, _ := reg.GetOrCreate("/home/me/repo")
//	state := ws.FS.State()
type Registry struct {
	store store.ObjectStore
	opts  workingcopy.Options

	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

// New returns an empty registry whose working copies read and write s.
func New(s store.ObjectStore, opts workingcopy.Options) *Registry {
	return &Registry{
		store:      s,
		opts:       opts,
		workspaces: make(map[string]*Workspace),
	}
}

// CleanKey turns a client-supplied workspace path into its registry key.
// The path must be absolute; trailing slashes and dot segments are
// removed.
func CleanKey(p string) (string, error) {
	switch {
	case p == "":
		return "", fmt.Errorf("%w: empty path", ErrInvalidWorkspace)
	case strings.ContainsRune(p, 0):
		return "", fmt.Errorf("%w: path contains NUL", ErrInvalidWorkspace)
	case !strings.HasPrefix(p, "/"):
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidWorkspace, p)
	}
	return path.Clean(p), nil
}

// GetOrCreate returns the workspace at p, creating it checked out at the
// empty tree when it does not exist yet. created reports which happened.
func (r *Registry) GetOrCreate(p string) (ws *Workspace, created bool, err error) {
	key, err := CleanKey(p)
	if err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	ws, ok := r.workspaces[key]
	r.mu.RUnlock()
	if ok {
		return ws, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have created it between the two locks.
	if ws, ok := r.workspaces[key]; ok {
		return ws, false, nil
	}
	ws = &Workspace{
		Key:       key,
		FS:        workingcopy.New(r.store, key, r.opts),
		CreatedAt: time.Now(),
	}
	r.workspaces[key] = ws
	return ws, true, nil
}

// Get returns the workspace at p.
func (r *Registry) Get(p string) (*Workspace, error) {
	key, err := CleanKey(p)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, key)
	}
	return ws, nil
}

// List returns every workspace sorted by key.
func (r *Registry) List() []*Workspace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Workspace, 0, len(r.workspaces))
	for _, key := range slices.Sorted(maps.Keys(r.workspaces)) {
		out = append(out, r.workspaces[key])
	}
	return out
}
