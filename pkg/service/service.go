// Package service implements the operations of the protocol service: the
// object store procedures and the workspace lifecycle.
//
// It is transport-independent. pkg/adapter/rpc decodes calls, calls the
// Service and maps returned errors with StatusOf.
package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/pkg/checkout"
	"github.com/marmos91/yak/pkg/mount"
	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/registry"
	"github.com/marmos91/yak/pkg/store"
	"github.com/marmos91/yak/pkg/vfs"
)

// Mounter binds working copies to NFS servers. *mount.Manager implements
// it.
type Mounter interface {
	Bind(ctx context.Context, workspace string, fs vfs.FileSystem) (mount.Mount, error)
	Unbind(ctx context.Context, workspace string) error
	Get(ctx context.Context, workspace string) (mount.Mount, bool, error)
	List(ctx context.Context) ([]mount.Mount, error)
}

type Config struct {
	// Version is reported by DaemonStatus
	Version string

	// Concurrency is the number of requests a client may keep in flight
	Concurrency int
}

type Service struct {
	config     Config
	store      store.ObjectStore
	workspaces *registry.Registry
	mounts     Mounter
	started    time.Time
}

func New(config Config, s store.ObjectStore, workspaces *registry.Registry, mounts Mounter) *Service {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Service{
		config:     config,
		store:      s,
		workspaces: workspaces,
		mounts:     mounts,
		started:    time.Now(),
	}
}

// DaemonStatus describes the running daemon. Mounts has one entry per
// registered workspace.
type DaemonStatus struct {
	Version    string
	Uptime     time.Duration
	Objects    store.Stats
	Workspaces int
	Mounts     []mount.Mount
}

func (s *Service) DaemonStatus(ctx context.Context) (*DaemonStatus, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, wrap("daemon status", err)
	}
	mounts, err := s.mounts.List(ctx)
	if err != nil {
		return nil, wrap("daemon status", err)
	}

	// Workspaces whose bind never reached the mount table are reported
	// unbound.
	known := make(map[string]struct{}, len(mounts))
	for _, m := range mounts {
		known[m.Workspace] = struct{}{}
	}
	workspaces := s.workspaces.List()
	for _, ws := range workspaces {
		if _, ok := known[ws.Key]; !ok {
			mounts = append(mounts, mount.Mount{Workspace: ws.Key, State: mount.StateUnbound})
		}
	}
	slices.SortFunc(mounts, func(a, b mount.Mount) int {
		return strings.Compare(a.Workspace, b.Workspace)
	})

	return &DaemonStatus{
		Version:    s.config.Version,
		Uptime:     time.Since(s.started),
		Objects:    stats,
		Workspaces: len(workspaces),
		Mounts:     mounts,
	}, nil
}

// Initialize registers the workspace at path, creating its working copy at
// the empty tree on first use, and makes sure it is served over NFS. The
// mount of an already served workspace is returned unchanged.
func (s *Service) Initialize(ctx context.Context, path string) (mount.Mount, error) {
	ws, created, err := s.workspaces.GetOrCreate(path)
	if err != nil {
		return mount.Mount{}, wrap("initialize", err)
	}
	if created {
		logger.Info("workspace created", "workspace", ws.Key)
	}

	m, err := s.mounts.Bind(ctx, ws.Key, ws.FS)
	if err != nil {
		return m, wrap("initialize", err)
	}
	return m, nil
}

func (s *Service) EmptyTreeID() object.ID {
	return s.store.EmptyTreeID()
}

func (s *Service) Concurrency() int {
	return s.config.Concurrency
}

// ============================================================================
// Objects
// ============================================================================

func (s *Service) WriteFile(ctx context.Context, f *object.File) (object.ID, error) {
	id, err := s.store.WriteFile(ctx, f)
	return id, wrap("write file", err)
}

func (s *Service) ReadFile(ctx context.Context, id object.ID) (*object.File, error) {
	f, err := s.store.ReadFile(ctx, id)
	return f, wrap("read file", err)
}

func (s *Service) WriteSymlink(ctx context.Context, l *object.Symlink) (object.ID, error) {
	id, err := s.store.WriteSymlink(ctx, l)
	return id, wrap("write symlink", err)
}

func (s *Service) ReadSymlink(ctx context.Context, id object.ID) (*object.Symlink, error) {
	l, err := s.store.ReadSymlink(ctx, id)
	return l, wrap("read symlink", err)
}

func (s *Service) WriteTree(ctx context.Context, t *object.Tree) (object.ID, error) {
	id, err := s.store.WriteTree(ctx, t)
	return id, wrap("write tree", err)
}

func (s *Service) ReadTree(ctx context.Context, id object.ID) (*object.Tree, error) {
	t, err := s.store.ReadTree(ctx, id)
	return t, wrap("read tree", err)
}

func (s *Service) WriteCommit(ctx context.Context, c *object.Commit) (object.ID, error) {
	id, err := s.store.WriteCommit(ctx, c)
	return id, wrap("write commit", err)
}

func (s *Service) ReadCommit(ctx context.Context, id object.ID) (*object.Commit, error) {
	c, err := s.store.ReadCommit(ctx, id)
	return c, wrap("read commit", err)
}

// ============================================================================
// Workspaces
// ============================================================================

// GetCheckoutState returns the checkout the working copy was last
// synchronized with.
func (s *Service) GetCheckoutState(ctx context.Context, workspace string) (*checkout.State, error) {
	ws, err := s.workspaces.Get(workspace)
	if err != nil {
		return nil, wrap("get checkout state", err)
	}
	return ws.FS.State(), nil
}

// SetCheckoutState replaces the working copy with st. Nothing changes when
// st fails validation; otherwise unsnapshotted modifications are dropped.
func (s *Service) SetCheckoutState(ctx context.Context, workspace string, st *checkout.State) error {
	const op = "set checkout state"

	ws, err := s.workspaces.Get(workspace)
	if err != nil {
		return wrap(op, err)
	}
	st.WorkspaceID = ws.Key

	if err := ws.FS.Checkout(ctx, st); err != nil {
		code := classify(err)
		if code == CodeInternal && !isStoreFailure(err) && ctx.Err() == nil {
			// Remaining validation failures carry no sentinel.
			code = CodeInvalidArgument
		}
		return &Error{Code: code, Op: op, Err: err}
	}

	current := ws.FS.State()
	logger.Info("checkout", "workspace", ws.Key, "root", current.RootTree.Short(), "entries", len(current.Entries))
	return nil
}

func isStoreFailure(err error) bool {
	code, ok := store.CodeOf(err)
	return ok && code == store.ErrIO
}

// Snapshot stores the working copy's changes and returns the new root
// tree.
func (s *Service) Snapshot(ctx context.Context, workspace string) (object.ID, error) {
	ws, err := s.workspaces.Get(workspace)
	if err != nil {
		return object.ID{}, wrap("snapshot", err)
	}
	root, err := ws.FS.Snapshot(ctx)
	if err != nil {
		return object.ID{}, wrap("snapshot", err)
	}
	logger.Debug("snapshot", "workspace", ws.Key, "root", root.Short())
	return root, nil
}

// TreeState is the synchronization state of a workspace.
type TreeState struct {
	RootTree   object.ID
	DirtyPaths []string

	// Mount is nil unless the workspace is served.
	Mount *mount.Mount
}

func (s *Service) GetTreeState(ctx context.Context, workspace string) (*TreeState, error) {
	ws, err := s.workspaces.Get(workspace)
	if err != nil {
		return nil, wrap("get tree state", err)
	}

	ts := &TreeState{
		RootTree:   ws.FS.State().RootTree,
		DirtyPaths: ws.FS.DirtyPaths(),
	}
	m, ok, err := s.mounts.Get(ctx, ws.Key)
	if err != nil {
		return nil, wrap("get tree state", err)
	}
	if ok && m.State == mount.StateServed {
		ts.Mount = &m
	}
	return ts, nil
}

// Unmount stops the NFS server of workspace. The working copy is kept and
// a later Initialize serves it again.
func (s *Service) Unmount(ctx context.Context, workspace string) error {
	ws, err := s.workspaces.Get(workspace)
	if err != nil {
		return wrap("unmount", err)
	}
	if err := s.mounts.Unbind(ctx, ws.Key); err != nil {
		if errors.Is(err, mount.ErrNotMounted) {
			return errorf(CodeFailedPrecondition, "unmount", "%s is not mounted", ws.Key)
		}
		return wrap("unmount", err)
	}
	return nil
}
