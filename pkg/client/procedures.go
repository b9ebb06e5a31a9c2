package client

import (
	"context"

	"github.com/marmos91/yak/internal/protocol/yak"
	"github.com/marmos91/yak/pkg/checkout"
	"github.com/marmos91/yak/pkg/object"
)

// Ping calls the NULL procedure.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, yak.ProcNull, nil, nil)
}

func (c *Client) DaemonStatus(ctx context.Context) (*yak.DaemonStatusResult, error) {
	var res yak.DaemonStatusResult
	if err := c.call(ctx, yak.ProcDaemonStatus, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Initialize registers the workspace at path and returns its NFS endpoint.
func (c *Client) Initialize(ctx context.Context, path string) (*yak.InitializeResult, error) {
	var res yak.InitializeResult
	if err := c.call(ctx, yak.ProcInitialize, &yak.InitializeArgs{Path: path}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) EmptyTreeID(ctx context.Context) (object.ID, error) {
	var res yak.IDResult
	if err := c.call(ctx, yak.ProcGetEmptyTreeID, nil, &res); err != nil {
		return object.ID{}, err
	}
	return res.ID.Object(), nil
}

// Concurrency returns how many calls the daemon accepts in flight.
func (c *Client) Concurrency(ctx context.Context) (int, error) {
	var res yak.ConcurrencyResult
	if err := c.call(ctx, yak.ProcConcurrency, nil, &res); err != nil {
		return 0, err
	}
	return int(res.MaxInFlight), nil
}

func (c *Client) writeObject(ctx context.Context, proc uint32, args any) (object.ID, error) {
	var res yak.IDResult
	if err := c.call(ctx, proc, args, &res); err != nil {
		return object.ID{}, err
	}
	return res.ID.Object(), nil
}

func (c *Client) WriteFile(ctx context.Context, f *object.File) (object.ID, error) {
	return c.writeObject(ctx, yak.ProcWriteFile, yak.FromFile(f))
}

func (c *Client) ReadFile(ctx context.Context, id object.ID) (*object.File, error) {
	var res yak.File
	if err := c.call(ctx, yak.ProcReadFile, &yak.IDArgs{ID: yak.FromID(id)}, &res); err != nil {
		return nil, err
	}
	return res.Object(), nil
}

func (c *Client) WriteSymlink(ctx context.Context, l *object.Symlink) (object.ID, error) {
	return c.writeObject(ctx, yak.ProcWriteSymlink, yak.FromSymlink(l))
}

func (c *Client) ReadSymlink(ctx context.Context, id object.ID) (*object.Symlink, error) {
	var res yak.Symlink
	if err := c.call(ctx, yak.ProcReadSymlink, &yak.IDArgs{ID: yak.FromID(id)}, &res); err != nil {
		return nil, err
	}
	return res.Object(), nil
}

func (c *Client) WriteTree(ctx context.Context, t *object.Tree) (object.ID, error) {
	return c.writeObject(ctx, yak.ProcWriteTree, yak.FromTree(t))
}

func (c *Client) ReadTree(ctx context.Context, id object.ID) (*object.Tree, error) {
	var res yak.Tree
	if err := c.call(ctx, yak.ProcReadTree, &yak.IDArgs{ID: yak.FromID(id)}, &res); err != nil {
		return nil, err
	}
	return res.Object()
}

func (c *Client) WriteCommit(ctx context.Context, commit *object.Commit) (object.ID, error) {
	return c.writeObject(ctx, yak.ProcWriteCommit, yak.FromCommit(commit))
}

func (c *Client) ReadCommit(ctx context.Context, id object.ID) (*object.Commit, error) {
	var res yak.Commit
	if err := c.call(ctx, yak.ProcReadCommit, &yak.IDArgs{ID: yak.FromID(id)}, &res); err != nil {
		return nil, err
	}
	return res.Object(), nil
}

func (c *Client) GetCheckoutState(ctx context.Context, workspace string) (*checkout.State, error) {
	var res yak.CheckoutStateResult
	if err := c.call(ctx, yak.ProcGetCheckoutState, &yak.WorkspaceArgs{Workspace: workspace}, &res); err != nil {
		return nil, err
	}
	return res.State.Object(res.Workspace)
}

// SetCheckoutState replaces the working copy of workspace. A zero
// st.RootTree asks the daemon to build the tree from st.Entries; a nil
// st.Entries asks it to read the entries from st.RootTree.
func (c *Client) SetCheckoutState(ctx context.Context, workspace string, st *checkout.State) error {
	args := &yak.SetCheckoutStateArgs{Workspace: workspace, State: yak.FromCheckoutState(st)}
	return c.call(ctx, yak.ProcSetCheckoutState, args, nil)
}

// Snapshot stores the working copy's changes and returns the new root.
func (c *Client) Snapshot(ctx context.Context, workspace string) (object.ID, error) {
	return c.writeObject(ctx, yak.ProcSnapshot, &yak.WorkspaceArgs{Workspace: workspace})
}

func (c *Client) GetTreeState(ctx context.Context, workspace string) (*yak.TreeStateResult, error) {
	var res yak.TreeStateResult
	if err := c.call(ctx, yak.ProcGetTreeState, &yak.WorkspaceArgs{Workspace: workspace}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Unmount(ctx context.Context, workspace string) error {
	return c.call(ctx, yak.ProcUnmount, &yak.WorkspaceArgs{Workspace: workspace}, nil)
}
