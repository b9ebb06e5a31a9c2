package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yak/internal/protocol/yak"
	"github.com/marmos91/yak/pkg/checkout"
	"github.com/marmos91/yak/pkg/config"
	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/server"
)

// startDaemon runs a complete daemon on loopback and returns a connected
// client.
func startDaemon(t *testing.T) (*Client, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	if port > 65535-32 {
		port = 65535 - 32
	}

	cfg := config.GetDefaultConfig()
	cfg.RPC.Addr = "127.0.0.1:0"
	cfg.RPC.Concurrency = 4
	cfg.NFS.MinPort, cfg.NFS.MaxPort = port, port+31

	srv, err := server.New(context.Background(), cfg, "test", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	addr := srv.Addr().String()
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, addr
}

func TestDaemonBasics(t *testing.T) {
	c, _ := startDaemon(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	n, err := c.Concurrency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	empty, err := c.EmptyTreeID(ctx)
	require.NoError(t, err)
	assert.Equal(t, object.Hash(&object.Tree{}), empty)

	st, err := c.DaemonStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test", st.Version)
	assert.Empty(t, st.Mounts)
}

func TestObjectRoundTrips(t *testing.T) {
	c, _ := startDaemon(t)
	ctx := context.Background()

	t.Run("File", func(t *testing.T) {
		id1, err := c.WriteFile(ctx, &object.File{Content: []byte("hello")})
		require.NoError(t, err)
		id2, err := c.WriteFile(ctx, &object.File{Content: []byte("hello")})
		require.NoError(t, err)
		assert.Equal(t, id1, id2)

		f, err := c.ReadFile(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(f.Content))
	})

	t.Run("Symlink", func(t *testing.T) {
		id, err := c.WriteSymlink(ctx, &object.Symlink{Target: "../target"})
		require.NoError(t, err)
		l, err := c.ReadSymlink(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "../target", l.Target)
	})

	t.Run("TreeKeepsNameAndOrder", func(t *testing.T) {
		fid, err := c.WriteFile(ctx, &object.File{Content: []byte("x")})
		require.NoError(t, err)
		tree := &object.Tree{Entries: []object.TreeEntryMapping{
			{Name: "z.sh", Entry: object.FileEntry(fid, true)},
			{Name: "a", Entry: object.ConflictEntry(fid)},
		}}
		id, err := c.WriteTree(ctx, tree)
		require.NoError(t, err)
		assert.Equal(t, object.Hash(tree), id)

		got, err := c.ReadTree(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tree, got)
	})

	t.Run("MergeCommit", func(t *testing.T) {
		p1, err := c.WriteCommit(ctx, &object.Commit{Parents: []object.ID{object.RootCommitID}, RootTree: object.Hash(&object.Tree{})})
		require.NoError(t, err)
		p2, err := c.WriteCommit(ctx, &object.Commit{Parents: []object.ID{object.RootCommitID}, Description: "other"})
		require.NoError(t, err)

		merge := &object.Commit{
			Parents:                []object.ID{p1, p2},
			Predecessors:           []object.ID{p2},
			RootTree:               object.Hash(&object.Tree{}),
			UsesTreeConflictFormat: true,
			ChangeID:               []byte{1, 2, 3},
			Description:            "merge\n",
			Author: &object.CommitSignature{
				Name: "A", Email: "a@example.com",
				Timestamp: object.CommitTimestamp{MillisSinceEpoch: 1000, TZOffset: -120},
			},
		}
		id, err := c.WriteCommit(ctx, merge)
		require.NoError(t, err)
		got, err := c.ReadCommit(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, merge, got)
		assert.Nil(t, got.Committer)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := c.WriteCommit(ctx, &object.Commit{})
		assert.True(t, IsStatus(err, yak.StatusInvalidArgument), "got %v", err)

		var missing object.ID
		missing[3] = 7
		_, err = c.ReadFile(ctx, missing)
		assert.True(t, IsStatus(err, yak.StatusNotFound), "got %v", err)

		_, err = c.WriteTree(ctx, &object.Tree{Entries: []object.TreeEntryMapping{{Name: "a/b"}}})
		assert.True(t, IsStatus(err, yak.StatusInvalidArgument), "got %v", err)
	})
}

func TestWorkspaceLifecycle(t *testing.T) {
	c, _ := startDaemon(t)
	ctx := context.Background()
	const ws = "/work/repo"

	res, err := c.Initialize(ctx, ws+"/")
	require.NoError(t, err)
	assert.Equal(t, ws, res.Workspace)
	assert.Equal(t, "127.0.0.1", res.Host)
	assert.NotZero(t, res.Port)

	again, err := c.Initialize(ctx, ws)
	require.NoError(t, err)
	assert.Equal(t, res, again)

	fid, err := c.WriteFile(ctx, &object.File{Content: []byte("content")})
	require.NoError(t, err)
	require.NoError(t, c.SetCheckoutState(ctx, ws, &checkout.State{
		OperationID: []byte("op"),
		Entries:     map[string]object.TreeEntry{"src/main.go": object.FileEntry(fid, false)},
	}))

	st, err := c.GetCheckoutState(ctx, ws)
	require.NoError(t, err)
	assert.Equal(t, ws, st.WorkspaceID)
	assert.Equal(t, []byte("op"), st.OperationID)
	assert.Equal(t, map[string]object.TreeEntry{"src/main.go": object.FileEntry(fid, false)}, st.Entries)

	ts, err := c.GetTreeState(ctx, ws)
	require.NoError(t, err)
	assert.Equal(t, st.RootTree, ts.RootTree.Object())
	assert.Empty(t, ts.DirtyPaths)
	assert.True(t, ts.Mounted)
	assert.Equal(t, res.Port, ts.Port)

	// Nothing changed, so the snapshot is the checked out tree.
	root, err := c.Snapshot(ctx, ws)
	require.NoError(t, err)
	assert.Equal(t, st.RootTree, root)

	status, err := c.DaemonStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status.Mounts, 1)
	assert.Equal(t, "served", status.Mounts[0].State)
	assert.Equal(t, uint32(1), status.Workspaces)

	require.NoError(t, c.Unmount(ctx, ws))
	err = c.Unmount(ctx, ws)
	assert.True(t, IsStatus(err, yak.StatusFailedPrecondition), "got %v", err)

	ts, err = c.GetTreeState(ctx, ws)
	require.NoError(t, err)
	assert.False(t, ts.Mounted)

	t.Run("UnknownWorkspace", func(t *testing.T) {
		_, err := c.GetCheckoutState(ctx, "/nowhere")
		assert.True(t, IsStatus(err, yak.StatusNotFound), "got %v", err)
	})

	t.Run("MissingObject", func(t *testing.T) {
		var missing object.ID
		missing[0] = 1
		err := c.SetCheckoutState(ctx, ws, &checkout.State{
			Entries: map[string]object.TreeEntry{"x": object.FileEntry(missing, false)},
		})
		assert.True(t, IsStatus(err, yak.StatusFailedPrecondition), "got %v", err)
	})

	t.Run("RelativePath", func(t *testing.T) {
		_, err := c.Initialize(ctx, "relative/path")
		assert.True(t, IsStatus(err, yak.StatusInvalidArgument), "got %v", err)
	})
}

func TestConcurrentClients(t *testing.T) {
	_, addr := startDaemon(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ports := make([]uint32, 4)
	for i := range ports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := Dial(ctx, addr)
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()
			res, err := c.Initialize(ctx, "/work/ws"+string(rune('a'+i)))
			if assert.NoError(t, err) {
				ports[i] = res.Port
			}
		}()
	}
	wg.Wait()

	seen := map[uint32]bool{}
	for _, p := range ports {
		assert.False(t, seen[p], "port %d bound twice", p)
		seen[p] = true
	}
}

func TestCallHonoursContext(t *testing.T) {
	c, _ := startDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
