package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/marmos91/yak/internal/protocol/yak"
	"github.com/marmos91/yak/pkg/mount"
	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/service"
)

// errGarbageArgs marks arguments that did not decode.
var errGarbageArgs = errors.New("garbage arguments")

// procedureHandler decodes the arguments of one procedure, runs it and
// returns the result to encode after an OK header. A nil result encodes
// the header alone.
type procedureHandler func(ctx context.Context, svc *service.Service, data []byte) (any, error)

type procedureInfo struct {
	Name    string
	Handler procedureHandler

	// Void procedures reply with an empty body, without a header.
	Void bool
}

var dispatchTable map[uint32]*procedureInfo

func init() {
	dispatchTable = map[uint32]*procedureInfo{
		yak.ProcNull:             {Handler: handleNull, Void: true},
		yak.ProcDaemonStatus:     {Handler: handleDaemonStatus},
		yak.ProcInitialize:       {Handler: handleInitialize},
		yak.ProcGetEmptyTreeID:   {Handler: handleGetEmptyTreeID},
		yak.ProcConcurrency:      {Handler: handleConcurrency},
		yak.ProcWriteFile:        {Handler: handleWriteFile},
		yak.ProcReadFile:         {Handler: handleReadFile},
		yak.ProcWriteSymlink:     {Handler: handleWriteSymlink},
		yak.ProcReadSymlink:      {Handler: handleReadSymlink},
		yak.ProcWriteTree:        {Handler: handleWriteTree},
		yak.ProcReadTree:         {Handler: handleReadTree},
		yak.ProcWriteCommit:      {Handler: handleWriteCommit},
		yak.ProcReadCommit:       {Handler: handleReadCommit},
		yak.ProcGetCheckoutState: {Handler: handleGetCheckoutState},
		yak.ProcSetCheckoutState: {Handler: handleSetCheckoutState},
		yak.ProcSnapshot:         {Handler: handleSnapshot},
		yak.ProcGetTreeState:     {Handler: handleGetTreeState},
		yak.ProcUnmount:          {Handler: handleUnmount},
	}
	for proc, info := range dispatchTable {
		info.Name = yak.ProcName(proc)
	}
}

func decode(data []byte, v any) error {
	if err := yak.Decode(data, v); err != nil {
		return fmt.Errorf("%w: %w", errGarbageArgs, err)
	}
	return nil
}

func handleNull(context.Context, *service.Service, []byte) (any, error) {
	return nil, nil
}

func handleDaemonStatus(ctx context.Context, svc *service.Service, _ []byte) (any, error) {
	st, err := svc.DaemonStatus(ctx)
	if err != nil {
		return nil, err
	}
	res := &yak.DaemonStatusResult{
		Version:       st.Version,
		UptimeSeconds: uint64(st.Uptime.Seconds()),
		Files:         uint64(st.Objects.Files),
		Symlinks:      uint64(st.Objects.Symlinks),
		Trees:         uint64(st.Objects.Trees),
		Commits:       uint64(st.Objects.Commits),
		Workspaces:    uint32(st.Workspaces),
		Mounts:        make([]yak.MountInfo, 0, len(st.Mounts)),
	}
	for _, m := range st.Mounts {
		res.Mounts = append(res.Mounts, mountInfo(m))
	}
	return res, nil
}

func mountInfo(m mount.Mount) yak.MountInfo {
	var id string
	if m.ID != uuid.Nil {
		id = m.ID.String()
	}
	return yak.MountInfo{
		Workspace: m.Workspace,
		MountID:   id,
		Host:      m.Host,
		Port:      uint32(m.Port),
		State:     m.State.String(),
	}
}

func handleInitialize(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var args yak.InitializeArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	m, err := svc.Initialize(ctx, args.Path)
	if err != nil {
		return nil, err
	}
	return &yak.InitializeResult{
		Workspace: m.Workspace,
		MountID:   m.ID.String(),
		Host:      m.Host,
		Port:      uint32(m.Port),
	}, nil
}

func handleGetEmptyTreeID(_ context.Context, svc *service.Service, _ []byte) (any, error) {
	return &yak.IDResult{ID: yak.FromID(svc.EmptyTreeID())}, nil
}

func handleConcurrency(_ context.Context, svc *service.Service, _ []byte) (any, error) {
	return &yak.ConcurrencyResult{MaxInFlight: uint32(svc.Concurrency())}, nil
}

func idResult(id object.ID, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return &yak.IDResult{ID: yak.FromID(id)}, nil
}

func decodeID(data []byte) (object.ID, error) {
	var args yak.IDArgs
	if err := decode(data, &args); err != nil {
		return object.ID{}, err
	}
	return args.ID.Object(), nil
}

func handleWriteFile(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var f yak.File
	if err := decode(data, &f); err != nil {
		return nil, err
	}
	return idResult(svc.WriteFile(ctx, f.Object()))
}

func handleReadFile(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	id, err := decodeID(data)
	if err != nil {
		return nil, err
	}
	f, err := svc.ReadFile(ctx, id)
	if err != nil {
		return nil, err
	}
	return yak.FromFile(f), nil
}

func handleWriteSymlink(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var l yak.Symlink
	if err := decode(data, &l); err != nil {
		return nil, err
	}
	return idResult(svc.WriteSymlink(ctx, l.Object()))
}

func handleReadSymlink(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	id, err := decodeID(data)
	if err != nil {
		return nil, err
	}
	l, err := svc.ReadSymlink(ctx, id)
	if err != nil {
		return nil, err
	}
	return yak.FromSymlink(l), nil
}

func handleWriteTree(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var wire yak.Tree
	if err := decode(data, &wire); err != nil {
		return nil, err
	}
	t, err := wire.Object()
	if err != nil {
		return nil, &service.Error{Code: service.CodeInvalidArgument, Op: "write tree", Err: err}
	}
	return idResult(svc.WriteTree(ctx, t))
}

func handleReadTree(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	id, err := decodeID(data)
	if err != nil {
		return nil, err
	}
	t, err := svc.ReadTree(ctx, id)
	if err != nil {
		return nil, err
	}
	return yak.FromTree(t), nil
}

func handleWriteCommit(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var c yak.Commit
	if err := decode(data, &c); err != nil {
		return nil, err
	}
	return idResult(svc.WriteCommit(ctx, c.Object()))
}

func handleReadCommit(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	id, err := decodeID(data)
	if err != nil {
		return nil, err
	}
	c, err := svc.ReadCommit(ctx, id)
	if err != nil {
		return nil, err
	}
	return yak.FromCommit(c), nil
}

func handleGetCheckoutState(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var args yak.WorkspaceArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	st, err := svc.GetCheckoutState(ctx, args.Workspace)
	if err != nil {
		return nil, err
	}
	return &yak.CheckoutStateResult{Workspace: st.WorkspaceID, State: yak.FromCheckoutState(st)}, nil
}

func handleSetCheckoutState(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var args yak.SetCheckoutStateArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	st, err := args.State.Object(args.Workspace)
	if err != nil {
		return nil, &service.Error{Code: service.CodeInvalidArgument, Op: "set checkout state", Err: err}
	}
	return nil, svc.SetCheckoutState(ctx, args.Workspace, st)
}

func handleSnapshot(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var args yak.WorkspaceArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	return idResult(svc.Snapshot(ctx, args.Workspace))
}

func handleGetTreeState(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var args yak.WorkspaceArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	ts, err := svc.GetTreeState(ctx, args.Workspace)
	if err != nil {
		return nil, err
	}
	res := &yak.TreeStateResult{
		RootTree:   yak.FromID(ts.RootTree),
		DirtyPaths: ts.DirtyPaths,
	}
	if res.DirtyPaths == nil {
		res.DirtyPaths = []string{}
	}
	if ts.Mount != nil {
		res.Mounted = true
		res.Host = ts.Mount.Host
		res.Port = uint32(ts.Mount.Port)
	}
	return res, nil
}

func handleUnmount(ctx context.Context, svc *service.Service, data []byte) (any, error) {
	var args yak.WorkspaceArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	return nil, svc.Unmount(ctx, args.Workspace)
}
