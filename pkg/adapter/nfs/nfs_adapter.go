// Package nfs serves one workspace's working copy over NFSv3 and MOUNTv3.
//
// The mount actor creates one NFSAdapter per bound workspace on a listener
// it already opened, so the port is known before Serve starts.
package nfs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"lukechampine.com/blake3"

	"github.com/marmos91/yak/internal/logger"
	nfs "github.com/marmos91/yak/internal/protocol/nfs"
	mount "github.com/marmos91/yak/internal/protocol/nfs/mount/handlers"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	v3 "github.com/marmos91/yak/internal/protocol/nfs/v3/handlers"
	"github.com/marmos91/yak/internal/protocol/rpc"
	"github.com/marmos91/yak/pkg/adapter"
	"github.com/marmos91/yak/pkg/metrics"
	"github.com/marmos91/yak/pkg/vfs"
)

// NFSAdapter is the NFS server of a single mount.
type NFSAdapter struct {
	server    *adapter.RPCServer
	workspace string

	nfsHandler   *v3.Handler
	mountHandler *mount.Handler

	metrics metrics.NFSMetrics
}

var _ adapter.Adapter = (*NFSAdapter)(nil)

// FsidFor derives the filesystem id of a workspace. It only depends on the
// workspace path, so handles held by a client stay valid when the workspace
// is bound again on another port.
func FsidFor(workspace string) uint64 {
	sum := blake3.Sum256([]byte(workspace))
	return binary.BigEndian.Uint64(sum[:8])
}

// New returns an adapter serving fs on listener. The listener is owned by
// the adapter from now on. nil metrics records nothing.
func New(config adapter.ConnConfig, listener net.Listener, workspace string, fs vfs.FileSystem, m metrics.NFSMetrics) (*NFSAdapter, error) {
	if m == nil {
		m = metrics.NewNoopNFSMetrics()
	}

	nfsHandler := v3.New(fs, FsidFor(workspace))
	a := &NFSAdapter{
		workspace:    workspace,
		nfsHandler:   nfsHandler,
		mountHandler: mount.New(workspace, nfsHandler.RootHandle()),
		metrics:      m,
	}

	server, err := adapter.NewRPCServer("nfs", config, listener, a, m)
	if err != nil {
		return nil, err
	}
	a.server = server
	return a, nil
}

func (a *NFSAdapter) Serve(ctx context.Context) error {
	logger.Info("NFS server serving workspace", "workspace", a.workspace, "port", a.Port())
	return a.server.Serve(ctx)
}

func (a *NFSAdapter) Stop(ctx context.Context) error {
	return a.server.Stop(ctx)
}

func (a *NFSAdapter) Protocol() string {
	return "NFS"
}

func (a *NFSAdapter) Port() int {
	return a.server.Port()
}

func (a *NFSAdapter) Workspace() string {
	return a.workspace
}

// ActiveConnections returns the number of connected clients.
func (a *NFSAdapter) ActiveConnections() int32 {
	return a.server.ActiveConnections()
}

// HandleCall routes a call to the NFS or MOUNT program.
func (a *NFSAdapter) HandleCall(ctx context.Context, call *rpc.RPCCallMessage, args []byte, clientAddr string) ([]byte, error) {
	switch call.Program {
	case rpc.ProgramNFS:
		if call.Version != types.NFSVersion {
			logger.Debugf("NFS version %d not supported (xid=0x%x)", call.Version, call.XID)
			return rpc.MakeProgMismatchReply(call.XID, types.NFSVersion, types.NFSVersion)
		}
		return a.handleNFSProcedure(ctx, call, args, clientAddr)

	case rpc.ProgramMount:
		if call.Version != mount.MountVersion {
			logger.Debugf("MOUNT version %d not supported (xid=0x%x)", call.Version, call.XID)
			return rpc.MakeProgMismatchReply(call.XID, mount.MountVersion, mount.MountVersion)
		}
		return a.handleMountProcedure(ctx, call, args, clientAddr)

	default:
		logger.Debugf("Unknown program %d (xid=0x%x)", call.Program, call.XID)
		return rpc.MakeErrorReply(call.XID, rpc.RPCProgUnavail)
	}
}

func authContext(ctx context.Context, call *rpc.RPCCallMessage, clientAddr, name string, needsAuth bool) *nfs.AuthContext {
	if needsAuth {
		return nfs.ExtractAuthContext(ctx, call, clientAddr, name)
	}
	return &nfs.AuthContext{Context: ctx, ClientAddr: clientAddr, AuthFlavor: call.GetAuthFlavor()}
}

func (a *NFSAdapter) handleNFSProcedure(ctx context.Context, call *rpc.RPCCallMessage, data []byte, clientAddr string) ([]byte, error) {
	procInfo, ok := nfs.NfsDispatchTable[call.Procedure]
	if !ok {
		logger.Debugf("Unknown NFS procedure %d", call.Procedure)
		return rpc.MakeErrorReply(call.XID, rpc.RPCProcUnavail)
	}

	authCtx := authContext(ctx, call, clientAddr, procInfo.Name, procInfo.NeedsAuth)

	a.metrics.RecordRequestStart(procInfo.Name, a.workspace)
	defer a.metrics.RecordRequestEnd(procInfo.Name, a.workspace)

	start := time.Now()
	result, err := procInfo.Handler(authCtx, a.nfsHandler, data)
	duration := time.Since(start)

	status := "SYSTEM_ERR"
	switch {
	case err == nil:
		status = types.StatusString(nfs.ReplyStatus(result))
	case errors.Is(err, nfs.ErrGarbageArgs):
		status = "GARBAGE_ARGS"
	}
	a.metrics.RecordRequest(procInfo.Name, a.workspace, duration, status)

	if err == nil {
		switch call.Procedure {
		case types.NFSProcRead:
			a.metrics.RecordBytesTransferred(procInfo.Name, a.workspace, "read", readBytes(result))
		case types.NFSProcWrite:
			a.metrics.RecordBytesTransferred(procInfo.Name, a.workspace, "write", writeBytes(data))
		}
	}

	return a.reply(call, procInfo.Name, result, err)
}

func (a *NFSAdapter) handleMountProcedure(ctx context.Context, call *rpc.RPCCallMessage, data []byte, clientAddr string) ([]byte, error) {
	procInfo, ok := nfs.MountDispatchTable[call.Procedure]
	if !ok {
		logger.Debugf("Unknown MOUNT procedure %d", call.Procedure)
		return rpc.MakeErrorReply(call.XID, rpc.RPCProcUnavail)
	}

	authCtx := authContext(ctx, call, clientAddr, procInfo.Name, procInfo.NeedsAuth)

	// MOUNT_ keeps the label apart from NFS procedures of the same name.
	procedureName := "MOUNT_" + procInfo.Name
	a.metrics.RecordRequestStart(procedureName, a.workspace)
	defer a.metrics.RecordRequestEnd(procedureName, a.workspace)

	start := time.Now()
	result, err := procInfo.Handler(authCtx, a.mountHandler, data)
	duration := time.Since(start)

	status := "SYSTEM_ERR"
	switch {
	case err == nil && nfs.ReplyStatus(result) == mount.MountOK:
		status = "OK"
	case err == nil:
		status = fmt.Sprintf("MNT3ERR_%d", nfs.ReplyStatus(result))
	case errors.Is(err, nfs.ErrGarbageArgs):
		status = "GARBAGE_ARGS"
	}
	a.metrics.RecordRequest(procedureName, a.workspace, duration, status)

	return a.reply(call, procedureName, result, err)
}

// reply wraps a handler outcome in an RPC reply. A cancelled request closes
// the connection instead of answering.
func (a *NFSAdapter) reply(call *rpc.RPCCallMessage, name string, result []byte, err error) ([]byte, error) {
	switch {
	case err == nil:
		return rpc.MakeSuccessReply(call.XID, result)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Debugf("%s cancelled: xid=0x%x: %v", name, call.XID, err)
		return nil, err
	case errors.Is(err, nfs.ErrGarbageArgs):
		logger.Debugf("%s: %v", name, err)
		return rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs)
	default:
		logger.Warn("NFS handler failed", "procedure", name, "workspace", a.workspace, "xid", call.XID, "error", err)
		return rpc.MakeErrorReply(call.XID, rpc.RPCSystemErr)
	}
}

// readBytes returns the count field of a successful READ3res: status,
// post_op_attr (bool + 84 bytes), count.
func readBytes(result []byte) uint64 {
	const off = 4 + 4 + 84
	if len(result) < off+4 || binary.BigEndian.Uint32(result) != types.NFS3OK {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(result[off:]))
}

// writeBytes returns the count field of WRITE3args: handle (length + 16
// bytes), offset, count.
func writeBytes(args []byte) uint64 {
	if len(args) < 4 {
		return 0
	}
	hlen := binary.BigEndian.Uint32(args)
	off := 4 + int(hlen) + int(rpc.XdrPadding(hlen)) + 8
	if off < 0 || len(args) < off+4 {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(args[off:]))
}
