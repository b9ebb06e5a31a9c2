// Package nfs routes NFSv3 and MOUNT procedure calls to their handlers.
//
// The connection layer (pkg/adapter/nfs) parses the RPC envelope, looks the
// procedure up in NfsDispatchTable or MountDispatchTable and calls it with
// the raw XDR arguments. Handlers return the encoded result body; the
// connection layer wraps it in the RPC reply.
package nfs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	mount "github.com/marmos91/yak/internal/protocol/nfs/mount/handlers"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	nfs "github.com/marmos91/yak/internal/protocol/nfs/v3/handlers"
	"github.com/marmos91/yak/internal/protocol/rpc"
)

// ErrGarbageArgs is returned when procedure arguments fail to decode. The
// caller answers with GARBAGE_ARGS.
var ErrGarbageArgs = errors.New("garbage procedure arguments")

// ============================================================================
// Authentication Context Creation
// ============================================================================

// AuthContext holds the caller information shared by every procedure.
type AuthContext struct {
	// Context is cancelled when the connection or the server shuts down.
	Context context.Context

	// ClientAddr is "IP:port" of the caller.
	ClientAddr string

	AuthFlavor uint32

	// UnixAuth is nil unless the call carried valid AUTH_UNIX credentials.
	UnixAuth *rpc.UnixAuth
}

// ExtractAuthContext builds the AuthContext of call. Malformed AUTH_UNIX
// bodies are logged and the call proceeds without credentials.
func ExtractAuthContext(ctx context.Context, call *rpc.RPCCallMessage, clientAddr, procedure string) *AuthContext {
	authCtx := &AuthContext{
		Context:    ctx,
		ClientAddr: clientAddr,
		AuthFlavor: call.GetAuthFlavor(),
	}
	if authCtx.AuthFlavor != rpc.AuthUnix {
		return authCtx
	}

	body := call.GetAuthBody()
	if len(body) == 0 {
		logger.Warnf("%s: AUTH_UNIX specified but auth body is empty", procedure)
		return authCtx
	}

	unixAuth, err := rpc.ParseUnixAuth(body)
	if err != nil {
		logger.Warnf("%s: failed to parse AUTH_UNIX credentials: %v", procedure, err)
		return authCtx
	}
	logger.Debugf("%s: %s", procedure, unixAuth)

	authCtx.UnixAuth = unixAuth
	return authCtx
}

func (a *AuthContext) nfsContext() *nfs.NFSHandlerContext {
	ctx := &nfs.NFSHandlerContext{
		Context:    a.Context,
		ClientAddr: a.ClientAddr,
		AuthFlavor: a.AuthFlavor,
	}
	if a.UnixAuth != nil {
		ctx.UID = &a.UnixAuth.UID
		ctx.GID = &a.UnixAuth.GID
		ctx.GIDs = a.UnixAuth.GIDs
	}
	return ctx
}

func (a *AuthContext) mountContext() *mount.MountContext {
	return &mount.MountContext{
		Context:    a.Context,
		ClientAddr: a.ClientAddr,
		AuthFlavor: a.AuthFlavor,
		UnixAuth:   a.UnixAuth,
	}
}

// ============================================================================
// Procedure Dispatch Tables
// ============================================================================

// NFSProcedureHandler runs one NFS procedure on the mount's handler.
type NFSProcedureHandler func(authCtx *AuthContext, handler *nfs.Handler, data []byte) ([]byte, error)

type NFSProcedureInfo struct {
	// Name is the RFC procedure name, used in logs and metric labels.
	Name    string
	Handler NFSProcedureHandler

	// NeedsAuth marks procedures that act on behalf of a user. Credentials
	// are parsed for these only.
	NeedsAuth bool
}

// MountProcedureHandler runs one MOUNT procedure.
type MountProcedureHandler func(authCtx *AuthContext, handler *mount.Handler, data []byte) ([]byte, error)

type MountProcedureInfo struct {
	Name      string
	Handler   MountProcedureHandler
	NeedsAuth bool
}

// NfsDispatchTable maps NFSv3 procedure numbers to their handlers.
var NfsDispatchTable = map[uint32]*NFSProcedureInfo{
	types.NFSProcNull:        {Name: "NULL", Handler: nfsProc(plain(nfs.DecodeNullRequest), (*nfs.Handler).Null)},
	types.NFSProcGetAttr:     {Name: "GETATTR", Handler: nfsProc(plain(nfs.DecodeGetAttrRequest), (*nfs.Handler).GetAttr)},
	types.NFSProcSetAttr:     {Name: "SETATTR", Handler: nfsProc((*nfs.Handler).DecodeSetAttrRequest, (*nfs.Handler).SetAttr), NeedsAuth: true},
	types.NFSProcLookup:      {Name: "LOOKUP", Handler: nfsProc(plain(nfs.DecodeLookupRequest), (*nfs.Handler).Lookup), NeedsAuth: true},
	types.NFSProcAccess:      {Name: "ACCESS", Handler: nfsProc(plain(nfs.DecodeAccessRequest), (*nfs.Handler).Access), NeedsAuth: true},
	types.NFSProcReadLink:    {Name: "READLINK", Handler: nfsProc(plain(nfs.DecodeReadLinkRequest), (*nfs.Handler).ReadLink), NeedsAuth: true},
	types.NFSProcRead:        {Name: "READ", Handler: nfsProc(plain(nfs.DecodeReadRequest), (*nfs.Handler).Read), NeedsAuth: true},
	types.NFSProcWrite:       {Name: "WRITE", Handler: nfsProc(plain(nfs.DecodeWriteRequest), (*nfs.Handler).Write), NeedsAuth: true},
	types.NFSProcCreate:      {Name: "CREATE", Handler: nfsProc((*nfs.Handler).DecodeCreateRequest, (*nfs.Handler).Create), NeedsAuth: true},
	types.NFSProcMkdir:       {Name: "MKDIR", Handler: nfsProc((*nfs.Handler).DecodeMkdirRequest, (*nfs.Handler).Mkdir), NeedsAuth: true},
	types.NFSProcSymlink:     {Name: "SYMLINK", Handler: nfsProc((*nfs.Handler).DecodeSymlinkRequest, (*nfs.Handler).Symlink), NeedsAuth: true},
	types.NFSProcMknod:       {Name: "MKNOD", Handler: nfsProc(plain(nfs.DecodeMknodRequest), (*nfs.Handler).Mknod)},
	types.NFSProcRemove:      {Name: "REMOVE", Handler: nfsProc(plain(nfs.DecodeRemoveRequest), (*nfs.Handler).Remove), NeedsAuth: true},
	types.NFSProcRmdir:       {Name: "RMDIR", Handler: nfsProc(plain(nfs.DecodeRmdirRequest), (*nfs.Handler).Rmdir), NeedsAuth: true},
	types.NFSProcRename:      {Name: "RENAME", Handler: nfsProc(plain(nfs.DecodeRenameRequest), (*nfs.Handler).Rename), NeedsAuth: true},
	types.NFSProcLink:        {Name: "LINK", Handler: nfsProc(plain(nfs.DecodeLinkRequest), (*nfs.Handler).Link), NeedsAuth: true},
	types.NFSProcReadDir:     {Name: "READDIR", Handler: nfsProc(plain(nfs.DecodeReadDirRequest), (*nfs.Handler).ReadDir), NeedsAuth: true},
	types.NFSProcReadDirPlus: {Name: "READDIRPLUS", Handler: nfsProc(plain(nfs.DecodeReadDirPlusRequest), (*nfs.Handler).ReadDirPlus), NeedsAuth: true},
	types.NFSProcFsStat:      {Name: "FSSTAT", Handler: nfsProc(plain(nfs.DecodeFsStatRequest), (*nfs.Handler).FsStat)},
	types.NFSProcFsInfo:      {Name: "FSINFO", Handler: nfsProc(plain(nfs.DecodeFsInfoRequest), (*nfs.Handler).FsInfo)},
	types.NFSProcPathConf:    {Name: "PATHCONF", Handler: nfsProc(plain(nfs.DecodePathConfRequest), (*nfs.Handler).PathConf)},
	types.NFSProcCommit:      {Name: "COMMIT", Handler: nfsProc(plain(nfs.DecodeCommitRequest), (*nfs.Handler).Commit), NeedsAuth: true},
}

// MountDispatchTable maps MOUNT procedure numbers to their handlers.
var MountDispatchTable = map[uint32]*MountProcedureInfo{
	mount.MountProcNull:    {Name: "NULL", Handler: mountProc(mount.DecodeNullRequest, (*mount.Handler).MountNull)},
	mount.MountProcMnt:     {Name: "MNT", Handler: mountProc(mount.DecodeMountRequest, (*mount.Handler).Mount), NeedsAuth: true},
	mount.MountProcDump:    {Name: "DUMP", Handler: mountProc(mount.DecodeDumpRequest, (*mount.Handler).Dump)},
	mount.MountProcUmnt:    {Name: "UMNT", Handler: mountProc(mount.DecodeUmountRequest, (*mount.Handler).Umnt)},
	mount.MountProcUmntAll: {Name: "UMNTALL", Handler: mountProc(mount.DecodeUmountAllRequest, (*mount.Handler).UmntAll)},
	mount.MountProcExport:  {Name: "EXPORT", Handler: mountProc(mount.DecodeExportRequest, (*mount.Handler).Export)},
}

// ============================================================================
// Generic request plumbing
// ============================================================================

type encoder interface {
	Encode() ([]byte, error)
}

// handleRequest decodes data, runs the procedure and encodes its result.
func handleRequest[Req any, Resp encoder](data []byte, decode func([]byte) (Req, error), run func(Req) (Resp, error)) ([]byte, error) {
	req, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGarbageArgs, err)
	}
	resp, err := run(req)
	if err != nil {
		return nil, err
	}
	return resp.Encode()
}

// plain adapts a decoder that does not need the handler.
func plain[Req any](decode func([]byte) (Req, error)) func(*nfs.Handler, []byte) (Req, error) {
	return func(_ *nfs.Handler, data []byte) (Req, error) {
		return decode(data)
	}
}

func nfsProc[Req any, Resp encoder](
	decode func(*nfs.Handler, []byte) (Req, error),
	run func(*nfs.Handler, *nfs.NFSHandlerContext, Req) (Resp, error),
) NFSProcedureHandler {
	return func(authCtx *AuthContext, h *nfs.Handler, data []byte) ([]byte, error) {
		return handleRequest(
			data,
			func(b []byte) (Req, error) { return decode(h, b) },
			func(req Req) (Resp, error) { return run(h, authCtx.nfsContext(), req) },
		)
	}
}

func mountProc[Req any, Resp encoder](
	decode func([]byte) (Req, error),
	run func(*mount.Handler, *mount.MountContext, Req) (Resp, error),
) MountProcedureHandler {
	return func(authCtx *AuthContext, h *mount.Handler, data []byte) ([]byte, error) {
		return handleRequest(data, decode, func(req Req) (Resp, error) {
			return run(h, authCtx.mountContext(), req)
		})
	}
}

// ReplyStatus returns the nfsstat3 that leads an encoded NFSv3 result. NULL
// results are empty and count as NFS3_OK.
func ReplyStatus(result []byte) uint32 {
	if len(result) < 4 {
		return types.NFS3OK
	}
	return binary.BigEndian.Uint32(result[:4])
}
