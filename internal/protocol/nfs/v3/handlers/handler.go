// Package handlers implements the NFSv3 procedures (RFC 1813) over a
// vfs.FileSystem.
//
// Every procedure follows the same shape: DecodeXRequest parses the XDR
// arguments, the Handler method runs the operation and fills a response
// whose status carries any filesystem failure, and XResponse.Encode writes
// the XDR result. A non-nil error from a Handler method is reserved for
// failures that cannot be expressed as an nfsstat3.
package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"time"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
	"github.com/marmos91/yak/pkg/vfs"
)

// Handler serves one mount: a filesystem and the fsid its handles carry.
type Handler struct {
	fs   vfs.FileSystem
	fsid uint64
	now  func() time.Time

	// verifier changes on every server instance so that clients resend
	// unstable writes after a restart.
	verifier [8]byte
}

// New returns a handler for fs. Handles it issues embed fsid.
func New(fs vfs.FileSystem, fsid uint64) *Handler {
	h := &Handler{fs: fs, fsid: fsid, now: time.Now}
	binary.BigEndian.PutUint64(h.verifier[:], uint64(time.Now().UnixNano()))
	return h
}

// FileSystem returns the served filesystem.
func (h *Handler) FileSystem() vfs.FileSystem {
	return h.fs
}

// Fsid returns the mount's filesystem id.
func (h *Handler) Fsid() uint64 {
	return h.fsid
}

// RootHandle returns the handle of the filesystem root, handed out by MNT.
func (h *Handler) RootHandle() []byte {
	return xdr.NewFileHandle(h.fsid, h.fs.Root())
}

// NFSHandlerContext is the context passed to every procedure.
type NFSHandlerContext struct {
	// Context is cancelled when the connection or the server shuts down.
	Context context.Context

	// ClientAddr is "IP:port" of the caller, used for logging.
	ClientAddr string

	AuthFlavor uint32

	// Unix credentials, nil unless AUTH_UNIX was parsed. The working copy has
	// a single owner, so these are logged and not enforced.
	UID  *uint32
	GID  *uint32
	GIDs []uint32
}

func (c *NFSHandlerContext) clientIP() string {
	return xdr.ExtractClientIP(c.ClientAddr)
}

func (c *NFSHandlerContext) cancelled() bool {
	return c.Context != nil && c.Context.Err() != nil
}

// handle returns the handle of id on this mount.
func (h *Handler) handle(id vfs.FileID) []byte {
	return xdr.NewFileHandle(h.fsid, id)
}

// resolve validates a handle received from the client.
func (h *Handler) resolve(handle []byte) (vfs.FileID, uint32) {
	return xdr.ParseFileHandle(handle, h.fsid)
}

// toNFS converts attributes of this mount.
func (h *Handler) toNFS(attr *vfs.Attr) *types.NFSFileAttr {
	return xdr.AttrToNFS(attr, h.fsid)
}

// postOpAttr fetches attributes for a post_op_attr field. Failures yield
// nil, encoded as "no attributes".
func (h *Handler) postOpAttr(ctx *NFSHandlerContext, id vfs.FileID) *types.NFSFileAttr {
	attr, err := h.fs.GetAttr(ctx.Context, id)
	if err != nil {
		return nil
	}
	return h.toNFS(attr)
}

// preOpAttr fetches the wcc_attr captured before a modifying call.
func (h *Handler) preOpAttr(ctx *NFSHandlerContext, id vfs.FileID) *types.WccAttr {
	attr, err := h.fs.GetAttr(ctx.Context, id)
	if err != nil {
		return nil
	}
	return xdr.CaptureWccAttr(attr)
}

// validateName checks a filename3 argument.
func validateName(name string) uint32 {
	switch {
	case name == "":
		return types.NFS3ErrInval
	case len(name) > types.MaxNameLen:
		return types.NFS3ErrNameTooLong
	case name == "." || name == "..":
		return types.NFS3ErrInval
	case bytes.ContainsAny([]byte(name), "/\x00"):
		return types.NFS3ErrInval
	}
	return types.NFS3OK
}

// dirOpArgs is diropargs3: a directory handle and a filename.
type dirOpArgs struct {
	Handle []byte
	Name   string
}

func decodeDirOpArgs(reader *bytes.Reader) (dirOpArgs, error) {
	var args dirOpArgs
	var err error
	if args.Handle, err = xdr.DecodeFileHandle(reader); err != nil {
		return args, err
	}
	// Names are length-checked by validateName so that an over-long name
	// is answered with NAMETOOLONG rather than GARBAGE_ARGS.
	args.Name, err = xdr.DecodeString(reader, types.MaxPathLen)
	return args, err
}

// creationResult is the body shared by CREATE, MKDIR and SYMLINK replies.
type creationResult struct {
	Status    uint32
	Handle    []byte
	Attr      *types.NFSFileAttr
	DirBefore *types.WccAttr
	DirAfter  *types.NFSFileAttr
}

func (r *creationResult) encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, r.Status)

	if r.Status == types.NFS3OK {
		_ = xdr.EncodeOptionalOpaque(&buf, r.Handle)
		if err := xdr.EncodeOptionalFileAttr(&buf, r.Attr); err != nil {
			return nil, err
		}
	}
	if err := xdr.EncodeWccData(&buf, r.DirBefore, r.DirAfter); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wccResult is status plus one wcc_data, the reply of SETATTR, REMOVE,
// RMDIR and failed MKNOD.
type wccResult struct {
	Status uint32
	Before *types.WccAttr
	After  *types.NFSFileAttr
}

func (r *wccResult) encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, r.Status)
	if err := xdr.EncodeWccData(&buf, r.Before, r.After); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
