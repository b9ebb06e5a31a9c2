package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
	"github.com/marmos91/yak/pkg/vfs"
)

// RemoveRequest is REMOVE3args (RFC 1813 Section 3.3.12). RMDIR takes the
// same arguments.
type RemoveRequest struct {
	DirHandle []byte
	Filename  string
}

type RemoveResponse struct {
	wccResult
}

func DecodeRemoveRequest(data []byte) (*RemoveRequest, error) {
	args, err := decodeDirOpArgs(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode REMOVE: %w", err)
	}
	return &RemoveRequest{DirHandle: args.Handle, Filename: args.Name}, nil
}

// Remove unlinks a non-directory. Directories are refused with ISDIR so
// that the unlink(2) and rmdir(2) contracts survive the single
// vfs.FileSystem Remove operation.
func (h *Handler) Remove(ctx *NFSHandlerContext, req *RemoveRequest) (*RemoveResponse, error) {
	resp := &RemoveResponse{}
	resp.Status = h.remove(ctx, req.DirHandle, req.Filename, &resp.wccResult, false)
	return resp, nil
}

func (h *Handler) remove(ctx *NFSHandlerContext, handle []byte, name string, wcc *wccResult, directory bool) uint32 {
	op := "REMOVE"
	if directory {
		op = "RMDIR"
	}

	dirID, status := h.resolve(handle)
	if status != types.NFS3OK {
		return status
	}
	wcc.Before = h.preOpAttr(ctx, dirID)
	defer func() { wcc.After = h.postOpAttr(ctx, dirID) }()

	if status := validateName(name); status != types.NFS3OK {
		return status
	}

	_, attr, err := h.fs.Lookup(ctx.Context, dirID, name)
	if err != nil {
		return xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), op)
	}
	isDir := attr.Type == vfs.TypeDirectory
	switch {
	case isDir && !directory:
		return types.NFS3ErrIsDir
	case !isDir && directory:
		return types.NFS3ErrNotDir
	}

	if err := h.fs.Remove(ctx.Context, dirID, name); err != nil {
		return xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), op)
	}

	logger.Debugf("%s: name=%q dir=%d client=%s", op, name, dirID, ctx.clientIP())
	return types.NFS3OK
}

func (resp *RemoveResponse) Encode() ([]byte, error) {
	return resp.encode()
}
