package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
	"github.com/marmos91/yak/pkg/vfs"
)

// SymlinkRequest is SYMLINK3args (RFC 1813 Section 3.3.10).
type SymlinkRequest struct {
	DirHandle []byte
	Name      string
	Attrs     vfs.SetAttr
	Target    string
}

type SymlinkResponse struct {
	creationResult
}

func (h *Handler) DecodeSymlinkRequest(data []byte) (*SymlinkRequest, error) {
	reader := bytes.NewReader(data)

	args, err := decodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode SYMLINK: %w", err)
	}
	req := &SymlinkRequest{DirHandle: args.Handle, Name: args.Name}

	if req.Attrs, err = xdr.DecodeSetAttrs(reader, h.now()); err != nil {
		return nil, fmt.Errorf("decode SYMLINK attributes: %w", err)
	}
	if req.Target, err = xdr.DecodeString(reader, types.MaxPathLen); err != nil {
		return nil, fmt.Errorf("decode SYMLINK target: %w", err)
	}
	return req, nil
}

func (h *Handler) Symlink(ctx *NFSHandlerContext, req *SymlinkRequest) (*SymlinkResponse, error) {
	resp := &SymlinkResponse{}

	dirID, status := h.resolve(req.DirHandle)
	if status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}
	resp.DirBefore = h.preOpAttr(ctx, dirID)

	if status := validateName(req.Name); status != types.NFS3OK {
		resp.Status = status
		resp.DirAfter = h.postOpAttr(ctx, dirID)
		return resp, nil
	}

	id, attr, err := h.fs.Symlink(ctx.Context, dirID, req.Name, req.Target, req.Attrs)
	resp.DirAfter = h.postOpAttr(ctx, dirID)
	if err != nil {
		resp.Status = xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "SYMLINK")
		return resp, nil
	}

	logger.Debugf("SYMLINK: name=%q target=%q dir=%d id=%d client=%s", req.Name, req.Target, dirID, id, ctx.clientIP())

	resp.Status = types.NFS3OK
	resp.Handle = h.handle(id)
	resp.Attr = h.toNFS(attr)
	return resp, nil
}

func (resp *SymlinkResponse) Encode() ([]byte, error) {
	return resp.encode()
}
