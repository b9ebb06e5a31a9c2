package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
	"github.com/marmos91/yak/pkg/vfs"
)

// MkdirRequest is MKDIR3args (RFC 1813 Section 3.3.9).
type MkdirRequest struct {
	DirHandle []byte
	Name      string
	Attrs     vfs.SetAttr
}

type MkdirResponse struct {
	creationResult
}

func (h *Handler) DecodeMkdirRequest(data []byte) (*MkdirRequest, error) {
	reader := bytes.NewReader(data)

	args, err := decodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode MKDIR: %w", err)
	}
	attrs, err := xdr.DecodeSetAttrs(reader, h.now())
	if err != nil {
		return nil, fmt.Errorf("decode MKDIR attributes: %w", err)
	}
	return &MkdirRequest{DirHandle: args.Handle, Name: args.Name, Attrs: attrs}, nil
}

func (h *Handler) Mkdir(ctx *NFSHandlerContext, req *MkdirRequest) (*MkdirResponse, error) {
	resp := &MkdirResponse{}

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

	id, attr, err := h.fs.Mkdir(ctx.Context, dirID, req.Name, req.Attrs)
	resp.DirAfter = h.postOpAttr(ctx, dirID)
	if err != nil {
		resp.Status = xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "MKDIR")
		return resp, nil
	}

	logger.Debugf("MKDIR: name=%q dir=%d id=%d client=%s", req.Name, dirID, id, ctx.clientIP())

	resp.Status = types.NFS3OK
	resp.Handle = h.handle(id)
	resp.Attr = h.toNFS(attr)
	return resp, nil
}

func (resp *MkdirResponse) Encode() ([]byte, error) {
	return resp.encode()
}
