package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
	"github.com/marmos91/yak/pkg/vfs"
)

// SetAttrRequest is SETATTR3args (RFC 1813 Section 3.3.2).
type SetAttrRequest struct {
	Handle []byte
	Attrs  vfs.SetAttr
	Guard  types.TimeGuard
}

type SetAttrResponse struct {
	wccResult
}

// DecodeSetAttrRequest decodes SETATTR3args. SET_TO_SERVER_TIME resolves to
// the handler's clock at decode time.
func (h *Handler) DecodeSetAttrRequest(data []byte) (*SetAttrRequest, error) {
	reader := bytes.NewReader(data)
	req := &SetAttrRequest{}

	var err error
	if req.Handle, err = xdr.DecodeFileHandle(reader); err != nil {
		return nil, fmt.Errorf("decode SETATTR: %w", err)
	}
	if req.Attrs, err = xdr.DecodeSetAttrs(reader, h.now()); err != nil {
		return nil, fmt.Errorf("decode SETATTR attributes: %w", err)
	}
	if req.Guard, err = xdr.DecodeTimeGuard(reader); err != nil {
		return nil, fmt.Errorf("decode SETATTR guard: %w", err)
	}
	return req, nil
}

func (h *Handler) SetAttr(ctx *NFSHandlerContext, req *SetAttrRequest) (*SetAttrResponse, error) {
	resp := &SetAttrResponse{}

	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}

	before, err := h.fs.GetAttr(ctx.Context, id)
	if err != nil {
		resp.Status = xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "SETATTR")
		return resp, nil
	}
	resp.Before = xdr.CaptureWccAttr(before)

	if req.Guard.Check && xdr.TimeToTimeVal(before.Ctime) != req.Guard.Time {
		logger.Debugf("SETATTR: guard mismatch id=%d client=%s", id, ctx.clientIP())
		resp.Status = types.NFS3ErrNotSync
		resp.After = h.toNFS(before)
		return resp, nil
	}

	after, err := h.fs.SetAttr(ctx.Context, id, req.Attrs)
	if err != nil {
		resp.Status = xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "SETATTR")
		resp.After = h.postOpAttr(ctx, id)
		return resp, nil
	}

	logger.Debugf("SETATTR: id=%d mode=%o size=%d client=%s", id, after.Mode, after.Size, ctx.clientIP())
	resp.Status = types.NFS3OK
	resp.After = h.toNFS(after)
	return resp, nil
}

func (resp *SetAttrResponse) Encode() ([]byte, error) {
	return resp.encode()
}
