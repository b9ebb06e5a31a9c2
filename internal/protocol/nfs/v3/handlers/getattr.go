package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// GetAttrRequest is GETATTR3args (RFC 1813 Section 3.3.1).
type GetAttrRequest struct {
	Handle []byte
}

type GetAttrResponse struct {
	Status uint32
	Attr   *types.NFSFileAttr
}

func DecodeGetAttrRequest(data []byte) (*GetAttrRequest, error) {
	handle, err := xdr.DecodeFileHandle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode GETATTR: %w", err)
	}
	return &GetAttrRequest{Handle: handle}, nil
}

func (h *Handler) GetAttr(ctx *NFSHandlerContext, req *GetAttrRequest) (*GetAttrResponse, error) {
	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		return &GetAttrResponse{Status: status}, nil
	}

	attr, err := h.fs.GetAttr(ctx.Context, id)
	if err != nil {
		return &GetAttrResponse{Status: xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "GETATTR")}, nil
	}

	logger.Debugf("GETATTR: id=%d type=%s size=%d client=%s", id, attr.Type, attr.Size, ctx.clientIP())
	return &GetAttrResponse{Status: types.NFS3OK, Attr: h.toNFS(attr)}, nil
}

func (resp *GetAttrResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if resp.Status == types.NFS3OK {
		if err := xdr.EncodeFileAttr(&buf, resp.Attr); err != nil {
			return nil, fmt.Errorf("encode GETATTR: %w", err)
		}
	}
	return buf.Bytes(), nil
}
