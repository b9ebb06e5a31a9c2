package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// ReadLinkRequest is READLINK3args (RFC 1813 Section 3.3.5).
type ReadLinkRequest struct {
	Handle []byte
}

type ReadLinkResponse struct {
	Status uint32
	Attr   *types.NFSFileAttr
	Target string
}

func DecodeReadLinkRequest(data []byte) (*ReadLinkRequest, error) {
	handle, err := xdr.DecodeFileHandle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode READLINK: %w", err)
	}
	return &ReadLinkRequest{Handle: handle}, nil
}

func (h *Handler) ReadLink(ctx *NFSHandlerContext, req *ReadLinkRequest) (*ReadLinkResponse, error) {
	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		return &ReadLinkResponse{Status: status}, nil
	}

	target, err := h.fs.ReadLink(ctx.Context, id)
	if err != nil {
		return &ReadLinkResponse{
			Status: xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "READLINK"),
			Attr:   h.postOpAttr(ctx, id),
		}, nil
	}

	return &ReadLinkResponse{
		Status: types.NFS3OK,
		Attr:   h.postOpAttr(ctx, id),
		Target: target,
	}, nil
}

func (resp *ReadLinkResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode READLINK: %w", err)
	}
	if resp.Status == types.NFS3OK {
		_ = xdr.EncodeString(&buf, resp.Target)
	}
	return buf.Bytes(), nil
}
