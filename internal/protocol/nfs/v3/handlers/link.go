package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// LinkRequest is LINK3args (RFC 1813 Section 3.3.15).
type LinkRequest struct {
	FileHandle []byte
	DirHandle  []byte
	Name       string
}

type LinkResponse struct {
	Status    uint32
	Attr      *types.NFSFileAttr
	DirBefore *types.WccAttr
	DirAfter  *types.NFSFileAttr
}

func DecodeLinkRequest(data []byte) (*LinkRequest, error) {
	reader := bytes.NewReader(data)

	handle, err := xdr.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode LINK: %w", err)
	}
	args, err := decodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode LINK target: %w", err)
	}
	return &LinkRequest{FileHandle: handle, DirHandle: args.Handle, Name: args.Name}, nil
}

// Link always fails: a tree entry has exactly one parent, so hard links
// have no representation in a snapshot.
func (h *Handler) Link(ctx *NFSHandlerContext, req *LinkRequest) (*LinkResponse, error) {
	resp := &LinkResponse{Status: types.NFS3ErrNotSupp}

	if id, status := h.resolve(req.FileHandle); status == types.NFS3OK {
		resp.Attr = h.postOpAttr(ctx, id)
	}
	if dirID, status := h.resolve(req.DirHandle); status == types.NFS3OK {
		resp.DirBefore = h.preOpAttr(ctx, dirID)
		resp.DirAfter = h.postOpAttr(ctx, dirID)
	}
	return resp, nil
}

func (resp *LinkResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode LINK: %w", err)
	}
	if err := xdr.EncodeWccData(&buf, resp.DirBefore, resp.DirAfter); err != nil {
		return nil, fmt.Errorf("encode LINK: %w", err)
	}
	return buf.Bytes(), nil
}
