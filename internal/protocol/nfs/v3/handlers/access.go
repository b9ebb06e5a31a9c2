package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
	"github.com/marmos91/yak/pkg/vfs"
)

// AccessRequest is ACCESS3args (RFC 1813 Section 3.3.4).
type AccessRequest struct {
	Handle []byte
	Access uint32
}

type AccessResponse struct {
	Status uint32
	Attr   *types.NFSFileAttr
	Access uint32
}

func DecodeAccessRequest(data []byte) (*AccessRequest, error) {
	reader := bytes.NewReader(data)
	handle, err := xdr.DecodeFileHandle(reader)
	if err != nil {
		return nil, fmt.Errorf("decode ACCESS: %w", err)
	}
	access, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode ACCESS mask: %w", err)
	}
	return &AccessRequest{Handle: handle, Access: access}, nil
}

// Access grants from the owner permission bits. The caller's credentials
// are not consulted: every client of a workspace mount is its owner.
func (h *Handler) Access(ctx *NFSHandlerContext, req *AccessRequest) (*AccessResponse, error) {
	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		return &AccessResponse{Status: status}, nil
	}

	attr, err := h.fs.GetAttr(ctx.Context, id)
	if err != nil {
		return &AccessResponse{Status: xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "ACCESS")}, nil
	}

	return &AccessResponse{
		Status: types.NFS3OK,
		Attr:   h.toNFS(attr),
		Access: req.Access & h.allowed(attr),
	}, nil
}

func (h *Handler) allowed(attr *vfs.Attr) uint32 {
	var mask uint32
	if attr.Mode&0400 != 0 {
		mask |= types.AccessRead
	}
	if attr.Mode&0200 != 0 && !h.fs.Capabilities().ReadOnly {
		mask |= types.AccessModify | types.AccessExtend
	}
	if attr.Mode&0100 != 0 {
		if attr.Type == vfs.TypeDirectory {
			mask |= types.AccessLookup
		} else {
			mask |= types.AccessExecute
		}
	}
	if attr.Type == vfs.TypeDirectory && mask&types.AccessModify != 0 {
		mask |= types.AccessDelete
	}
	return mask
}

func (resp *AccessResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode ACCESS: %w", err)
	}
	if resp.Status == types.NFS3OK {
		_ = xdr.EncodeUint32(&buf, resp.Access)
	}
	return buf.Bytes(), nil
}
