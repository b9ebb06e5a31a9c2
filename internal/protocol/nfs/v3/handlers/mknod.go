package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
)

// MknodRequest is the diropargs3 part of MKNOD3args (RFC 1813 Section
// 3.3.11). The device data that follows is not decoded: special files
// cannot be represented in a tree.
type MknodRequest struct {
	DirHandle []byte
	Name      string
}

type MknodResponse struct {
	wccResult
}

func DecodeMknodRequest(data []byte) (*MknodRequest, error) {
	args, err := decodeDirOpArgs(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode MKNOD: %w", err)
	}
	return &MknodRequest{DirHandle: args.Handle, Name: args.Name}, nil
}

func (h *Handler) Mknod(ctx *NFSHandlerContext, req *MknodRequest) (*MknodResponse, error) {
	resp := &MknodResponse{}

	dirID, status := h.resolve(req.DirHandle)
	if status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}

	resp.Status = types.NFS3ErrNotSupp
	resp.Before = h.preOpAttr(ctx, dirID)
	resp.After = h.postOpAttr(ctx, dirID)
	return resp, nil
}

func (resp *MknodResponse) Encode() ([]byte, error) {
	return resp.encode()
}
