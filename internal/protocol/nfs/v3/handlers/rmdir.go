package handlers

import (
	"bytes"
	"fmt"
)

// RmdirRequest is RMDIR3args (RFC 1813 Section 3.3.13).
type RmdirRequest struct {
	DirHandle []byte
	Name      string
}

type RmdirResponse struct {
	wccResult
}

func DecodeRmdirRequest(data []byte) (*RmdirRequest, error) {
	args, err := decodeDirOpArgs(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode RMDIR: %w", err)
	}
	return &RmdirRequest{DirHandle: args.Handle, Name: args.Name}, nil
}

func (h *Handler) Rmdir(ctx *NFSHandlerContext, req *RmdirRequest) (*RmdirResponse, error) {
	resp := &RmdirResponse{}
	resp.Status = h.remove(ctx, req.DirHandle, req.Name, &resp.wccResult, true)
	return resp, nil
}

func (resp *RmdirResponse) Encode() ([]byte, error) {
	return resp.encode()
}
