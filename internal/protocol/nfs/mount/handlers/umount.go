package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// UmountRequest is the dirpath argument of UMNT.
type UmountRequest struct {
	DirPath string
}

type UmountResponse struct{}

func DecodeUmountRequest(data []byte) (*UmountRequest, error) {
	req := &UmountRequest{}
	if _, err := xdr.UnmarshalLimited(bytes.NewReader(data), req, MaxPathLen); err != nil {
		return nil, fmt.Errorf("failed to unmarshal umount request: %w", err)
	}
	return req, nil
}

// Umnt drops one entry of the mount list. It always succeeds.
func (h *Handler) Umnt(ctx *MountContext, req *UmountRequest) (*UmountResponse, error) {
	h.forget(clientHost(ctx.ClientAddr), req.DirPath)
	logger.Info("UMNT", "path", req.DirPath, "client", ctx.ClientAddr)
	return &UmountResponse{}, nil
}

func (resp *UmountResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}

type UmountAllRequest struct{}

type UmountAllResponse struct{}

func DecodeUmountAllRequest(data []byte) (*UmountAllRequest, error) {
	return &UmountAllRequest{}, nil
}

// UmntAll drops every mount of the calling host.
func (h *Handler) UmntAll(ctx *MountContext, req *UmountAllRequest) (*UmountAllResponse, error) {
	n := h.forgetAll(clientHost(ctx.ClientAddr))
	logger.Info("UMNTALL", "client", ctx.ClientAddr, "removed", n)
	return &UmountAllResponse{}, nil
}

func (resp *UmountAllResponse) Encode() ([]byte, error) {
	return []byte{}, nil
}
