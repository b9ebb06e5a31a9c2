package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// RenameRequest is RENAME3args (RFC 1813 Section 3.3.14).
type RenameRequest struct {
	FromDirHandle []byte
	FromName      string
	ToDirHandle   []byte
	ToName        string
}

type RenameResponse struct {
	Status     uint32
	FromBefore *types.WccAttr
	FromAfter  *types.NFSFileAttr
	ToBefore   *types.WccAttr
	ToAfter    *types.NFSFileAttr
}

func DecodeRenameRequest(data []byte) (*RenameRequest, error) {
	reader := bytes.NewReader(data)

	from, err := decodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode RENAME source: %w", err)
	}
	to, err := decodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode RENAME target: %w", err)
	}
	return &RenameRequest{
		FromDirHandle: from.Handle,
		FromName:      from.Name,
		ToDirHandle:   to.Handle,
		ToName:        to.Name,
	}, nil
}

func (h *Handler) Rename(ctx *NFSHandlerContext, req *RenameRequest) (*RenameResponse, error) {
	resp := &RenameResponse{}

	fromID, status := h.resolve(req.FromDirHandle)
	if status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}
	toID, status := h.resolve(req.ToDirHandle)
	if status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}

	resp.FromBefore = h.preOpAttr(ctx, fromID)
	resp.ToBefore = h.preOpAttr(ctx, toID)
	defer func() {
		resp.FromAfter = h.postOpAttr(ctx, fromID)
		resp.ToAfter = h.postOpAttr(ctx, toID)
	}()

	if status := validateName(req.FromName); status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}
	if status := validateName(req.ToName); status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}

	if err := h.fs.Rename(ctx.Context, fromID, req.FromName, toID, req.ToName); err != nil {
		resp.Status = xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "RENAME")
		return resp, nil
	}

	logger.Debugf("RENAME: %d/%q -> %d/%q client=%s", fromID, req.FromName, toID, req.ToName, ctx.clientIP())
	resp.Status = types.NFS3OK
	return resp, nil
}

func (resp *RenameResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeWccData(&buf, resp.FromBefore, resp.FromAfter); err != nil {
		return nil, fmt.Errorf("encode RENAME: %w", err)
	}
	if err := xdr.EncodeWccData(&buf, resp.ToBefore, resp.ToAfter); err != nil {
		return nil, fmt.Errorf("encode RENAME: %w", err)
	}
	return buf.Bytes(), nil
}
