package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// CommitRequest is COMMIT3args (RFC 1813 Section 3.3.21).
type CommitRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
}

type CommitResponse struct {
	Status   uint32
	Before   *types.WccAttr
	After    *types.NFSFileAttr
	Verifier [8]byte
}

func DecodeCommitRequest(data []byte) (*CommitRequest, error) {
	reader := bytes.NewReader(data)
	req := &CommitRequest{}

	var err error
	if req.Handle, err = xdr.DecodeFileHandle(reader); err != nil {
		return nil, fmt.Errorf("decode COMMIT: %w", err)
	}
	if req.Offset, err = xdr.DecodeUint64(reader); err != nil {
		return nil, fmt.Errorf("decode COMMIT offset: %w", err)
	}
	if req.Count, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode COMMIT count: %w", err)
	}
	return req, nil
}

// Commit only validates the handle; writes are already FILE_SYNC.
func (h *Handler) Commit(ctx *NFSHandlerContext, req *CommitRequest) (*CommitResponse, error) {
	resp := &CommitResponse{Verifier: h.verifier}

	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}

	attr, err := h.fs.GetAttr(ctx.Context, id)
	if err != nil {
		resp.Status = xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "COMMIT")
		return resp, nil
	}

	resp.Status = types.NFS3OK
	resp.Before = xdr.CaptureWccAttr(attr)
	resp.After = h.toNFS(attr)
	return resp, nil
}

func (resp *CommitResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeWccData(&buf, resp.Before, resp.After); err != nil {
		return nil, fmt.Errorf("encode COMMIT: %w", err)
	}
	if resp.Status == types.NFS3OK {
		buf.Write(resp.Verifier[:])
	}
	return buf.Bytes(), nil
}
