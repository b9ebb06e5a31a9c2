package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// WriteRequest is WRITE3args (RFC 1813 Section 3.3.7).
type WriteRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
	Stable uint32
	Data   []byte
}

type WriteResponse struct {
	Status    uint32
	Before    *types.WccAttr
	After     *types.NFSFileAttr
	Count     uint32
	Committed uint32
	Verifier  [8]byte
}

func DecodeWriteRequest(data []byte) (*WriteRequest, error) {
	reader := bytes.NewReader(data)
	req := &WriteRequest{}

	var err error
	if req.Handle, err = xdr.DecodeFileHandle(reader); err != nil {
		return nil, fmt.Errorf("decode WRITE: %w", err)
	}
	if req.Offset, err = xdr.DecodeUint64(reader); err != nil {
		return nil, fmt.Errorf("decode WRITE offset: %w", err)
	}
	if req.Count, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode WRITE count: %w", err)
	}
	if req.Stable, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode WRITE stable: %w", err)
	}
	if req.Stable > types.WriteFileSync {
		return nil, fmt.Errorf("decode WRITE: invalid stable_how %d", req.Stable)
	}
	if req.Data, err = xdr.DecodeOpaque(reader); err != nil {
		return nil, fmt.Errorf("decode WRITE data: %w", err)
	}
	return req, nil
}

// Write applies the data to the working copy. The working copy holds data
// in memory until a snapshot, so every write is reported FILE_SYNC and
// COMMIT has nothing left to flush.
func (h *Handler) Write(ctx *NFSHandlerContext, req *WriteRequest) (*WriteResponse, error) {
	resp := &WriteResponse{Verifier: h.verifier}

	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}

	data := req.Data
	if uint32(len(data)) > req.Count {
		data = data[:req.Count]
	}
	if limit := h.fs.Capabilities().MaxWriteSize; uint32(len(data)) > limit {
		data = data[:limit]
	}

	resp.Before = h.preOpAttr(ctx, id)

	attr, err := h.fs.Write(ctx.Context, id, req.Offset, data)
	if err != nil {
		resp.Status = xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "WRITE")
		resp.After = h.postOpAttr(ctx, id)
		return resp, nil
	}

	logger.Debugf("WRITE: id=%d offset=%d count=%d size=%d client=%s",
		id, req.Offset, len(data), attr.Size, ctx.clientIP())

	resp.Status = types.NFS3OK
	resp.After = h.toNFS(attr)
	resp.Count = uint32(len(data))
	resp.Committed = types.WriteFileSync
	return resp, nil
}

func (resp *WriteResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeWccData(&buf, resp.Before, resp.After); err != nil {
		return nil, fmt.Errorf("encode WRITE: %w", err)
	}
	if resp.Status == types.NFS3OK {
		_ = xdr.EncodeUint32(&buf, resp.Count)
		_ = xdr.EncodeUint32(&buf, resp.Committed)
		buf.Write(resp.Verifier[:])
	}
	return buf.Bytes(), nil
}
