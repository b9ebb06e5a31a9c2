package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// ReadRequest is READ3args (RFC 1813 Section 3.3.6).
type ReadRequest struct {
	Handle []byte
	Offset uint64
	Count  uint32
}

type ReadResponse struct {
	Status uint32
	Attr   *types.NFSFileAttr
	Count  uint32
	EOF    bool
	Data   []byte
}

func DecodeReadRequest(data []byte) (*ReadRequest, error) {
	reader := bytes.NewReader(data)
	req := &ReadRequest{}

	var err error
	if req.Handle, err = xdr.DecodeFileHandle(reader); err != nil {
		return nil, fmt.Errorf("decode READ: %w", err)
	}
	if req.Offset, err = xdr.DecodeUint64(reader); err != nil {
		return nil, fmt.Errorf("decode READ offset: %w", err)
	}
	if req.Count, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode READ count: %w", err)
	}
	return req, nil
}

func (h *Handler) Read(ctx *NFSHandlerContext, req *ReadRequest) (*ReadResponse, error) {
	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		return &ReadResponse{Status: status}, nil
	}

	count := min(req.Count, h.fs.Capabilities().MaxReadSize)

	data, eof, err := h.fs.Read(ctx.Context, id, req.Offset, count)
	if err != nil {
		return &ReadResponse{
			Status: xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "READ"),
			Attr:   h.postOpAttr(ctx, id),
		}, nil
	}

	logger.Debugf("READ: id=%d offset=%d requested=%d read=%d eof=%t client=%s",
		id, req.Offset, req.Count, len(data), eof, ctx.clientIP())

	return &ReadResponse{
		Status: types.NFS3OK,
		Attr:   h.postOpAttr(ctx, id),
		Count:  uint32(len(data)),
		EOF:    eof,
		Data:   data,
	}, nil
}

func (resp *ReadResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(128 + len(resp.Data))

	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode READ: %w", err)
	}
	if resp.Status == types.NFS3OK {
		_ = xdr.EncodeUint32(&buf, resp.Count)
		_ = xdr.EncodeBool(&buf, resp.EOF)
		_ = xdr.EncodeOpaque(&buf, resp.Data)
	}
	return buf.Bytes(), nil
}
