package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// LookupRequest is LOOKUP3args (RFC 1813 Section 3.3.3).
type LookupRequest struct {
	DirHandle []byte
	Filename  string
}

type LookupResponse struct {
	Status     uint32
	FileHandle []byte
	Attr       *types.NFSFileAttr
	DirAttr    *types.NFSFileAttr
}

func DecodeLookupRequest(data []byte) (*LookupRequest, error) {
	args, err := decodeDirOpArgs(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode LOOKUP: %w", err)
	}
	return &LookupRequest{DirHandle: args.Handle, Filename: args.Name}, nil
}

func (h *Handler) Lookup(ctx *NFSHandlerContext, req *LookupRequest) (*LookupResponse, error) {
	dirID, status := h.resolve(req.DirHandle)
	if status != types.NFS3OK {
		return &LookupResponse{Status: status}, nil
	}

	// "." and ".." are legal here, unlike in creating procedures.
	switch {
	case req.Filename == "":
		return &LookupResponse{Status: types.NFS3ErrInval, DirAttr: h.postOpAttr(ctx, dirID)}, nil
	case len(req.Filename) > types.MaxNameLen:
		return &LookupResponse{Status: types.NFS3ErrNameTooLong, DirAttr: h.postOpAttr(ctx, dirID)}, nil
	}

	id, attr, err := h.fs.Lookup(ctx.Context, dirID, req.Filename)
	if err != nil {
		return &LookupResponse{
			Status:  xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "LOOKUP"),
			DirAttr: h.postOpAttr(ctx, dirID),
		}, nil
	}

	logger.Debugf("LOOKUP: name=%q dir=%d id=%d client=%s", req.Filename, dirID, id, ctx.clientIP())
	return &LookupResponse{
		Status:     types.NFS3OK,
		FileHandle: h.handle(id),
		Attr:       h.toNFS(attr),
		DirAttr:    h.postOpAttr(ctx, dirID),
	}, nil
}

func (resp *LookupResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)

	if resp.Status == types.NFS3OK {
		_ = xdr.EncodeOpaque(&buf, resp.FileHandle)
		if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
			return nil, fmt.Errorf("encode LOOKUP attributes: %w", err)
		}
	}
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.DirAttr); err != nil {
		return nil, fmt.Errorf("encode LOOKUP directory attributes: %w", err)
	}
	return buf.Bytes(), nil
}
