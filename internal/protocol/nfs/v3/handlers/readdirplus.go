package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
	"github.com/marmos91/yak/pkg/vfs"
)

// ReadDirPlusRequest is READDIRPLUS3args (RFC 1813 Section 3.3.17).
type ReadDirPlusRequest struct {
	DirHandle  []byte
	Cookie     uint64
	CookieVerf [8]byte
	DirCount   uint32
	MaxCount   uint32
}

type ReadDirPlusResponse struct {
	Status     uint32
	DirAttr    *types.NFSFileAttr
	CookieVerf [8]byte
	Entries    []types.DirEntryPlus
	EOF        bool
}

func DecodeReadDirPlusRequest(data []byte) (*ReadDirPlusRequest, error) {
	reader := bytes.NewReader(data)
	req := &ReadDirPlusRequest{}

	var err error
	if req.DirHandle, err = xdr.DecodeFileHandle(reader); err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS: %w", err)
	}
	if req.Cookie, err = xdr.DecodeUint64(reader); err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS cookie: %w", err)
	}
	if _, err := io.ReadFull(reader, req.CookieVerf[:]); err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS cookie verifier: %w", err)
	}
	if req.DirCount, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS dircount: %w", err)
	}
	if req.MaxCount, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode READDIRPLUS maxcount: %w", err)
	}
	return req, nil
}

// entryPlusSize adds post_op_attr and post_op_fh3 to entrySize.
func entryPlusSize(name string) uint32 {
	return entrySize(name) + 4 + 84 + 4 + 4 + types.FileHandleSize
}

func (h *Handler) ReadDirPlus(ctx *NFSHandlerContext, req *ReadDirPlusRequest) (*ReadDirPlusResponse, error) {
	dirID, status := h.resolve(req.DirHandle)
	if status != types.NFS3OK {
		return &ReadDirPlusResponse{Status: status}, nil
	}

	budget := uint32(0)
	if req.MaxCount > readDirOverhead {
		budget = req.MaxCount - readDirOverhead
	}

	entries, eof, err := h.listDir(ctx, dirID, req.Cookie, budget, func(e vfs.DirEntry) uint32 {
		return entryPlusSize(e.Name)
	})
	if errors.Is(err, errTooSmall) {
		return &ReadDirPlusResponse{Status: types.NFS3ErrTooSmall, DirAttr: h.postOpAttr(ctx, dirID)}, nil
	}
	if err != nil {
		return &ReadDirPlusResponse{
			Status:  xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "READDIRPLUS"),
			DirAttr: h.postOpAttr(ctx, dirID),
		}, nil
	}

	resp := &ReadDirPlusResponse{
		Status:  types.NFS3OK,
		DirAttr: h.postOpAttr(ctx, dirID),
		Entries: make([]types.DirEntryPlus, 0, len(entries)),
		EOF:     eof,
	}
	for _, e := range entries {
		entry := types.DirEntryPlus{
			Fileid: uint64(e.ID),
			Name:   e.Name,
			Cookie: e.Cookie,
			Handle: h.handle(e.ID),
		}
		if e.Attr != nil {
			entry.Attr = h.toNFS(e.Attr)
		} else {
			entry.Attr = h.postOpAttr(ctx, e.ID)
		}
		resp.Entries = append(resp.Entries, entry)
	}

	logger.Debugf("READDIRPLUS: dir=%d cookie=%d entries=%d eof=%t client=%s",
		dirID, req.Cookie, len(resp.Entries), eof, ctx.clientIP())
	return resp, nil
}

func (resp *ReadDirPlusResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.DirAttr); err != nil {
		return nil, fmt.Errorf("encode READDIRPLUS: %w", err)
	}
	if resp.Status != types.NFS3OK {
		return buf.Bytes(), nil
	}

	buf.Write(resp.CookieVerf[:])
	for _, e := range resp.Entries {
		_ = xdr.EncodeBool(&buf, true)
		_ = xdr.EncodeUint64(&buf, e.Fileid)
		_ = xdr.EncodeString(&buf, e.Name)
		_ = xdr.EncodeUint64(&buf, e.Cookie)
		if err := xdr.EncodeOptionalFileAttr(&buf, e.Attr); err != nil {
			return nil, fmt.Errorf("encode READDIRPLUS entry %q: %w", e.Name, err)
		}
		_ = xdr.EncodeOptionalOpaque(&buf, e.Handle)
	}
	_ = xdr.EncodeBool(&buf, false)
	_ = xdr.EncodeBool(&buf, resp.EOF)
	return buf.Bytes(), nil
}
