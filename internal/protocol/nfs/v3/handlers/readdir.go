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

// Reply overhead outside the entry list: status, post_op_attr, cookie
// verifier, list terminator and eof.
const readDirOverhead = 4 + 4 + 84 + 8 + 4 + 4

// maxDirBatch bounds how many entries one READDIR asks the filesystem for.
const maxDirBatch = 1024

// ReadDirRequest is READDIR3args (RFC 1813 Section 3.3.16).
type ReadDirRequest struct {
	DirHandle  []byte
	Cookie     uint64
	CookieVerf [8]byte
	Count      uint32
}

type ReadDirResponse struct {
	Status     uint32
	DirAttr    *types.NFSFileAttr
	CookieVerf [8]byte
	Entries    []types.DirEntry
	EOF        bool
}

func DecodeReadDirRequest(data []byte) (*ReadDirRequest, error) {
	reader := bytes.NewReader(data)
	req := &ReadDirRequest{}

	var err error
	if req.DirHandle, err = xdr.DecodeFileHandle(reader); err != nil {
		return nil, fmt.Errorf("decode READDIR: %w", err)
	}
	if req.Cookie, err = xdr.DecodeUint64(reader); err != nil {
		return nil, fmt.Errorf("decode READDIR cookie: %w", err)
	}
	if _, err := io.ReadFull(reader, req.CookieVerf[:]); err != nil {
		return nil, fmt.Errorf("decode READDIR cookie verifier: %w", err)
	}
	if req.Count, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode READDIR count: %w", err)
	}
	return req, nil
}

// entrySize is the encoded size of an entry3.
func entrySize(name string) uint32 {
	n := uint32(len(name))
	return 4 + 8 + 4 + n + (4-n%4)%4 + 8
}

// listDir fetches entries after cookie and keeps as many as fit in budget
// bytes, given the per-entry size function. The "." and ".." entries are
// not listed; clients synthesize them.
func (h *Handler) listDir(ctx *NFSHandlerContext, dir vfs.FileID, cookie uint64, budget uint32, size func(vfs.DirEntry) uint32) ([]vfs.DirEntry, bool, error) {
	if ctx.cancelled() {
		return nil, false, ctx.Context.Err()
	}

	limit := min(int(budget/entrySize("")), maxDirBatch)
	if limit < 1 {
		limit = 1
	}

	entries, eof, err := h.fs.ReadDir(ctx.Context, dir, cookie, limit)
	if err != nil {
		return nil, false, err
	}

	var used uint32
	for i, e := range entries {
		used += size(e)
		if used > budget {
			if i == 0 {
				return nil, false, errTooSmall
			}
			return entries[:i], false, nil
		}
	}
	return entries, eof, nil
}

var errTooSmall = errors.New("reply too small for one directory entry")

func (h *Handler) ReadDir(ctx *NFSHandlerContext, req *ReadDirRequest) (*ReadDirResponse, error) {
	dirID, status := h.resolve(req.DirHandle)
	if status != types.NFS3OK {
		return &ReadDirResponse{Status: status}, nil
	}

	budget := uint32(0)
	if req.Count > readDirOverhead {
		budget = req.Count - readDirOverhead
	}

	entries, eof, err := h.listDir(ctx, dirID, req.Cookie, budget, func(e vfs.DirEntry) uint32 {
		return entrySize(e.Name)
	})
	if errors.Is(err, errTooSmall) {
		return &ReadDirResponse{Status: types.NFS3ErrTooSmall, DirAttr: h.postOpAttr(ctx, dirID)}, nil
	}
	if err != nil {
		return &ReadDirResponse{
			Status:  xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "READDIR"),
			DirAttr: h.postOpAttr(ctx, dirID),
		}, nil
	}

	resp := &ReadDirResponse{
		Status:  types.NFS3OK,
		DirAttr: h.postOpAttr(ctx, dirID),
		Entries: make([]types.DirEntry, 0, len(entries)),
		EOF:     eof,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, types.DirEntry{Fileid: uint64(e.ID), Name: e.Name, Cookie: e.Cookie})
	}

	logger.Debugf("READDIR: dir=%d cookie=%d entries=%d eof=%t client=%s",
		dirID, req.Cookie, len(resp.Entries), eof, ctx.clientIP())
	return resp, nil
}

func (resp *ReadDirResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.DirAttr); err != nil {
		return nil, fmt.Errorf("encode READDIR: %w", err)
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
	}
	_ = xdr.EncodeBool(&buf, false)
	_ = xdr.EncodeBool(&buf, resp.EOF)
	return buf.Bytes(), nil
}
