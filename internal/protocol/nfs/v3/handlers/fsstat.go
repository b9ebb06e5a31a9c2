package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// The working copy lives in memory and has no fixed capacity; FSSTAT
// reports these nominal values so that df and space checks succeed.
const (
	nominalBytes = 1 << 40
	nominalFiles = 1 << 32
)

// FsStatRequest is FSSTAT3args (RFC 1813 Section 3.3.18).
type FsStatRequest struct {
	Handle []byte
}

type FsStatResponse struct {
	Status uint32
	Attr   *types.NFSFileAttr
	Stat   types.FSStat
}

func DecodeFsStatRequest(data []byte) (*FsStatRequest, error) {
	handle, err := xdr.DecodeFileHandle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode FSSTAT: %w", err)
	}
	return &FsStatRequest{Handle: handle}, nil
}

func (h *Handler) FsStat(ctx *NFSHandlerContext, req *FsStatRequest) (*FsStatResponse, error) {
	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		return &FsStatResponse{Status: status}, nil
	}

	attr, err := h.fs.GetAttr(ctx.Context, id)
	if err != nil {
		return &FsStatResponse{Status: xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "FSSTAT")}, nil
	}

	return &FsStatResponse{
		Status: types.NFS3OK,
		Attr:   h.toNFS(attr),
		Stat: types.FSStat{
			TotalBytes: nominalBytes,
			FreeBytes:  nominalBytes,
			AvailBytes: nominalBytes,
			TotalFiles: nominalFiles,
			FreeFiles:  nominalFiles,
			AvailFiles: nominalFiles,
		},
	}, nil
}

func (resp *FsStatResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode FSSTAT: %w", err)
	}
	if resp.Status == types.NFS3OK {
		s := resp.Stat
		for _, v := range []uint64{s.TotalBytes, s.FreeBytes, s.AvailBytes, s.TotalFiles, s.FreeFiles, s.AvailFiles} {
			_ = xdr.EncodeUint64(&buf, v)
		}
		_ = xdr.EncodeUint32(&buf, s.Invarsec)
	}
	return buf.Bytes(), nil
}
