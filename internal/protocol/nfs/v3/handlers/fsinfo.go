package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// FsInfoRequest is FSINFO3args (RFC 1813 Section 3.3.19).
type FsInfoRequest struct {
	Handle []byte
}

type FsInfoResponse struct {
	Status      uint32
	Attr        *types.NFSFileAttr
	RtMax       uint32
	RtPref      uint32
	RtMult      uint32
	WtMax       uint32
	WtPref      uint32
	WtMult      uint32
	DtPref      uint32
	MaxFileSize uint64
	TimeDelta   types.TimeVal
	Properties  uint32
}

func DecodeFsInfoRequest(data []byte) (*FsInfoRequest, error) {
	handle, err := xdr.DecodeFileHandle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode FSINFO: %w", err)
	}
	return &FsInfoRequest{Handle: handle}, nil
}

// FsInfo reports the filesystem's Capabilities.
func (h *Handler) FsInfo(ctx *NFSHandlerContext, req *FsInfoRequest) (*FsInfoResponse, error) {
	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		return &FsInfoResponse{Status: status}, nil
	}

	attr, err := h.fs.GetAttr(ctx.Context, id)
	if err != nil {
		return &FsInfoResponse{Status: xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "FSINFO")}, nil
	}

	caps := h.fs.Capabilities()
	props := uint32(types.FSFHomogeneous | types.FSFCanSetTime)
	if caps.SupportsSymlink {
		props |= types.FSFSymlink
	}
	if caps.SupportsLinks {
		props |= types.FSFLink
	}

	return &FsInfoResponse{
		Status:      types.NFS3OK,
		Attr:        h.toNFS(attr),
		RtMax:       caps.MaxReadSize,
		RtPref:      caps.PreferredRead,
		RtMult:      4096,
		WtMax:       caps.MaxWriteSize,
		WtPref:      caps.PreferredWrite,
		WtMult:      4096,
		DtPref:      caps.PreferredRead,
		MaxFileSize: caps.MaxFileSize,
		TimeDelta:   types.TimeVal{Seconds: 0, Nseconds: 1},
		Properties:  props,
	}, nil
}

func (resp *FsInfoResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode FSINFO: %w", err)
	}
	if resp.Status == types.NFS3OK {
		for _, v := range []uint32{resp.RtMax, resp.RtPref, resp.RtMult, resp.WtMax, resp.WtPref, resp.WtMult, resp.DtPref} {
			_ = xdr.EncodeUint32(&buf, v)
		}
		_ = xdr.EncodeUint64(&buf, resp.MaxFileSize)
		_ = xdr.EncodeUint32(&buf, resp.TimeDelta.Seconds)
		_ = xdr.EncodeUint32(&buf, resp.TimeDelta.Nseconds)
		_ = xdr.EncodeUint32(&buf, resp.Properties)
	}
	return buf.Bytes(), nil
}
