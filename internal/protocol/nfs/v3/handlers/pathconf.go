package handlers

import (
	"bytes"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
)

// PathConfRequest is PATHCONF3args (RFC 1813 Section 3.3.20).
type PathConfRequest struct {
	Handle []byte
}

type PathConfResponse struct {
	Status          uint32
	Attr            *types.NFSFileAttr
	LinkMax         uint32
	NameMax         uint32
	NoTrunc         bool
	ChownRestricted bool
	CaseInsensitive bool
	CasePreserving  bool
}

func DecodePathConfRequest(data []byte) (*PathConfRequest, error) {
	handle, err := xdr.DecodeFileHandle(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode PATHCONF: %w", err)
	}
	return &PathConfRequest{Handle: handle}, nil
}

func (h *Handler) PathConf(ctx *NFSHandlerContext, req *PathConfRequest) (*PathConfResponse, error) {
	id, status := h.resolve(req.Handle)
	if status != types.NFS3OK {
		return &PathConfResponse{Status: status}, nil
	}

	attr, err := h.fs.GetAttr(ctx.Context, id)
	if err != nil {
		return &PathConfResponse{Status: xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "PATHCONF")}, nil
	}

	caps := h.fs.Capabilities()
	linkMax := uint32(1)
	if caps.SupportsLinks {
		linkMax = 32000
	}

	return &PathConfResponse{
		Status:          types.NFS3OK,
		Attr:            h.toNFS(attr),
		LinkMax:         linkMax,
		NameMax:         caps.MaxNameLen,
		NoTrunc:         true,
		ChownRestricted: true,
		CaseInsensitive: !caps.CaseSensitive,
		CasePreserving:  true,
	}, nil
}

func (resp *PathConfResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	_ = xdr.EncodeUint32(&buf, resp.Status)
	if err := xdr.EncodeOptionalFileAttr(&buf, resp.Attr); err != nil {
		return nil, fmt.Errorf("encode PATHCONF: %w", err)
	}
	if resp.Status == types.NFS3OK {
		_ = xdr.EncodeUint32(&buf, resp.LinkMax)
		_ = xdr.EncodeUint32(&buf, resp.NameMax)
		for _, v := range []bool{resp.NoTrunc, resp.ChownRestricted, resp.CaseInsensitive, resp.CasePreserving} {
			_ = xdr.EncodeBool(&buf, v)
		}
	}
	return buf.Bytes(), nil
}
