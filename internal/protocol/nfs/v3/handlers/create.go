package handlers

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/internal/protocol/nfs/xdr"
	"github.com/marmos91/yak/pkg/vfs"
)

// CreateRequest is CREATE3args (RFC 1813 Section 3.3.8). Attrs is set for
// UNCHECKED and GUARDED, Verifier for EXCLUSIVE.
type CreateRequest struct {
	DirHandle []byte
	Filename  string
	Mode      uint32
	Attrs     vfs.SetAttr
	Verifier  [8]byte
}

type CreateResponse struct {
	creationResult
}

func (h *Handler) DecodeCreateRequest(data []byte) (*CreateRequest, error) {
	reader := bytes.NewReader(data)

	args, err := decodeDirOpArgs(reader)
	if err != nil {
		return nil, fmt.Errorf("decode CREATE: %w", err)
	}
	req := &CreateRequest{DirHandle: args.Handle, Filename: args.Name}

	if req.Mode, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode CREATE mode: %w", err)
	}

	switch req.Mode {
	case types.CreateUnchecked, types.CreateGuarded:
		if req.Attrs, err = xdr.DecodeSetAttrs(reader, h.now()); err != nil {
			return nil, fmt.Errorf("decode CREATE attributes: %w", err)
		}
	case types.CreateExclusive:
		if _, err := io.ReadFull(reader, req.Verifier[:]); err != nil {
			return nil, fmt.Errorf("decode CREATE verifier: %w", err)
		}
	default:
		return nil, fmt.Errorf("decode CREATE: invalid createmode %d", req.Mode)
	}
	return req, nil
}

func (h *Handler) Create(ctx *NFSHandlerContext, req *CreateRequest) (*CreateResponse, error) {
	resp := &CreateResponse{}

	dirID, status := h.resolve(req.DirHandle)
	if status != types.NFS3OK {
		resp.Status = status
		return resp, nil
	}
	resp.DirBefore = h.preOpAttr(ctx, dirID)

	if status := validateName(req.Filename); status != types.NFS3OK {
		resp.Status = status
		resp.DirAfter = h.postOpAttr(ctx, dirID)
		return resp, nil
	}

	var (
		id   vfs.FileID
		attr *vfs.Attr
		err  error
	)
	switch req.Mode {
	case types.CreateExclusive:
		id, attr, err = h.fs.CreateExclusive(ctx.Context, dirID, req.Filename, req.Verifier)
	case types.CreateGuarded:
		id, attr, err = h.fs.Create(ctx.Context, dirID, req.Filename, req.Attrs)
	default:
		id, attr, err = h.createUnchecked(ctx, dirID, req.Filename, req.Attrs)
	}

	resp.DirAfter = h.postOpAttr(ctx, dirID)
	if err != nil {
		resp.Status = xdr.MapFSErrorToNFSStatus(err, ctx.clientIP(), "CREATE")
		return resp, nil
	}

	logger.Debugf("CREATE: name=%q dir=%d id=%d mode=%d client=%s", req.Filename, dirID, id, req.Mode, ctx.clientIP())

	resp.Status = types.NFS3OK
	resp.Handle = h.handle(id)
	resp.Attr = h.toNFS(attr)
	return resp, nil
}

// createUnchecked creates name, or applies attrs to the regular file that
// already has that name.
func (h *Handler) createUnchecked(ctx *NFSHandlerContext, dir vfs.FileID, name string, attrs vfs.SetAttr) (vfs.FileID, *vfs.Attr, error) {
	id, attr, err := h.fs.Create(ctx.Context, dir, name, attrs)
	if !vfs.IsCode(err, vfs.ErrExist) {
		return id, attr, err
	}

	id, attr, err = h.fs.Lookup(ctx.Context, dir, name)
	if err != nil {
		return 0, nil, err
	}
	if attr.Type != vfs.TypeRegular {
		return 0, nil, vfs.NewError(vfs.ErrExist, "create", name)
	}
	if attrs.IsEmpty() {
		return id, attr, nil
	}
	attr, err = h.fs.SetAttr(ctx.Context, id, attrs)
	return id, attr, err
}

func (resp *CreateResponse) Encode() ([]byte, error) {
	return resp.encode()
}
