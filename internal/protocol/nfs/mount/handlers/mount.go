package handlers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/rpc"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// MountRequest is the dirpath argument of MNT.
type MountRequest struct {
	DirPath string
}

// MountResponse is fhstatus3 (mountres3).
type MountResponse struct {
	Status      uint32
	FileHandle  []byte
	AuthFlavors []int32
}

func DecodeMountRequest(data []byte) (*MountRequest, error) {
	req := &MountRequest{}
	if _, err := xdr.UnmarshalLimited(bytes.NewReader(data), req, MaxPathLen); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mount request: %w", err)
	}
	return req, nil
}

// Mount returns the root handle when DirPath names the export.
func (h *Handler) Mount(ctx *MountContext, req *MountRequest) (*MountResponse, error) {
	if err := ValidateExportPath(req.DirPath); err != nil {
		logger.Debug("MNT rejected", "path", req.DirPath, "client", ctx.ClientAddr, "error", err)
		return &MountResponse{Status: MountErrInval}, nil
	}
	if !h.exports(req.DirPath) {
		logger.Info("MNT: no such export", "path", req.DirPath, "client", ctx.ClientAddr)
		return &MountResponse{Status: MountErrNoEnt}, nil
	}

	h.record(clientHost(ctx.ClientAddr), req.DirPath)
	logger.Info("MNT", "path", req.DirPath, "client", ctx.ClientAddr, "auth", authFlavorName(ctx.AuthFlavor))

	return &MountResponse{
		Status:      MountOK,
		FileHandle:  h.rootHandle,
		AuthFlavors: []int32{int32(rpc.AuthUnix), int32(rpc.AuthNull)},
	}, nil
}

func (resp *MountResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, resp.Status); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	if resp.Status != MountOK {
		return buf.Bytes(), nil
	}

	handleLen := uint32(len(resp.FileHandle))
	if err := binary.Write(&buf, binary.BigEndian, handleLen); err != nil {
		return nil, fmt.Errorf("write handle length: %w", err)
	}
	buf.Write(resp.FileHandle)
	buf.Write(make([]byte, (4-handleLen%4)%4))

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(resp.AuthFlavors))); err != nil {
		return nil, fmt.Errorf("write auth count: %w", err)
	}
	for _, flavor := range resp.AuthFlavors {
		if err := binary.Write(&buf, binary.BigEndian, flavor); err != nil {
			return nil, fmt.Errorf("write auth flavor: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// clientHost strips the port from "IP:port".
func clientHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func authFlavorName(flavor uint32) string {
	switch flavor {
	case rpc.AuthNull:
		return "AUTH_NULL"
	case rpc.AuthUnix:
		return "AUTH_UNIX"
	case rpc.AuthShort:
		return "AUTH_SHORT"
	case rpc.AuthDES:
		return "AUTH_DES"
	default:
		return fmt.Sprintf("AUTH_%d", flavor)
	}
}
