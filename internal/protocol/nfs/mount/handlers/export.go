package handlers

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type ExportRequest struct{}

// ExportEntry is one exportnode: a path and the groups allowed to mount it.
// An empty group list means every client.
type ExportEntry struct {
	Directory string
	Groups    []string
}

type ExportResponse struct {
	Entries []ExportEntry
}

func DecodeExportRequest(data []byte) (*ExportRequest, error) {
	return &ExportRequest{}, nil
}

func (h *Handler) Export(ctx *MountContext, req *ExportRequest) (*ExportResponse, error) {
	return &ExportResponse{Entries: []ExportEntry{{Directory: h.export}}}, nil
}

func (resp *ExportResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	for _, entry := range resp.Entries {
		if err := binary.Write(&buf, binary.BigEndian, uint32(1)); err != nil {
			return nil, fmt.Errorf("write value_follows: %w", err)
		}
		writeString(&buf, entry.Directory)
		for _, group := range entry.Groups {
			_ = binary.Write(&buf, binary.BigEndian, uint32(1))
			writeString(&buf, group)
		}
		_ = binary.Write(&buf, binary.BigEndian, uint32(0))
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(0)); err != nil {
		return nil, fmt.Errorf("write final value_follows: %w", err)
	}
	return buf.Bytes(), nil
}
