package handlers

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type DumpRequest struct{}

type DumpResponse struct {
	Entries []MountEntry
}

func DecodeDumpRequest(data []byte) (*DumpRequest, error) {
	return &DumpRequest{}, nil
}

// Dump lists the clients that mounted the export and have not unmounted.
func (h *Handler) Dump(ctx *MountContext, req *DumpRequest) (*DumpResponse, error) {
	return &DumpResponse{Entries: h.entries()}, nil
}

func (resp *DumpResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	for _, entry := range resp.Entries {
		if err := binary.Write(&buf, binary.BigEndian, uint32(1)); err != nil {
			return nil, fmt.Errorf("write value_follows: %w", err)
		}
		writeString(&buf, entry.Hostname)
		writeString(&buf, entry.Directory)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(0)); err != nil {
		return nil, fmt.Errorf("write final value_follows: %w", err)
	}
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	n := uint32(len(s))
	_ = binary.Write(buf, binary.BigEndian, n)
	buf.WriteString(s)
	buf.Write(make([]byte, (4-n%4)%4))
}
