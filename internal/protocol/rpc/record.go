package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadRecord reads one record-marked RPC message (RFC 5531 Section 11),
// joining fragments until the last-fragment bit. Records larger than max
// bytes are rejected before their payload is read.
func ReadRecord(r io.Reader, max int) ([]byte, error) {
	var record []byte
	var header [4]byte

	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		mark := binary.BigEndian.Uint32(header[:])
		size := int(mark &^ lastFragment)

		if len(record)+size > max {
			return nil, fmt.Errorf("rpc: record of %d bytes exceeds limit %d", len(record)+size, max)
		}

		start := len(record)
		record = append(record, make([]byte, size)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			return nil, fmt.Errorf("rpc: read fragment: %w", err)
		}

		if mark&lastFragment != 0 {
			return record, nil
		}
	}
}

// WriteRecord writes data as a single last fragment.
func WriteRecord(w io.Writer, data []byte) error {
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, lastFragment|uint32(len(data)))
	copy(buf[4:], data)
	_, err := w.Write(buf)
	return err
}
