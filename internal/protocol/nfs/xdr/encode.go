package xdr

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
)

// ============================================================================
// XDR Encoding Helpers - Go Structures → Wire Format
// ============================================================================
//
// Writes into a bytes.Buffer cannot fail; the error returns are kept so that
// encoders compose the same way as the decoders.

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writePadding(buf *bytes.Buffer, length uint32) {
	for range (4 - (length % 4)) % 4 {
		buf.WriteByte(0)
	}
}

// EncodeUint32 writes an XDR unsigned int.
func EncodeUint32(buf *bytes.Buffer, v uint32) error {
	writeUint32(buf, v)
	return nil
}

// EncodeUint64 writes an XDR unsigned hyper.
func EncodeUint64(buf *bytes.Buffer, v uint64) error {
	writeUint64(buf, v)
	return nil
}

// EncodeBool writes an XDR bool.
func EncodeBool(buf *bytes.Buffer, v bool) error {
	if v {
		writeUint32(buf, 1)
	} else {
		writeUint32(buf, 0)
	}
	return nil
}

// EncodeOpaque writes variable-length opaque data with padding.
func EncodeOpaque(buf *bytes.Buffer, data []byte) error {
	length := uint32(len(data))
	writeUint32(buf, length)
	buf.Write(data)
	writePadding(buf, length)
	return nil
}

// EncodeString writes an XDR string.
func EncodeString(buf *bytes.Buffer, s string) error {
	length := uint32(len(s))
	writeUint32(buf, length)
	buf.WriteString(s)
	writePadding(buf, length)
	return nil
}

// EncodeOptionalOpaque encodes optional opaque data (post_op_fh3 and
// friends). Empty data is encoded as absent.
//
// Format: [present:uint32] if present=1: [length:uint32][data][padding]
func EncodeOptionalOpaque(buf *bytes.Buffer, data []byte) error {
	if len(data) == 0 {
		return EncodeBool(buf, false)
	}
	_ = EncodeBool(buf, true)
	return EncodeOpaque(buf, data)
}

// EncodeFileAttr encodes fattr3. All fields are required.
func EncodeFileAttr(buf *bytes.Buffer, attr *types.NFSFileAttr) error {
	if attr == nil {
		return fmt.Errorf("file attributes are nil")
	}

	writeUint32(buf, attr.Type)
	writeUint32(buf, attr.Mode)
	writeUint32(buf, attr.Nlink)
	writeUint32(buf, attr.UID)
	writeUint32(buf, attr.GID)
	writeUint64(buf, attr.Size)
	writeUint64(buf, attr.Used)
	writeUint32(buf, attr.Rdev.Major)
	writeUint32(buf, attr.Rdev.Minor)
	writeUint64(buf, attr.Fsid)
	writeUint64(buf, attr.Fileid)
	encodeTime(buf, attr.Atime)
	encodeTime(buf, attr.Mtime)
	encodeTime(buf, attr.Ctime)
	return nil
}

func encodeTime(buf *bytes.Buffer, tv types.TimeVal) {
	writeUint32(buf, tv.Seconds)
	writeUint32(buf, tv.Nseconds)
}

// EncodeOptionalFileAttr encodes post_op_attr.
func EncodeOptionalFileAttr(buf *bytes.Buffer, attr *types.NFSFileAttr) error {
	if attr == nil {
		return EncodeBool(buf, false)
	}
	_ = EncodeBool(buf, true)
	return EncodeFileAttr(buf, attr)
}

// EncodeWccData encodes wcc_data (RFC 1813 Section 2.6).
//
//	struct wcc_data {
//	    pre_op_attr   before;
//	    post_op_attr  after;
//	};
func EncodeWccData(buf *bytes.Buffer, before *types.WccAttr, after *types.NFSFileAttr) error {
	if before == nil {
		_ = EncodeBool(buf, false)
	} else {
		_ = EncodeBool(buf, true)
		writeUint64(buf, before.Size)
		encodeTime(buf, before.Mtime)
		encodeTime(buf, before.Ctime)
	}

	if err := EncodeOptionalFileAttr(buf, after); err != nil {
		return fmt.Errorf("encode after attributes: %w", err)
	}
	return nil
}
