package xdr

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/pkg/vfs"
)

// ============================================================================
// XDR Decoding Helpers - Wire Format → Go Structures
// ============================================================================

// maxOpaqueLength bounds any single opaque field. WRITE payloads are the
// largest legitimate values.
const maxOpaqueLength = 1 << 20

// DecodeOpaque decodes XDR variable-length opaque data.
//
// Per RFC 4506 Section 4.10:
// Format: [length:uint32][data:length bytes][padding:0-3 bytes]
func DecodeOpaque(reader io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	if length > maxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, maxOpaqueLength)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	if padding := (4 - (length % 4)) % 4; padding > 0 {
		if _, err := io.CopyN(io.Discard, reader, int64(padding)); err != nil {
			return nil, fmt.Errorf("skip padding: %w", err)
		}
	}

	return data, nil
}

// DecodeString decodes an XDR string, rejecting values longer than limit.
func DecodeString(reader io.Reader, limit int) (string, error) {
	data, err := DecodeOpaque(reader)
	if err != nil {
		return "", err
	}
	if len(data) > limit {
		return "", fmt.Errorf("string length %d exceeds maximum %d", len(data), limit)
	}
	return string(data), nil
}

// DecodeFileHandle decodes nfs_fh3. Only the protocol bound is checked here;
// ParseFileHandle validates the contents.
func DecodeFileHandle(reader io.Reader) ([]byte, error) {
	handle, err := DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("decode handle: %w", err)
	}
	if len(handle) > types.MaxFileHandleSize {
		return nil, fmt.Errorf("handle length %d exceeds maximum %d", len(handle), types.MaxFileHandleSize)
	}
	return handle, nil
}

// DecodeUint32 reads one XDR unsigned int.
func DecodeUint32(reader io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(reader, binary.BigEndian, &v)
	return v, err
}

// DecodeUint64 reads one XDR unsigned hyper.
func DecodeUint64(reader io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(reader, binary.BigEndian, &v)
	return v, err
}

// DecodeBool reads an XDR bool.
func DecodeBool(reader io.Reader) (bool, error) {
	v, err := DecodeUint32(reader)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool value %d", v)
	}
}

// DecodeSetAttrs decodes sattr3 (RFC 1813 Section 2.5.3) into a vfs.SetAttr.
//
//	struct sattr3 {
//	    set_mode3   mode;
//	    set_uid3    uid;
//	    set_gid3    gid;
//	    set_size3   size;
//	    set_atime   atime;   // DONT_CHANGE | SET_TO_SERVER_TIME | SET_TO_CLIENT_TIME
//	    set_mtime   mtime;
//	};
//
// SET_TO_SERVER_TIME resolves to now.
func DecodeSetAttrs(reader io.Reader, now time.Time) (vfs.SetAttr, error) {
	var set vfs.SetAttr

	optional32 := func(field string) (*uint32, error) {
		present, err := DecodeBool(reader)
		if err != nil {
			return nil, fmt.Errorf("read set_%s: %w", field, err)
		}
		if !present {
			return nil, nil
		}
		v, err := DecodeUint32(reader)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", field, err)
		}
		return &v, nil
	}

	var err error
	if set.Mode, err = optional32("mode"); err != nil {
		return set, err
	}
	if set.UID, err = optional32("uid"); err != nil {
		return set, err
	}
	if set.GID, err = optional32("gid"); err != nil {
		return set, err
	}

	present, err := DecodeBool(reader)
	if err != nil {
		return set, fmt.Errorf("read set_size: %w", err)
	}
	if present {
		size, err := DecodeUint64(reader)
		if err != nil {
			return set, fmt.Errorf("read size: %w", err)
		}
		set.Size = &size
	}

	if set.Atime, err = decodeSetTime(reader, "atime", now); err != nil {
		return set, err
	}
	if set.Mtime, err = decodeSetTime(reader, "mtime", now); err != nil {
		return set, err
	}
	return set, nil
}

func decodeSetTime(reader io.Reader, field string, now time.Time) (*time.Time, error) {
	how, err := DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("read set_%s: %w", field, err)
	}

	switch how {
	case types.TimeDontChange:
		return nil, nil
	case types.TimeSetToServer:
		t := now
		return &t, nil
	case types.TimeSetToClient:
		var tv types.TimeVal
		if err := binary.Read(reader, binary.BigEndian, &tv); err != nil {
			return nil, fmt.Errorf("read %s: %w", field, err)
		}
		t := TimeValToTime(tv)
		return &t, nil
	default:
		return nil, fmt.Errorf("invalid set_%s value: %d", field, how)
	}
}

// DecodeTimeGuard decodes sattrguard3.
func DecodeTimeGuard(reader io.Reader) (types.TimeGuard, error) {
	var guard types.TimeGuard

	check, err := DecodeBool(reader)
	if err != nil {
		return guard, fmt.Errorf("read guard check: %w", err)
	}
	guard.Check = check
	if check {
		if err := binary.Read(reader, binary.BigEndian, &guard.Time); err != nil {
			return guard, fmt.Errorf("read guard time: %w", err)
		}
	}
	return guard, nil
}
