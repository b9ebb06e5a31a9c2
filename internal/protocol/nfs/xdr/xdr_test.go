package xdr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/yak/internal/protocol/nfs/types"
	"github.com/marmos91/yak/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func validFileAttr() *types.NFSFileAttr {
	return &types.NFSFileAttr{
		Type:   types.NF3REG,
		Mode:   0644,
		Nlink:  1,
		UID:    1000,
		GID:    1000,
		Size:   1024,
		Used:   1024,
		Fsid:   1,
		Fileid: 12345,
		Atime:  types.TimeVal{Seconds: 1700000000, Nseconds: 1},
		Mtime:  types.TimeVal{Seconds: 1700000000, Nseconds: 2},
		Ctime:  types.TimeVal{Seconds: 1700000000, Nseconds: 3},
	}
}

func putUint32(buf *bytes.Buffer, v uint32) {
	_ = binary.Write(buf, binary.BigEndian, v)
}

// fattr3 is 21 XDR words.
const fattr3Size = 84

// ============================================================================
// Encoding Tests
// ============================================================================

func TestEncodeOptionalOpaque(t *testing.T) {
	t.Run("EncodesEmptyAsNotPresent", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, EncodeOptionalOpaque(buf, nil))
		assert.Equal(t, []byte{0, 0, 0, 0}, buf.Bytes())
	})

	t.Run("EncodesWithProperPadding", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, EncodeOptionalOpaque(buf, []byte{1, 2, 3, 4, 5}))
		assert.Equal(t, []byte{
			0, 0, 0, 1,
			0, 0, 0, 5,
			1, 2, 3, 4, 5, 0, 0, 0,
		}, buf.Bytes())
	})
}

func TestEncodeFileAttr(t *testing.T) {
	t.Run("EncodesAllFields", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, EncodeFileAttr(buf, validFileAttr()))
		b := buf.Bytes()
		require.Len(t, b, fattr3Size)

		assert.Equal(t, uint32(types.NF3REG), binary.BigEndian.Uint32(b[0:]))
		assert.Equal(t, uint32(0644), binary.BigEndian.Uint32(b[4:]))
		assert.Equal(t, uint64(1024), binary.BigEndian.Uint64(b[20:]))
		assert.Equal(t, uint64(1), binary.BigEndian.Uint64(b[44:]))
		assert.Equal(t, uint64(12345), binary.BigEndian.Uint64(b[52:]))
		assert.Equal(t, uint32(3), binary.BigEndian.Uint32(b[80:]))
	})

	t.Run("RejectsNil", func(t *testing.T) {
		assert.Error(t, EncodeFileAttr(new(bytes.Buffer), nil))
	})

	t.Run("OptionalNilIsNotPresent", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, EncodeOptionalFileAttr(buf, nil))
		assert.Equal(t, []byte{0, 0, 0, 0}, buf.Bytes())
	})
}

func TestEncodeWccData(t *testing.T) {
	t.Run("EncodesWithoutAttrs", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, EncodeWccData(buf, nil, nil))
		assert.Equal(t, make([]byte, 8), buf.Bytes())
	})

	t.Run("EncodesWithBothAttrs", func(t *testing.T) {
		buf := new(bytes.Buffer)
		before := &types.WccAttr{Size: 10}
		require.NoError(t, EncodeWccData(buf, before, validFileAttr()))
		// present + wcc_attr (24) + present + fattr3
		assert.Equal(t, 4+24+4+fattr3Size, buf.Len())
	})
}

// ============================================================================
// Decoding Tests
// ============================================================================

func TestDecodeOpaque(t *testing.T) {
	t.Run("DecodesOpaqueWithPadding", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, EncodeOpaque(buf, []byte{9, 8, 7}))
		buf.Write([]byte{0xaa})

		data, err := DecodeOpaque(buf)
		require.NoError(t, err)
		assert.Equal(t, []byte{9, 8, 7}, data)
		assert.Equal(t, []byte{0xaa}, buf.Bytes())
	})

	t.Run("RejectsExcessiveLength", func(t *testing.T) {
		buf := new(bytes.Buffer)
		putUint32(buf, maxOpaqueLength+1)
		_, err := DecodeOpaque(buf)
		assert.Error(t, err)
	})

	t.Run("RejectsTruncatedData", func(t *testing.T) {
		buf := new(bytes.Buffer)
		putUint32(buf, 8)
		buf.Write([]byte{1, 2})
		_, err := DecodeOpaque(buf)
		assert.Error(t, err)
	})
}

func TestDecodeString(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, EncodeString(buf, "hello.txt"))
	s, err := DecodeString(bytes.NewReader(buf.Bytes()), types.MaxNameLen)
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", s)

	_, err = DecodeString(bytes.NewReader(buf.Bytes()), 4)
	assert.Error(t, err)
}

func TestDecodeSetAttrs(t *testing.T) {
	now := time.Unix(1700000000, 0)

	t.Run("NothingSet", func(t *testing.T) {
		buf := new(bytes.Buffer)
		for range 6 {
			putUint32(buf, 0)
		}
		set, err := DecodeSetAttrs(buf, now)
		require.NoError(t, err)
		assert.True(t, set.IsEmpty())
	})

	t.Run("EveryFieldSet", func(t *testing.T) {
		buf := new(bytes.Buffer)
		putUint32(buf, 1)
		putUint32(buf, 0755)
		putUint32(buf, 1)
		putUint32(buf, 501)
		putUint32(buf, 1)
		putUint32(buf, 20)
		putUint32(buf, 1)
		_ = binary.Write(buf, binary.BigEndian, uint64(42))
		putUint32(buf, types.TimeSetToServer)
		putUint32(buf, types.TimeSetToClient)
		putUint32(buf, 1600000000)
		putUint32(buf, 5)

		set, err := DecodeSetAttrs(buf, now)
		require.NoError(t, err)
		require.NotNil(t, set.Mode)
		assert.Equal(t, uint32(0755), *set.Mode)
		assert.Equal(t, uint32(501), *set.UID)
		assert.Equal(t, uint32(20), *set.GID)
		assert.Equal(t, uint64(42), *set.Size)
		assert.True(t, set.Atime.Equal(now))
		assert.True(t, set.Mtime.Equal(time.Unix(1600000000, 5)))
	})

	t.Run("RejectsBadTimeDiscriminant", func(t *testing.T) {
		buf := new(bytes.Buffer)
		for range 4 {
			putUint32(buf, 0)
		}
		putUint32(buf, 7)
		_, err := DecodeSetAttrs(buf, now)
		assert.Error(t, err)
	})
}

// ============================================================================
// File Handle / Attribute / Error Tests
// ============================================================================

func TestFileHandles(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		h := NewFileHandle(7, 42)
		require.Len(t, h, types.FileHandleSize)

		id, status := ParseFileHandle(h, 7)
		assert.Equal(t, uint32(types.NFS3OK), status)
		assert.Equal(t, vfs.FileID(42), id)
	})

	t.Run("OtherMountIsStale", func(t *testing.T) {
		_, status := ParseFileHandle(NewFileHandle(7, 42), 8)
		assert.Equal(t, uint32(types.NFS3ErrStale), status)
	})

	t.Run("MalformedIsBadHandle", func(t *testing.T) {
		for _, h := range [][]byte{nil, {1, 2, 3}, make([]byte, 32), NewFileHandle(7, 0)} {
			_, status := ParseFileHandle(h, 7)
			assert.Equal(t, uint32(types.NFS3ErrBadHandle), status)
		}
	})
}

func TestAttrToNFS(t *testing.T) {
	mtime := time.Unix(1700000000, 500)
	attr := AttrToNFS(&vfs.Attr{
		ID:    9,
		Type:  vfs.TypeSymlink,
		Mode:  0777,
		Nlink: 1,
		Size:  6,
		Mtime: mtime,
	}, 3)

	assert.Equal(t, uint32(types.NF3LNK), attr.Type)
	assert.Equal(t, uint64(3), attr.Fsid)
	assert.Equal(t, uint64(9), attr.Fileid)
	assert.Equal(t, types.TimeVal{Seconds: 1700000000, Nseconds: 500}, attr.Mtime)
	assert.Equal(t, types.TimeVal{}, attr.Atime)
	assert.Nil(t, AttrToNFS(nil, 3))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want uint32
	}{
		{nil, types.NFS3OK},
		{vfs.NewError(vfs.ErrNotFound, "lookup", "x"), types.NFS3ErrNoEnt},
		{vfs.NewError(vfs.ErrNotEmpty, "remove", "d"), types.NFS3ErrNotEmpty},
		{vfs.NewError(vfs.ErrReadOnly, "write", ""), types.NFS3ErrRofs},
		{vfs.NewError(vfs.ErrStale, "getattr", ""), types.NFS3ErrStale},
		{errors.New("boom"), types.NFS3ErrIO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}
}

func TestExtractClientIP(t *testing.T) {
	assert.Equal(t, "192.168.1.100", ExtractClientIP("192.168.1.100:45678"))
	assert.Equal(t, "::1", ExtractClientIP("[::1]:2049"))
	assert.Equal(t, "unknown", ExtractClientIP(""))
	assert.Equal(t, "garbage", ExtractClientIP("garbage"))
}
