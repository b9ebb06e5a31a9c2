package handlers

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xdr "github.com/rasky/go-xdr/xdr2"
)

func testContext(addr string) *MountContext {
	return &MountContext{Context: context.Background(), ClientAddr: addr}
}

func encodePath(t *testing.T, path string) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := xdr.Marshal(&buf, &MountRequest{DirPath: path})
	require.NoError(t, err)
	return buf.Bytes()
}

func TestMount(t *testing.T) {
	root := []byte{0, 0, 0, 0, 0, 0, 0, 7, 0, 0, 0, 0, 0, 0, 0, 1}
	h := New("/work/repo", root)
	ctx := testContext("10.0.0.5:800")

	for _, path := range []string{"/", "/work/repo"} {
		req, err := DecodeMountRequest(encodePath(t, path))
		require.NoError(t, err)

		resp, err := h.Mount(ctx, req)
		require.NoError(t, err)
		require.Equal(t, uint32(MountOK), resp.Status, path)
		assert.Equal(t, root, resp.FileHandle)
	}

	t.Run("UnknownPath", func(t *testing.T) {
		resp, err := h.Mount(ctx, &MountRequest{DirPath: "/elsewhere"})
		require.NoError(t, err)
		assert.Equal(t, uint32(MountErrNoEnt), resp.Status)
	})

	t.Run("RelativePath", func(t *testing.T) {
		resp, err := h.Mount(ctx, &MountRequest{DirPath: "work"})
		require.NoError(t, err)
		assert.Equal(t, uint32(MountErrInval), resp.Status)
	})

	t.Run("HugeDirPathLength", func(t *testing.T) {
		_, err := DecodeMountRequest([]byte{0x7f, 0xff, 0xff, 0xff})
		assert.Error(t, err)
		_, err = DecodeUmountRequest([]byte{0x7f, 0xff, 0xff, 0xff})
		assert.Error(t, err)
	})

	t.Run("DirPathOverLimit", func(t *testing.T) {
		_, err := DecodeMountRequest(encodePath(t, "/"+string(bytes.Repeat([]byte("a"), MaxPathLen))))
		assert.Error(t, err)
	})

	t.Run("EncodeOK", func(t *testing.T) {
		resp, err := h.Mount(ctx, &MountRequest{DirPath: "/"})
		require.NoError(t, err)
		b, err := resp.Encode()
		require.NoError(t, err)
		// status, handle length, 16 handle bytes, flavor count, two flavors
		assert.Len(t, b, 4+4+16+4+8)
	})

	t.Run("EncodeError", func(t *testing.T) {
		b, err := (&MountResponse{Status: MountErrNoEnt}).Encode()
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 2}, b)
	})
}

func TestMountList(t *testing.T) {
	h := New("/work/repo", make([]byte, 16))
	a := testContext("10.0.0.1:700")
	b := testContext("10.0.0.2:701")

	_, err := h.Mount(a, &MountRequest{DirPath: "/work/repo"})
	require.NoError(t, err)
	_, err = h.Mount(a, &MountRequest{DirPath: "/"})
	require.NoError(t, err)
	_, err = h.Mount(b, &MountRequest{DirPath: "/"})
	require.NoError(t, err)

	dump, err := h.Dump(a, &DumpRequest{})
	require.NoError(t, err)
	assert.Equal(t, []MountEntry{
		{Hostname: "10.0.0.1", Directory: "/"},
		{Hostname: "10.0.0.1", Directory: "/work/repo"},
		{Hostname: "10.0.0.2", Directory: "/"},
	}, dump.Entries)

	_, err = h.Umnt(a, &UmountRequest{DirPath: "/"})
	require.NoError(t, err)
	dump, _ = h.Dump(a, &DumpRequest{})
	assert.Len(t, dump.Entries, 2)

	_, err = h.UmntAll(a, &UmountAllRequest{})
	require.NoError(t, err)
	dump, _ = h.Dump(a, &DumpRequest{})
	assert.Equal(t, []MountEntry{{Hostname: "10.0.0.2", Directory: "/"}}, dump.Entries)

	t.Run("EncodeDump", func(t *testing.T) {
		enc, err := dump.Encode()
		require.NoError(t, err)
		// follows, "10.0.0.2" (4+8), "/" (4+4), terminator
		assert.Len(t, enc, 4+12+8+4)
	})
}

func TestExport(t *testing.T) {
	h := New("/work/repo", nil)
	resp, err := h.Export(testContext("127.0.0.1:1"), &ExportRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "/work/repo", resp.Entries[0].Directory)

	enc, err := resp.Encode()
	require.NoError(t, err)
	// follows, "/work/repo" (4+12), no groups, terminator
	assert.Equal(t, 4+16+4+4, len(enc))
}

func TestValidateExportPath(t *testing.T) {
	assert.NoError(t, ValidateExportPath("/"))
	assert.Error(t, ValidateExportPath(""))
	assert.Error(t, ValidateExportPath("relative"))
	assert.Error(t, ValidateExportPath("/"+string(make([]byte, MaxPathLen))))
}
