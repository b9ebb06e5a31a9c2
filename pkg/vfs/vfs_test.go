package vfs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsupported(t *testing.T) {
	ctx := context.Background()
	fs := Unsupported{Caps: DefaultCapabilities()}

	assert.Equal(t, FileID(1), fs.Root())
	assert.Equal(t, uint32(255), fs.Capabilities().MaxNameLen)

	calls := map[string]error{}
	_, _, calls["lookup"] = fs.Lookup(ctx, 1, "a")
	_, calls["getattr"] = fs.GetAttr(ctx, 1)
	_, calls["setattr"] = fs.SetAttr(ctx, 1, SetAttr{})
	_, _, calls["read"] = fs.Read(ctx, 1, 0, 10)
	_, calls["write"] = fs.Write(ctx, 1, 0, []byte("x"))
	_, _, calls["create"] = fs.Create(ctx, 1, "a", SetAttr{})
	_, _, calls["create_exclusive"] = fs.CreateExclusive(ctx, 1, "a", [8]byte{})
	calls["remove"] = fs.Remove(ctx, 1, "a")
	calls["rename"] = fs.Rename(ctx, 1, "a", 1, "b")
	_, _, calls["mkdir"] = fs.Mkdir(ctx, 1, "d", SetAttr{})
	_, _, calls["symlink"] = fs.Symlink(ctx, 1, "l", "t", SetAttr{})
	_, calls["readlink"] = fs.ReadLink(ctx, 1)
	_, _, calls["readdir"] = fs.ReadDir(ctx, 1, 0, 10)

	for op, err := range calls {
		t.Run(op, func(t *testing.T) {
			require.Error(t, err)
			assert.Equal(t, ErrNotSupported, CodeOf(err))
		})
	}
}

// A partial implementation overrides single operations.
type rootOnly struct {
	Unsupported
}

func (rootOnly) GetAttr(_ context.Context, id FileID) (*Attr, error) {
	return &Attr{ID: id, Type: TypeDirectory, Mode: 0o755, Nlink: 2}, nil
}

func TestUnsupportedEmbedding(t *testing.T) {
	var fs FileSystem = rootOnly{}

	attr, err := fs.GetAttr(context.Background(), fs.Root())
	require.NoError(t, err)
	assert.Equal(t, TypeDirectory, attr.Type)

	_, _, err = fs.Lookup(context.Background(), fs.Root(), "x")
	assert.True(t, IsCode(err, ErrNotSupported))
}

func TestErrors(t *testing.T) {
	err := NewError(ErrNotFound, "lookup", "missing.txt")
	assert.Equal(t, "lookup missing.txt: no such file or directory", err.Error())

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, ErrNotFound, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrNotFound))
	assert.True(t, errors.Is(wrapped, &Error{Code: ErrNotFound}))
	assert.False(t, errors.Is(wrapped, &Error{Code: ErrExist}))

	cause := errors.New("store offline")
	io := WrapError("read", "", cause)
	assert.ErrorIs(t, io, cause)
	assert.Equal(t, ErrIO, CodeOf(io))

	assert.Equal(t, ErrIO, CodeOf(errors.New("plain")))
}

func TestSetAttrIsEmpty(t *testing.T) {
	assert.True(t, SetAttr{}.IsEmpty())
	size := uint64(0)
	assert.False(t, SetAttr{Size: &size}.IsEmpty())
}
