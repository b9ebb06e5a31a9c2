package vfs

import "context"

// Unsupported serves a root and capabilities and refuses everything else
// with ErrNotSupported. Embed it to build a partial FileSystem.
type Unsupported struct {
	RootID FileID
	Caps   Capabilities
}

var _ FileSystem = Unsupported{}

func (u Unsupported) Root() FileID {
	if u.RootID == 0 {
		return 1
	}
	return u.RootID
}

func (u Unsupported) Capabilities() Capabilities { return u.Caps }

func notSupported(op string) error {
	return NewError(ErrNotSupported, op, "")
}

func (Unsupported) Lookup(context.Context, FileID, string) (FileID, *Attr, error) {
	return 0, nil, notSupported("lookup")
}

func (Unsupported) GetAttr(context.Context, FileID) (*Attr, error) {
	return nil, notSupported("getattr")
}

func (Unsupported) SetAttr(context.Context, FileID, SetAttr) (*Attr, error) {
	return nil, notSupported("setattr")
}

func (Unsupported) Read(context.Context, FileID, uint64, uint32) ([]byte, bool, error) {
	return nil, false, notSupported("read")
}

func (Unsupported) Write(context.Context, FileID, uint64, []byte) (*Attr, error) {
	return nil, notSupported("write")
}

func (Unsupported) Create(context.Context, FileID, string, SetAttr) (FileID, *Attr, error) {
	return 0, nil, notSupported("create")
}

func (Unsupported) CreateExclusive(context.Context, FileID, string, [8]byte) (FileID, *Attr, error) {
	return 0, nil, notSupported("create_exclusive")
}

func (Unsupported) Remove(context.Context, FileID, string) error {
	return notSupported("remove")
}

func (Unsupported) Rename(context.Context, FileID, string, FileID, string) error {
	return notSupported("rename")
}

func (Unsupported) Mkdir(context.Context, FileID, string, SetAttr) (FileID, *Attr, error) {
	return 0, nil, notSupported("mkdir")
}

func (Unsupported) Symlink(context.Context, FileID, string, string, SetAttr) (FileID, *Attr, error) {
	return 0, nil, notSupported("symlink")
}

func (Unsupported) ReadLink(context.Context, FileID) (string, error) {
	return "", notSupported("readlink")
}

func (Unsupported) ReadDir(context.Context, FileID, uint64, int) ([]DirEntry, bool, error) {
	return nil, false, notSupported("readdir")
}
