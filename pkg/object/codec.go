package object

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is returned when canonical bytes cannot be decoded.
var ErrMalformed = errors.New("malformed object encoding")

// Encode returns the canonical encoding of v, the same bytes Hash digests.
func Encode(v Encodable) []byte {
	var buf bytes.Buffer
	v.encode(newEncoder(&buf))
	return buf.Bytes()
}

func DecodeFile(b []byte) (*File, error) {
	d := &decoder{buf: b}
	f := &File{Content: d.bytes()}
	return f, d.finish("file")
}

func DecodeSymlink(b []byte) (*Symlink, error) {
	d := &decoder{buf: b}
	s := &Symlink{Target: d.string()}
	return s, d.finish("symlink")
}

func DecodeTree(b []byte) (*Tree, error) {
	d := &decoder{buf: b}
	n := d.count(1 + 8 + IDSize)
	t := &Tree{}
	if n > 0 {
		t.Entries = make([]TreeEntryMapping, 0, n)
	}
	for i := 0; i < n && d.err == nil; i++ {
		name := d.string()
		entry := d.entry()
		t.Entries = append(t.Entries, TreeEntryMapping{Name: name, Entry: entry})
	}
	return t, d.finish("tree")
}

func DecodeCommit(b []byte) (*Commit, error) {
	d := &decoder{buf: b}
	c := &Commit{
		Parents:                d.ids(),
		Predecessors:           d.ids(),
		RootTree:               d.id(),
		UsesTreeConflictFormat: d.bool(),
		ChangeID:               d.bytes(),
		Description:            d.string(),
	}
	c.Author = d.signature()
	c.Committer = d.signature()
	return c, d.finish("commit")
}

// decoder reads the canonical encoding. The first error sticks and every
// later read returns a zero value.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.buf)-d.off {
		d.fail("need %d bytes at offset %d, have %d", n, d.off, len(d.buf)-d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) bool() bool {
	switch v := d.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail("invalid bool byte %d", v)
		return false
	}
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) i32() int32 {
	return int32(d.u32())
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// count reads a length prefix and checks that at least n*minSize bytes
// remain, so a corrupt prefix cannot trigger a huge allocation.
func (d *decoder) count(minSize int) int {
	n := d.u64()
	if d.err != nil {
		return 0
	}
	remaining := uint64(len(d.buf) - d.off)
	if minSize > 0 && n > remaining/uint64(minSize) {
		d.fail("count %d exceeds remaining %d bytes", n, remaining)
		return 0
	}
	return int(n)
}

func (d *decoder) bytes() []byte {
	n := d.count(1)
	b := d.take(n)
	if len(b) == 0 {
		return nil
	}
	return bytes.Clone(b)
}

func (d *decoder) string() string {
	n := d.count(1)
	return string(d.take(n))
}

func (d *decoder) id() ID {
	var id ID
	copy(id[:], d.take(IDSize))
	return id
}

func (d *decoder) ids() []ID {
	n := d.count(IDSize)
	if n == 0 {
		return nil
	}
	ids := make([]ID, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		ids = append(ids, d.id())
	}
	return ids
}

func (d *decoder) entry() TreeEntry {
	kind := EntryKind(d.u8())
	switch kind {
	case KindFile:
		id := d.id()
		return FileEntry(id, d.bool())
	case KindTree, KindSymlink, KindConflict:
		return TreeEntry{Kind: kind, ID: d.id()}
	default:
		d.fail("unknown tree entry kind %d", uint8(kind))
		return TreeEntry{}
	}
}

func (d *decoder) signature() *CommitSignature {
	switch present := d.u32(); present {
	case 0:
		return nil
	case 1:
		s := &CommitSignature{Name: d.string(), Email: d.string()}
		s.Timestamp.MillisSinceEpoch = d.u64AsI64()
		s.Timestamp.TZOffset = d.i32()
		return s
	default:
		d.fail("invalid presence tag %d", present)
		return nil
	}
}

func (d *decoder) u64AsI64() int64 {
	return int64(d.u64())
}

func (d *decoder) finish(kind string) error {
	if d.err == nil && d.off != len(d.buf) {
		d.fail("%d trailing bytes", len(d.buf)-d.off)
	}
	if d.err != nil {
		return fmt.Errorf("decode %s: %w", kind, d.err)
	}
	return nil
}
