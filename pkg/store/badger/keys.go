package badger

import (
	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/store"
)

// Key namespace
//
// Every object lives under a kind prefix followed by the hex id. Values are
// the canonical object encoding from pkg/object, the same bytes the id is
// hashed from.
//
//	Kind      Prefix   Key Format       Value
//	=============================================================
//	File      "f:"     f:<hex id>       object.Encode(*File)
//	Symlink   "s:"     s:<hex id>       object.Encode(*Symlink)
//	Tree      "t:"     t:<hex id>       object.Encode(*Tree)
//	Commit    "c:"     c:<hex id>       object.Encode(*Commit)
const (
	prefixFile    = "f:"
	prefixSymlink = "s:"
	prefixTree    = "t:"
	prefixCommit  = "c:"
)

func prefixFor(kind store.Kind) string {
	switch kind {
	case store.KindFile:
		return prefixFile
	case store.KindSymlink:
		return prefixSymlink
	case store.KindTree:
		return prefixTree
	case store.KindCommit:
		return prefixCommit
	default:
		panic("badger: unknown object kind " + string(kind))
	}
}

func objectKey(kind store.Kind, id object.ID) []byte {
	return []byte(prefixFor(kind) + id.String())
}
