package object

import (
	"encoding/hex"
	"fmt"
)

// IDSize is the length in bytes of every object identifier.
const IDSize = 32

// ID is a 256-bit content-derived identifier.
type ID [IDSize]byte

// RootCommitID is the reserved all-zero identifier used as the sole parent
// of a commit that has no real ancestor.
var RootCommitID ID

// IsZero reports whether id is the all-zero sentinel.
func (id ID) IsZero() bool {
	return id == ID{}
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex digits, the form used in log lines.
func (id ID) Short() string {
	return hex.EncodeToString(id[:4])
}

// Bytes returns a copy of the raw identifier bytes.
func (id ID) Bytes() []byte {
	b := make([]byte, IDSize)
	copy(b, id[:])
	return b
}

// IDFromBytes converts a raw 32-byte slice into an ID.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, fmt.Errorf("invalid id length %d: expected %d", len(b), IDSize)
	}
	copy(id[:], b)
	return id, nil
}

// ParseID decodes the hexadecimal form produced by String.
func ParseID(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return IDFromBytes(b)
}
