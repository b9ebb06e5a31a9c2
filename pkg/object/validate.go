package object

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoParents     = errors.New("commit must have at least one parent")
	ErrInvalidName   = errors.New("invalid tree entry name")
	ErrDuplicateName = errors.New("duplicate tree entry name")
	ErrUnknownKind   = errors.New("unknown tree entry kind")
)

// ValidateName checks a single path component.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("%w: %q contains a separator or NUL", ErrInvalidName, name)
	}
	return nil
}

// Validate enforces the tree policy: every name is a valid, unique path
// component and every entry has a known kind. Order is left untouched.
func (t *Tree) Validate() error {
	seen := make(map[string]struct{}, len(t.Entries))
	for i, m := range t.Entries {
		if err := ValidateName(m.Name); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("entry %d: %w: %q", i, ErrDuplicateName, m.Name)
		}
		seen[m.Name] = struct{}{}
		if !m.Entry.Kind.Valid() {
			return fmt.Errorf("entry %d (%q): %w %d", i, m.Name, ErrUnknownKind, uint8(m.Entry.Kind))
		}
		if m.Entry.Kind != KindFile && m.Entry.Executable {
			return fmt.Errorf("entry %d (%q): executable bit on %s entry", i, m.Name, m.Entry.Kind)
		}
	}
	return nil
}

func (c *Commit) Validate() error {
	if len(c.Parents) == 0 {
		return ErrNoParents
	}
	return nil
}
