package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/store"
	"github.com/marmos91/yak/pkg/store/memory"
)

func fileID(content string) object.ID {
	return object.Hash(&object.File{Content: []byte(content)})
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path  string
		valid bool
	}{
		{"a", true},
		{"a/b/c.txt", true},
		{".hidden/file", true},
		{"", false},
		{"/abs", false},
		{"trailing/", false},
		{"a//b", false},
		{"a/./b", false},
		{"../escape", false},
		{"nul\x00byte", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPath)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		err := Validate(map[string]object.TreeEntry{
			"README":     object.FileEntry(fileID("r"), false),
			"bin/run":    object.FileEntry(fileID("x"), true),
			"bin/link":   object.SymlinkEntry(fileID("l")),
			"src/a/b.go": object.FileEntry(fileID("b"), false),
			"conflicted": object.ConflictEntry(fileID("c")),
		})
		assert.NoError(t, err)
	})

	t.Run("TreeEntry", func(t *testing.T) {
		err := Validate(map[string]object.TreeEntry{"dir": object.TreeEntryOf(store.EmptyTreeID)})
		assert.ErrorIs(t, err, ErrTreeEntry)
	})

	t.Run("Collision", func(t *testing.T) {
		err := Validate(map[string]object.TreeEntry{
			"a":   object.FileEntry(fileID("a"), false),
			"a/b": object.FileEntry(fileID("b"), false),
		})
		assert.ErrorIs(t, err, ErrPathCollision)
	})

	t.Run("DeepCollision", func(t *testing.T) {
		err := Validate(map[string]object.TreeEntry{
			"a/b":     object.SymlinkEntry(fileID("a")),
			"a/b/c/d": object.FileEntry(fileID("b"), false),
		})
		assert.ErrorIs(t, err, ErrPathCollision)
	})

	t.Run("ExecutableSymlink", func(t *testing.T) {
		e := object.SymlinkEntry(fileID("l"))
		e.Executable = true
		assert.Error(t, Validate(map[string]object.TreeEntry{"l": e}))
	})
}

func TestSplitJoin(t *testing.T) {
	dir, name := Split("a/b/c")
	assert.Equal(t, "a/b", dir)
	assert.Equal(t, "c", name)

	dir, name = Split("top")
	assert.Equal(t, "", dir)
	assert.Equal(t, "top", name)

	assert.Equal(t, "top", Join("", "top"))
	assert.Equal(t, "a/b/c", Join("a/b", "c"))
}

func TestBuildAndFlatten(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryObjectStore()

	t.Run("EmptyMapping", func(t *testing.T) {
		id, err := Build(ctx, s, map[string]object.TreeEntry{})
		require.NoError(t, err)
		assert.Equal(t, s.EmptyTreeID(), id)

		entries, err := Flatten(ctx, s, id)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		mapping := map[string]object.TreeEntry{
			"README.md":        object.FileEntry(fileID("readme"), false),
			"scripts/build.sh": object.FileEntry(fileID("build"), true),
			"src/lib/a.go":     object.FileEntry(fileID("a"), false),
			"src/lib/b.go":     object.FileEntry(fileID("b"), false),
			"src/link":         object.SymlinkEntry(fileID("target")),
		}

		id, err := Build(ctx, s, mapping)
		require.NoError(t, err)

		flat, err := Flatten(ctx, s, id)
		require.NoError(t, err)
		assert.True(t, Equal(mapping, flat))

		root, err := s.ReadTree(ctx, id)
		require.NoError(t, err)
		names := make([]string, 0, len(root.Entries))
		for _, m := range root.Entries {
			names = append(names, m.Name)
		}
		assert.Equal(t, []string{"README.md", "scripts", "src"}, names)
	})

	t.Run("Deterministic", func(t *testing.T) {
		mapping := map[string]object.TreeEntry{
			"z":   object.FileEntry(fileID("z"), false),
			"a":   object.FileEntry(fileID("a"), false),
			"m/n": object.FileEntry(fileID("n"), false),
		}
		first, err := Build(ctx, s, mapping)
		require.NoError(t, err)
		second, err := Build(ctx, s, mapping)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("InvalidMapping", func(t *testing.T) {
		_, err := Build(ctx, s, map[string]object.TreeEntry{"../x": object.FileEntry(fileID("x"), false)})
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("FlattenMissingTree", func(t *testing.T) {
		_, err := Flatten(ctx, s, fileID("not a tree"))
		assert.True(t, store.IsNotFound(err))
	})
}

func TestDiff(t *testing.T) {
	a := map[string]object.TreeEntry{
		"same":    object.FileEntry(fileID("s"), false),
		"changed": object.FileEntry(fileID("1"), false),
		"removed": object.FileEntry(fileID("r"), false),
	}
	b := map[string]object.TreeEntry{
		"same":    object.FileEntry(fileID("s"), false),
		"changed": object.FileEntry(fileID("1"), true),
		"added":   object.SymlinkEntry(fileID("x")),
	}

	assert.Equal(t, []string{"added", "changed", "removed"}, Diff(a, b))
	assert.False(t, Equal(a, b))
	assert.Empty(t, Diff(a, a))
}

func TestStateClone(t *testing.T) {
	s := &State{
		WorkspaceID: "/ws",
		OperationID: []byte{1, 2},
		RootTree:    store.EmptyTreeID,
		Entries:     map[string]object.TreeEntry{"a": object.FileEntry(fileID("a"), false)},
	}
	c := s.Clone()
	c.OperationID[0] = 9
	c.Entries["b"] = object.FileEntry(fileID("b"), false)

	assert.Equal(t, byte(1), s.OperationID[0])
	assert.Len(t, s.Entries, 1)
	assert.Equal(t, []string{"a", "b"}, c.Paths())
}
