package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testID(b byte) ID {
	var id ID
	for i := range id {
		id[i] = b
	}
	return id
}

func sampleCommit() *Commit {
	return &Commit{
		Parents:                []ID{testID(1), testID(2)},
		Predecessors:           []ID{testID(3)},
		RootTree:               testID(4),
		UsesTreeConflictFormat: true,
		ChangeID:               []byte{0xde, 0xad, 0xbe, 0xef},
		Description:            "merge feature into main\n",
		Author: &CommitSignature{
			Name:      "Test User",
			Email:     "test.user@example.com",
			Timestamp: CommitTimestamp{MillisSinceEpoch: 981173106000, TZOffset: 420},
		},
		Committer: &CommitSignature{
			Name:      "Test User",
			Email:     "test.user@example.com",
			Timestamp: CommitTimestamp{MillisSinceEpoch: 981173107000, TZOffset: -60},
		},
	}
}

func TestID(t *testing.T) {
	t.Run("RoundTripsHex", func(t *testing.T) {
		id := testID(0xab)
		parsed, err := ParseID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		assert.Equal(t, "abababab", id.Short())
	})

	t.Run("RejectsWrongLength", func(t *testing.T) {
		_, err := IDFromBytes([]byte{1, 2, 3})
		assert.Error(t, err)
		_, err = ParseID("zz")
		assert.Error(t, err)
	})

	t.Run("RootCommitIsZero", func(t *testing.T) {
		assert.True(t, RootCommitID.IsZero())
		assert.False(t, testID(1).IsZero())
	})
}

func TestHashDeterminism(t *testing.T) {
	values := []Encodable{
		&File{Content: []byte("hello")},
		&Symlink{Target: "../target"},
		&Tree{Entries: []TreeEntryMapping{{Name: "a.txt", Entry: FileEntry(testID(1), false)}}},
		sampleCommit(),
	}
	for _, v := range values {
		assert.Equal(t, Hash(v), Hash(v))
	}

	// Independent but equal values hash equally.
	assert.Equal(t, Hash(&File{Content: []byte("hello")}), Hash(&File{Content: []byte("hello")}))
	assert.Equal(t, Hash(sampleCommit()), Hash(sampleCommit()))
}

func TestHashSeparation(t *testing.T) {
	a := TreeEntryMapping{Name: "a", Entry: FileEntry(testID(1), false)}
	b := TreeEntryMapping{Name: "b", Entry: FileEntry(testID(2), false)}

	t.Run("ReorderedTreeEntries", func(t *testing.T) {
		assert.NotEqual(t,
			Hash(&Tree{Entries: []TreeEntryMapping{a, b}}),
			Hash(&Tree{Entries: []TreeEntryMapping{b, a}}))
	})

	t.Run("ExecutableBit", func(t *testing.T) {
		assert.NotEqual(t,
			Hash(&Tree{Entries: []TreeEntryMapping{{Name: "x", Entry: FileEntry(testID(1), false)}}}),
			Hash(&Tree{Entries: []TreeEntryMapping{{Name: "x", Entry: FileEntry(testID(1), true)}}}))
	})

	t.Run("EntryKind", func(t *testing.T) {
		kinds := []TreeEntry{
			FileEntry(testID(1), false),
			TreeEntryOf(testID(1)),
			SymlinkEntry(testID(1)),
			ConflictEntry(testID(1)),
		}
		seen := map[ID]EntryKind{}
		for _, e := range kinds {
			id := Hash(&Tree{Entries: []TreeEntryMapping{{Name: "x", Entry: e}}})
			_, dup := seen[id]
			assert.False(t, dup, "kind %s collides", e.Kind)
			seen[id] = e.Kind
		}
	})

	t.Run("ObjectKindsDoNotAlias", func(t *testing.T) {
		// A file and a symlink with the same bytes share an encoding, but
		// they live in separate maps, so equal ids are harmless there. Strings
		// and blobs of different content must still differ.
		assert.NotEqual(t, Hash(&File{Content: []byte("ab")}), Hash(&File{Content: []byte("ba")}))
		assert.NotEqual(t, Hash(&Symlink{Target: "a"}), Hash(&Symlink{Target: "a/"}))
	})

	t.Run("LengthPrefixPreventsConcatenationAmbiguity", func(t *testing.T) {
		t1 := &Tree{Entries: []TreeEntryMapping{{Name: "ab", Entry: TreeEntryOf(testID(1))}}}
		t2 := &Tree{Entries: []TreeEntryMapping{{Name: "a", Entry: TreeEntryOf(testID(1))}}}
		assert.NotEqual(t, Hash(t1), Hash(t2))
	})

	t.Run("AbsentVersusEmptySignature", func(t *testing.T) {
		c1 := sampleCommit()
		c2 := sampleCommit()
		c2.Author = &CommitSignature{}
		c3 := sampleCommit()
		c3.Author = nil
		assert.NotEqual(t, Hash(c1), Hash(c2))
		assert.NotEqual(t, Hash(c2), Hash(c3))
	})

	t.Run("ParentOrder", func(t *testing.T) {
		c1 := sampleCommit()
		c2 := sampleCommit()
		c2.Parents = []ID{testID(2), testID(1)}
		assert.NotEqual(t, Hash(c1), Hash(c2))
	})
}

func TestEmptyTreeEncoding(t *testing.T) {
	// An empty tree is exactly one zero uint64 count.
	assert.Equal(t, make([]byte, 8), Encode(&Tree{}))
	assert.Equal(t, Hash(&Tree{}), Hash(&Tree{Entries: []TreeEntryMapping{}}))
}

func TestOptionalPresenceTag(t *testing.T) {
	c := &Commit{Parents: []ID{RootCommitID}}
	b := Encode(c)
	// parents, predecessors, root tree, conflict flag, change id, description
	off := 8 + IDSize + 8 + IDSize + 1 + 8 + 8
	require.Len(t, b, off+4+4)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, b[off:])

	c.Author = &CommitSignature{}
	b = Encode(c)
	assert.Equal(t, []byte{1, 0, 0, 0}, b[off:off+4])

	t.Run("RejectsOtherTags", func(t *testing.T) {
		b[off] = 2
		_, err := DecodeCommit(b)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestCodecRoundTrip(t *testing.T) {
	t.Run("File", func(t *testing.T) {
		f := &File{Content: []byte("hello")}
		got, err := DecodeFile(Encode(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	})

	t.Run("Symlink", func(t *testing.T) {
		s := &Symlink{Target: "dir/target"}
		got, err := DecodeSymlink(Encode(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	})

	t.Run("TreeWithEveryKind", func(t *testing.T) {
		tree := &Tree{Entries: []TreeEntryMapping{
			{Name: "z.sh", Entry: FileEntry(testID(1), true)},
			{Name: "dir", Entry: TreeEntryOf(testID(2))},
			{Name: "link", Entry: SymlinkEntry(testID(3))},
			{Name: "c", Entry: ConflictEntry(testID(4))},
		}}
		got, err := DecodeTree(Encode(tree))
		require.NoError(t, err)
		assert.Equal(t, tree, got)
	})

	t.Run("Commit", func(t *testing.T) {
		c := sampleCommit()
		got, err := DecodeCommit(Encode(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)

		c.Author, c.Committer = nil, nil
		got, err = DecodeCommit(Encode(c))
		require.NoError(t, err)
		assert.Nil(t, got.Author)
		assert.Nil(t, got.Committer)
	})
}

func TestCodecRejectsMalformedInput(t *testing.T) {
	t.Run("Truncated", func(t *testing.T) {
		b := Encode(sampleCommit())
		_, err := DecodeCommit(b[:len(b)-3])
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("TrailingBytes", func(t *testing.T) {
		b := append(Encode(&Symlink{Target: "x"}), 0)
		_, err := DecodeSymlink(b)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("UnknownEntryKind", func(t *testing.T) {
		b := Encode(&Tree{Entries: []TreeEntryMapping{{Name: "x", Entry: TreeEntryOf(testID(1))}}})
		b[8+8+1] = 9 // count, name length, name, then the discriminant
		_, err := DecodeTree(b)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("HugeLengthPrefix", func(t *testing.T) {
		b := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}
		_, err := DecodeFile(b)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestTreeValidate(t *testing.T) {
	ok := FileEntry(testID(1), false)
	tests := []struct {
		name    string
		tree    *Tree
		wantErr error
	}{
		{"Empty", &Tree{}, nil},
		{"Valid", &Tree{Entries: []TreeEntryMapping{{"a", ok}, {"b", ok}}}, nil},
		{"EmptyName", &Tree{Entries: []TreeEntryMapping{{"", ok}}}, ErrInvalidName},
		{"DotDot", &Tree{Entries: []TreeEntryMapping{{"..", ok}}}, ErrInvalidName},
		{"Slash", &Tree{Entries: []TreeEntryMapping{{"a/b", ok}}}, ErrInvalidName},
		{"Duplicate", &Tree{Entries: []TreeEntryMapping{{"a", ok}, {"a", ok}}}, ErrDuplicateName},
		{"UnknownKind", &Tree{Entries: []TreeEntryMapping{{"a", TreeEntry{Kind: 7}}}}, ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tree.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	t.Run("ExecutableOnTreeEntry", func(t *testing.T) {
		tree := &Tree{Entries: []TreeEntryMapping{{"d", TreeEntry{Kind: KindTree, Executable: true}}}}
		assert.Error(t, tree.Validate())
	})
}

func TestCommitValidate(t *testing.T) {
	assert.ErrorIs(t, (&Commit{}).Validate(), ErrNoParents)
	assert.NoError(t, (&Commit{Parents: []ID{RootCommitID}}).Validate())
}

func TestCloneIsDeep(t *testing.T) {
	c := sampleCommit()
	clone := c.Clone()
	clone.Parents[0] = testID(9)
	clone.ChangeID[0] = 0
	clone.Author.Name = "Other"
	assert.Equal(t, testID(1), c.Parents[0])
	assert.Equal(t, byte(0xde), c.ChangeID[0])
	assert.Equal(t, "Test User", c.Author.Name)

	tree := &Tree{Entries: []TreeEntryMapping{{Name: "b"}, {Name: "a"}}}
	sorted := tree.Clone()
	sorted.SortEntries()
	assert.Equal(t, "b", tree.Entries[0].Name)
	assert.Equal(t, "a", sorted.Entries[0].Name)
}
