package testing

import (
	"testing"

	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTreeTests covers tree objects and the tree name policy.
func (suite *StoreTestSuite) RunTreeTests(t *testing.T) {
	t.Run("EmptyTree_Stable", suite.testEmptyTreeStable)
	t.Run("EmptyTree_ReadableBeforeWrite", suite.testEmptyTreeReadable)
	t.Run("EmptyTree_WriteReturnsSameID", suite.testEmptyTreeWrite)
	t.Run("Tree_SingleEntry", suite.testTreeSingleEntry)
	t.Run("Tree_AllKinds", suite.testTreeAllKinds)
	t.Run("Tree_OrderIsPreserved", suite.testTreeOrderPreserved)
	t.Run("Tree_NotFound", suite.testTreeNotFound)
	t.Run("Tree_InvalidNames", suite.testTreeInvalidNames)
	t.Run("Tree_ExecutableOnNonFile", suite.testTreeExecutableOnNonFile)
}

func (suite *StoreTestSuite) testEmptyTreeStable(t *testing.T) {
	s := suite.newStore(t)

	assert.Equal(t, store.EmptyTreeID, s.EmptyTreeID())
	assert.Equal(t, s.EmptyTreeID(), s.EmptyTreeID())
	assert.Equal(t, object.Hash(&object.Tree{}), s.EmptyTreeID())
}

func (suite *StoreTestSuite) testEmptyTreeReadable(t *testing.T) {
	s := suite.newStore(t)

	tree, err := s.ReadTree(testContext(), s.EmptyTreeID())
	require.NoError(t, err)
	assert.Empty(t, tree.Entries)
}

func (suite *StoreTestSuite) testEmptyTreeWrite(t *testing.T) {
	s := suite.newStore(t)

	id := mustWriteTree(t, s, &object.Tree{})
	assert.Equal(t, s.EmptyTreeID(), id)
}

func (suite *StoreTestSuite) testTreeSingleEntry(t *testing.T) {
	s := suite.newStore(t)

	fileID := mustWriteFile(t, s, "hello\n")
	tree := &object.Tree{Entries: []object.TreeEntryMapping{
		{Name: "hello.txt", Entry: object.FileEntry(fileID, false)},
	}}
	id := mustWriteTree(t, s, tree)
	assert.NotEqual(t, s.EmptyTreeID(), id)

	got, err := s.ReadTree(testContext(), id)
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "hello.txt", got.Entries[0].Name)
	assert.Equal(t, object.FileEntry(fileID, false), got.Entries[0].Entry)
}

func (suite *StoreTestSuite) testTreeAllKinds(t *testing.T) {
	s := suite.newStore(t)

	fileID := mustWriteFile(t, s, "#!/bin/sh\n")
	linkID, err := s.WriteSymlink(testContext(), &object.Symlink{Target: "run.sh"})
	require.NoError(t, err)
	subID := s.EmptyTreeID()

	tree := &object.Tree{Entries: []object.TreeEntryMapping{
		{Name: "run.sh", Entry: object.FileEntry(fileID, true)},
		{Name: "link", Entry: object.SymlinkEntry(linkID)},
		{Name: "sub", Entry: object.TreeEntryOf(subID)},
		{Name: "conflicted", Entry: object.ConflictEntry(fileID)},
	}}
	id := mustWriteTree(t, s, tree)

	got, err := s.ReadTree(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, tree.Entries, got.Entries)
}

func (suite *StoreTestSuite) testTreeOrderPreserved(t *testing.T) {
	s := suite.newStore(t)

	a := mustWriteFile(t, s, "a")
	b := mustWriteFile(t, s, "b")
	forward := &object.Tree{Entries: []object.TreeEntryMapping{
		{Name: "a", Entry: object.FileEntry(a, false)},
		{Name: "b", Entry: object.FileEntry(b, false)},
	}}
	reversed := &object.Tree{Entries: []object.TreeEntryMapping{
		{Name: "b", Entry: object.FileEntry(b, false)},
		{Name: "a", Entry: object.FileEntry(a, false)},
	}}

	fwdID := mustWriteTree(t, s, forward)
	revID := mustWriteTree(t, s, reversed)
	assert.NotEqual(t, fwdID, revID)

	got, err := s.ReadTree(testContext(), revID)
	require.NoError(t, err)
	assert.Equal(t, reversed.Entries, got.Entries)
}

func (suite *StoreTestSuite) testTreeNotFound(t *testing.T) {
	s := suite.newStore(t)

	missing := object.Hash(&object.Tree{Entries: []object.TreeEntryMapping{
		{Name: "ghost", Entry: object.TreeEntryOf(s.EmptyTreeID())},
	}})
	_, err := s.ReadTree(testContext(), missing)
	AssertNotFound(t, err)
}

func (suite *StoreTestSuite) testTreeInvalidNames(t *testing.T) {
	s := suite.newStore(t)
	entry := object.TreeEntryOf(s.EmptyTreeID())

	tests := []struct {
		name  string
		names []string
	}{
		{"Empty", []string{""}},
		{"Dot", []string{"."}},
		{"DotDot", []string{".."}},
		{"Slash", []string{"a/b"}},
		{"NUL", []string{"a\x00b"}},
		{"Duplicate", []string{"same", "same"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := &object.Tree{}
			for _, n := range tt.names {
				tree.Entries = append(tree.Entries, object.TreeEntryMapping{Name: n, Entry: entry})
			}
			_, err := s.WriteTree(testContext(), tree)
			AssertInvalidArgument(t, err)
		})
	}

	stats, err := s.Stats(testContext())
	require.NoError(t, err)
	assert.Zero(t, stats.Trees)
}

func (suite *StoreTestSuite) testTreeExecutableOnNonFile(t *testing.T) {
	s := suite.newStore(t)

	bad := object.TreeEntryOf(s.EmptyTreeID())
	bad.Executable = true
	_, err := s.WriteTree(testContext(), &object.Tree{Entries: []object.TreeEntryMapping{
		{Name: "dir", Entry: bad},
	}})
	AssertInvalidArgument(t, err)
}
