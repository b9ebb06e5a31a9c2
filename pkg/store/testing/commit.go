package testing

import (
	"testing"

	"github.com/marmos91/yak/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCommitTests covers commit objects.
func (suite *StoreTestSuite) RunCommitTests(t *testing.T) {
	t.Run("Commit_RoundTrip", suite.testCommitRoundTrip)
	t.Run("Commit_NoParents", suite.testCommitNoParents)
	t.Run("Commit_RootParent", suite.testCommitRootParent)
	t.Run("Commit_Merge", suite.testCommitMerge)
	t.Run("Commit_ParentOrderMatters", suite.testCommitParentOrder)
	t.Run("Commit_NotFound", suite.testCommitNotFound)
	t.Run("Commit_HelloWorkflow", suite.testCommitHelloWorkflow)
}

func (suite *StoreTestSuite) testCommitRoundTrip(t *testing.T) {
	s := suite.newStore(t)

	c := &object.Commit{
		Parents:      []object.ID{object.RootCommitID},
		Predecessors: []object.ID{object.Hash(&object.File{Content: []byte("older")})},
		RootTree:     s.EmptyTreeID(),
		ChangeID:     []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Description:  "initial\n",
		Author:       testSignature(1000),
		Committer:    testSignature(2000),
	}
	id := mustWriteCommit(t, s, c)

	got, err := s.ReadCommit(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func (suite *StoreTestSuite) testCommitNoParents(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.WriteCommit(testContext(), &object.Commit{RootTree: s.EmptyTreeID()})
	AssertInvalidArgument(t, err)

	_, err = s.WriteCommit(testContext(), nil)
	AssertInvalidArgument(t, err)
}

// The all-zero root commit is never stored, yet it is a valid parent.
func (suite *StoreTestSuite) testCommitRootParent(t *testing.T) {
	s := suite.newStore(t)

	id := mustWriteCommit(t, s, &object.Commit{
		Parents:  []object.ID{object.RootCommitID},
		RootTree: s.EmptyTreeID(),
	})
	assert.False(t, id.IsZero())

	_, err := s.ReadCommit(testContext(), object.RootCommitID)
	AssertNotFound(t, err)
}

func (suite *StoreTestSuite) testCommitMerge(t *testing.T) {
	s := suite.newStore(t)

	left := mustWriteCommit(t, s, &object.Commit{
		Parents: []object.ID{object.RootCommitID}, RootTree: s.EmptyTreeID(), Description: "left",
	})
	right := mustWriteCommit(t, s, &object.Commit{
		Parents: []object.ID{object.RootCommitID}, RootTree: s.EmptyTreeID(), Description: "right",
	})
	merge := mustWriteCommit(t, s, &object.Commit{
		Parents: []object.ID{left, right}, RootTree: s.EmptyTreeID(), Description: "merge",
	})

	got, err := s.ReadCommit(testContext(), merge)
	require.NoError(t, err)
	assert.Equal(t, []object.ID{left, right}, got.Parents)
}

func (suite *StoreTestSuite) testCommitParentOrder(t *testing.T) {
	s := suite.newStore(t)

	a := object.Hash(&object.File{Content: []byte("a")})
	b := object.Hash(&object.File{Content: []byte("b")})
	ab := mustWriteCommit(t, s, &object.Commit{Parents: []object.ID{a, b}, RootTree: s.EmptyTreeID()})
	ba := mustWriteCommit(t, s, &object.Commit{Parents: []object.ID{b, a}, RootTree: s.EmptyTreeID()})
	assert.NotEqual(t, ab, ba)
}

func (suite *StoreTestSuite) testCommitNotFound(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.ReadCommit(testContext(), object.Hash(&object.Commit{
		Parents: []object.ID{object.RootCommitID}, RootTree: s.EmptyTreeID(), Description: "unwritten",
	}))
	AssertNotFound(t, err)
}

// testCommitHelloWorkflow writes a file, a tree holding it and a commit
// pointing at the tree, then walks back from the commit to the content.
func (suite *StoreTestSuite) testCommitHelloWorkflow(t *testing.T) {
	s := suite.newStore(t)

	fileID := mustWriteFile(t, s, "hello world\n")
	treeID := mustWriteTree(t, s, &object.Tree{Entries: []object.TreeEntryMapping{
		{Name: "hello.txt", Entry: object.FileEntry(fileID, false)},
	}})
	commitID := mustWriteCommit(t, s, &object.Commit{
		Parents:     []object.ID{object.RootCommitID},
		RootTree:    treeID,
		Description: "add hello\n",
		Author:      testSignature(1),
		Committer:   testSignature(1),
	})

	c, err := s.ReadCommit(testContext(), commitID)
	require.NoError(t, err)
	tree, err := s.ReadTree(testContext(), c.RootTree)
	require.NoError(t, err)
	entry, ok := tree.Lookup("hello.txt")
	require.True(t, ok)
	f, err := s.ReadFile(testContext(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world\n"), f.Content)
}
