package testing

import (
	"testing"

	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStatsTests checks object counting.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	t.Run("Stats_Empty", suite.testStatsEmpty)
	t.Run("Stats_CountsPerKind", suite.testStatsCountsPerKind)
}

func (suite *StoreTestSuite) testStatsEmpty(t *testing.T) {
	s := suite.newStore(t)

	stats, err := s.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, store.Stats{}, stats)
}

func (suite *StoreTestSuite) testStatsCountsPerKind(t *testing.T) {
	s := suite.newStore(t)

	mustWriteFile(t, s, "one")
	mustWriteFile(t, s, "two")
	_, err := s.WriteSymlink(testContext(), &object.Symlink{Target: "one"})
	require.NoError(t, err)
	mustWriteTree(t, s, &object.Tree{})
	mustWriteCommit(t, s, &object.Commit{Parents: []object.ID{object.RootCommitID}, RootTree: s.EmptyTreeID()})

	stats, err := s.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Files: 2, Symlinks: 1, Trees: 1, Commits: 1}, stats)
}
