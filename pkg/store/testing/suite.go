package testing

import (
	"context"
	"testing"

	"github.com/marmos91/yak/pkg/object"
	"github.com/marmos91/yak/pkg/store"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite checks the ObjectStore contract, so every backend runs the
// same checks.
//
// Usage:
//
//	func TestMyObjectStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) store.ObjectStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test. The suite closes
	// it when the test ends.
	NewStore func(t *testing.T) store.ObjectStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("TreeOperations", suite.RunTreeTests)
	t.Run("CommitOperations", suite.RunCommitTests)
	t.Run("Concurrency", suite.RunConcurrencyTests)
	t.Run("Statistics", suite.RunStatsTests)
}

func (suite *StoreTestSuite) newStore(t *testing.T) store.ObjectStore {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testContext() context.Context {
	return context.Background()
}

// ============================================================================
// Helpers
// ============================================================================

func mustWriteFile(t *testing.T, s store.ObjectStore, content string) object.ID {
	t.Helper()
	id, err := s.WriteFile(testContext(), &object.File{Content: []byte(content)})
	require.NoError(t, err)
	return id
}

func mustWriteTree(t *testing.T, s store.ObjectStore, tree *object.Tree) object.ID {
	t.Helper()
	id, err := s.WriteTree(testContext(), tree)
	require.NoError(t, err)
	return id
}

func mustWriteCommit(t *testing.T, s store.ObjectStore, c *object.Commit) object.ID {
	t.Helper()
	id, err := s.WriteCommit(testContext(), c)
	require.NoError(t, err)
	return id
}

func testSignature(millis int64) *object.CommitSignature {
	return &object.CommitSignature{
		Name:      "Test User",
		Email:     "test.user@example.com",
		Timestamp: object.CommitTimestamp{MillisSinceEpoch: millis, TZOffset: 60},
	}
}

// AssertNotFound fails unless err is a store NotFound error.
func AssertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, store.IsNotFound(err), "expected not found, got %v", err)
}

// AssertInvalidArgument fails unless err is a store InvalidArgument error.
func AssertInvalidArgument(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, store.IsInvalidArgument(err), "expected invalid argument, got %v", err)
}
