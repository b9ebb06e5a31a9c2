package testing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/yak/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConcurrencyTests drives the store from many goroutines at once.
func (suite *StoreTestSuite) RunConcurrencyTests(t *testing.T) {
	t.Run("ConcurrentIdenticalWrites", suite.testConcurrentIdenticalWrites)
	t.Run("ConcurrentMixedKinds", suite.testConcurrentMixedKinds)
}

func (suite *StoreTestSuite) testConcurrentIdenticalWrites(t *testing.T) {
	s := suite.newStore(t)

	const writers = 32
	ids := make([]object.ID, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], errs[i] = s.WriteFile(testContext(), &object.File{Content: []byte("contended")})
		}()
	}
	wg.Wait()

	for i := range writers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	stats, err := s.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
}

func (suite *StoreTestSuite) testConcurrentMixedKinds(t *testing.T) {
	s := suite.newStore(t)

	const n = 50
	var wg sync.WaitGroup
	errCh := make(chan error, 4*n)

	for i := range n {
		wg.Add(4)
		go func() {
			defer wg.Done()
			_, err := s.WriteFile(testContext(), &object.File{Content: fmt.Appendf(nil, "file-%d", i)})
			errCh <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.WriteSymlink(testContext(), &object.Symlink{Target: fmt.Sprintf("target-%d", i)})
			errCh <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.WriteTree(testContext(), &object.Tree{Entries: []object.TreeEntryMapping{
				{Name: fmt.Sprintf("dir-%d", i), Entry: object.TreeEntryOf(s.EmptyTreeID())},
			}})
			errCh <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.WriteCommit(testContext(), &object.Commit{
				Parents:     []object.ID{object.RootCommitID},
				RootTree:    s.EmptyTreeID(),
				Description: fmt.Sprintf("commit %d", i),
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	stats, err := s.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, n, stats.Files)
	assert.Equal(t, n, stats.Symlinks)
	assert.Equal(t, n, stats.Trees)
	assert.Equal(t, n, stats.Commits)
}
