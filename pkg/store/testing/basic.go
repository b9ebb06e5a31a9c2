package testing

import (
	"context"
	"testing"

	"github.com/marmos91/yak/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests covers file and symlink objects.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("File_RoundTrip", suite.testFileRoundTrip)
	t.Run("File_Idempotent", suite.testFileIdempotent)
	t.Run("File_IDIsContentHash", suite.testFileIDIsContentHash)
	t.Run("File_NotFound", suite.testFileNotFound)
	t.Run("File_ReturnsPrivateCopy", suite.testFilePrivateCopy)
	t.Run("File_Nil", suite.testFileNil)
	t.Run("Symlink_RoundTrip", suite.testSymlinkRoundTrip)
	t.Run("Symlink_NotFound", suite.testSymlinkNotFound)
	t.Run("KindsAreSeparate", suite.testKindsAreSeparate)
	t.Run("CanceledContext", suite.testCanceledContext)
}

func (suite *StoreTestSuite) testFileRoundTrip(t *testing.T) {
	s := suite.newStore(t)

	id := mustWriteFile(t, s, "hello\n")

	f, err := s.ReadFile(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello\n"), f.Content)
}

func (suite *StoreTestSuite) testFileIdempotent(t *testing.T) {
	s := suite.newStore(t)

	first := mustWriteFile(t, s, "same bytes")
	second := mustWriteFile(t, s, "same bytes")
	assert.Equal(t, first, second)

	stats, err := s.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
}

func (suite *StoreTestSuite) testFileIDIsContentHash(t *testing.T) {
	s := suite.newStore(t)

	f := &object.File{Content: []byte("addressed")}
	id, err := s.WriteFile(testContext(), f)
	require.NoError(t, err)
	assert.Equal(t, object.Hash(f), id)

	other := mustWriteFile(t, s, "different")
	assert.NotEqual(t, id, other)
}

func (suite *StoreTestSuite) testFileNotFound(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.ReadFile(testContext(), object.Hash(&object.File{Content: []byte("never written")}))
	AssertNotFound(t, err)
}

func (suite *StoreTestSuite) testFilePrivateCopy(t *testing.T) {
	s := suite.newStore(t)

	content := []byte("original")
	id, err := s.WriteFile(testContext(), &object.File{Content: content})
	require.NoError(t, err)
	content[0] = 'X'

	f, err := s.ReadFile(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), f.Content)

	f.Content[0] = 'Y'
	again, err := s.ReadFile(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again.Content)
}

func (suite *StoreTestSuite) testFileNil(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.WriteFile(testContext(), nil)
	AssertInvalidArgument(t, err)
}

func (suite *StoreTestSuite) testSymlinkRoundTrip(t *testing.T) {
	s := suite.newStore(t)

	id, err := s.WriteSymlink(testContext(), &object.Symlink{Target: "../target/file"})
	require.NoError(t, err)

	l, err := s.ReadSymlink(testContext(), id)
	require.NoError(t, err)
	assert.Equal(t, "../target/file", l.Target)
}

func (suite *StoreTestSuite) testSymlinkNotFound(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.ReadSymlink(testContext(), object.Hash(&object.Symlink{Target: "nowhere"}))
	AssertNotFound(t, err)
}

// A file and a symlink may encode to the same bytes; the kinds must not
// leak into each other.
func (suite *StoreTestSuite) testKindsAreSeparate(t *testing.T) {
	s := suite.newStore(t)

	id := mustWriteFile(t, s, "shared")
	_, err := s.ReadSymlink(testContext(), id)
	AssertNotFound(t, err)
	_, err = s.ReadTree(testContext(), id)
	AssertNotFound(t, err)
	_, err = s.ReadCommit(testContext(), id)
	AssertNotFound(t, err)
}

func (suite *StoreTestSuite) testCanceledContext(t *testing.T) {
	s := suite.newStore(t)

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	_, err := s.WriteFile(ctx, &object.File{Content: []byte("x")})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.ReadTree(ctx, s.EmptyTreeID())
	assert.ErrorIs(t, err, context.Canceled)
}
