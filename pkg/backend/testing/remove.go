package testing

import (
	"testing"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRemoveTests executes Remove tests.
func (suite *ClientTestSuite) RunRemoveTests(t *testing.T) {
	t.Run("Remove_File", suite.testRemoveFile)
	t.Run("Remove_FolderRecursive", suite.testRemoveFolderRecursive)
	t.Run("Remove_NotFound", suite.testRemoveNotFound)
	t.Run("Remove_Root", suite.testRemoveRoot)
}

func (suite *ClientTestSuite) testRemoveFile(t *testing.T) {
	f := suite.NewFixture(t)
	mustAddFile(t, f, "/", "order.bpmn", []byte("o"))

	err := f.Client.Remove(testContext(), []string{f.url("/order.bpmn")}, "remove")
	require.NoError(t, err)

	assertMissing(t, f, "/order.bpmn")
	_, err = f.Client.Content(testContext(), f.url("/order.bpmn"), backend.Head)
	AssertErrorIs(t, backend.ErrNotFound, err)
}

func (suite *ClientTestSuite) testRemoveFolderRecursive(t *testing.T) {
	f := suite.NewFixture(t)
	mustAddFolder(t, f, "/", "procs")
	mustAddFile(t, f, "/procs", "order.bpmn", []byte("o"))
	mustAddFile(t, f, "/", "keep.bpmn", []byte("k"))

	err := f.Client.Remove(testContext(), []string{f.url("/procs")}, "remove")
	require.NoError(t, err)

	assertMissing(t, f, "/procs")
	assertMissing(t, f, "/procs/order.bpmn")

	entries, err := f.Client.List(testContext(), f.url("/"), backend.Head)
	require.NoError(t, err)
	assert.Equal(t, map[string]backend.Kind{"keep.bpmn": backend.KindFile}, names(entries))
}

func (suite *ClientTestSuite) testRemoveNotFound(t *testing.T) {
	f := suite.NewFixture(t)

	err := f.Client.Remove(testContext(), []string{f.url("/missing.bpmn")}, "remove")
	AssertErrorIs(t, backend.ErrNotFound, err)
}

func (suite *ClientTestSuite) testRemoveRoot(t *testing.T) {
	f := suite.NewFixture(t)

	err := f.Client.Remove(testContext(), []string{f.url("/")}, "remove")
	assert.Error(t, err)
}
