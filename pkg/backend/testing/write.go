package testing

import (
	"path/filepath"
	"testing"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWriteTests executes Checkout, Add and Commit tests.
func (suite *ClientTestSuite) RunWriteTests(t *testing.T) {
	t.Run("Checkout_ImmediateFilesOnly", suite.testCheckoutImmediateFiles)
	t.Run("Commit_AddFile", suite.testCommitAddFile)
	t.Run("Commit_AddDirectoryRecursive", suite.testCommitAddDirectoryRecursive)
	t.Run("Commit_ModifiedFile", suite.testCommitModifiedFile)
	t.Run("Commit_NoChanges", suite.testCommitNoChanges)
	t.Run("AddFile_Twice", suite.testAddFileTwice)
}

func (suite *ClientTestSuite) testCheckoutImmediateFiles(t *testing.T) {
	f := suite.NewFixture(t)
	mustAddFile(t, f, "/", "a.bpmn", []byte("a"))
	mustAddFolder(t, f, "/", "d")
	mustAddFile(t, f, "/d", "nested.bpmn", []byte("n"))

	dir := mustCheckout(t, f, "/", "checkout")

	data, err := afero.ReadFile(f.Fs, filepath.Join(dir, "a.bpmn"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)

	exists, err := afero.Exists(f.Fs, filepath.Join(dir, "d", "nested.bpmn"))
	require.NoError(t, err)
	assert.False(t, exists, "nested files must not be checked out")
}

func (suite *ClientTestSuite) testCommitAddFile(t *testing.T) {
	f := suite.NewFixture(t)
	data := []byte("<definitions id=\"order\"/>")

	mustAddFile(t, f, "/", "order.bpmn", data)

	assertKind(t, f, "/order.bpmn", backend.KindFile)
	assertContentEquals(t, f, "/order.bpmn", data)

	entry, err := f.Client.Stat(testContext(), f.url("/order.bpmn"), backend.Head)
	require.NoError(t, err)
	assert.Equal(t, "order.bpmn", entry.Path)
	assert.Equal(t, int64(len(data)), entry.Size)
}

func (suite *ClientTestSuite) testCommitAddDirectoryRecursive(t *testing.T) {
	f := suite.NewFixture(t)

	dir := mustCheckout(t, f, "/", "recursive")
	folder := filepath.Join(dir, "procs")
	require.NoError(t, f.Fs.Mkdir(folder, 0755))
	mustWriteFile(t, f, filepath.Join(folder, "order.bpmn"), []byte("o"))

	require.NoError(t, f.Client.AddDirectory(testContext(), folder, true))
	mustCommit(t, f, dir, true)

	assertKind(t, f, "/procs", backend.KindDir)
	assertContentEquals(t, f, "/procs/order.bpmn", []byte("o"))
}

func (suite *ClientTestSuite) testCommitModifiedFile(t *testing.T) {
	f := suite.NewFixture(t)
	mustAddFile(t, f, "/", "order.bpmn", []byte("v1"))

	dir := mustCheckout(t, f, "/", "modify")
	mustWriteFile(t, f, filepath.Join(dir, "order.bpmn"), []byte("version two"))
	mustCommit(t, f, dir, false)

	assertContentEquals(t, f, "/order.bpmn", []byte("version two"))
}

func (suite *ClientTestSuite) testCommitNoChanges(t *testing.T) {
	f := suite.NewFixture(t)
	mustAddFile(t, f, "/", "order.bpmn", []byte("v1"))

	dir := mustCheckout(t, f, "/", "unchanged")
	mustCommit(t, f, dir, false)

	assertContentEquals(t, f, "/order.bpmn", []byte("v1"))
}

func (suite *ClientTestSuite) testAddFileTwice(t *testing.T) {
	f := suite.NewFixture(t)

	dir := mustCheckout(t, f, "/", "twice")
	p := filepath.Join(dir, "order.bpmn")
	mustWriteFile(t, f, p, []byte("o"))

	require.NoError(t, f.Client.AddFile(testContext(), p))
	assert.Error(t, f.Client.AddFile(testContext(), p))
}
