package testing

import (
	"testing"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunReadTests executes List, Stat and Content tests.
func (suite *ClientTestSuite) RunReadTests(t *testing.T) {
	t.Run("Stat_Root", suite.testStatRoot)
	t.Run("Stat_NotFound", suite.testStatNotFound)
	t.Run("List_EmptyRoot", suite.testListEmptyRoot)
	t.Run("List_ImmediateChildren", suite.testListImmediateChildren)
	t.Run("Content_NotFound", suite.testContentNotFound)
}

func (suite *ClientTestSuite) testStatRoot(t *testing.T) {
	f := suite.NewFixture(t)
	assertKind(t, f, "/", backend.KindDir)
}

func (suite *ClientTestSuite) testStatNotFound(t *testing.T) {
	f := suite.NewFixture(t)
	assertMissing(t, f, "/missing.bpmn")
}

func (suite *ClientTestSuite) testListEmptyRoot(t *testing.T) {
	f := suite.NewFixture(t)

	entries, err := f.Client.List(testContext(), f.url("/"), backend.Head)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (suite *ClientTestSuite) testListImmediateChildren(t *testing.T) {
	f := suite.NewFixture(t)
	mustAddFolder(t, f, "/", "procs")
	mustAddFile(t, f, "/procs", "order.bpmn", []byte("<definitions/>"))
	mustAddFolder(t, f, "/procs", "archive")
	mustAddFile(t, f, "/procs/archive", "old.bpmn", []byte("<definitions/>"))

	entries, err := f.Client.List(testContext(), f.url("/procs"), backend.Head)
	require.NoError(t, err)

	assert.Equal(t, map[string]backend.Kind{
		"order.bpmn": backend.KindFile,
		"archive":    backend.KindDir,
	}, names(entries))
}

func (suite *ClientTestSuite) testContentNotFound(t *testing.T) {
	f := suite.NewFixture(t)

	_, err := f.Client.Content(testContext(), f.url("/missing.png"), backend.Head)
	AssertErrorIs(t, backend.ErrNotFound, err)
}
