package connector_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/marmos91/svnconnector/pkg/backend/embedded"
	"github.com/marmos91/svnconnector/pkg/connector"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbeddedConnector returns a connector over an in-memory embedded
// repository sharing one in-memory filesystem.
func newEmbeddedConnector(t *testing.T) (*connector.Connector, *embedded.Client, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()

	repo, err := embedded.New(context.Background(), embedded.Config{InMemory: true, Fs: fs})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	c := connector.New(repo, connector.Options{Fs: fs})
	c.Init(connector.Configuration{
		ID:    1,
		Label: "embedded",
		Properties: map[string]string{
			connector.ConfigKeyRepositoryPath:     "embedded://repo/",
			connector.ConfigKeyTemporaryFileStore: "/staging",
		},
	})
	c.Login("alice", "secret")
	return c, repo, fs
}

func TestEndToEndCreateNode(t *testing.T) {
	ctx := context.Background()
	c, repo, fs := newEmbeddedConnector(t)

	node, err := c.CreateNode(ctx, "/", "/order.bpmn", "order.bpmn", connector.NodeTypeBPMNFile)
	require.NoError(t, err)
	assert.Equal(t, "/order.bpmn", node.ID)

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, backend.Revision(1), head, "exactly one commit")

	entry, err := repo.Log(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, []string{"/order.bpmn"}, entry.Paths, "exactly one added file")
	assert.Equal(t, "Created node 'order.bpmn' in '' using svnconnector.", entry.Message)
	assert.Equal(t, "alice", entry.Author)

	staged, _ := afero.ReadDir(fs, "/staging")
	assert.Empty(t, staged, "working copy removed after success")
}

func TestEndToEndChildrenTypes(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newEmbeddedConnector(t)

	for _, create := range []struct {
		label    string
		nodeType connector.NodeType
	}{
		{"a.bpmn", connector.NodeTypeBPMNFile},
		{"b.png", connector.NodeTypePNGFile},
		{"c.txt", connector.NodeTypeAnyFile},
		{"d", connector.NodeTypeFolder},
	} {
		_, err := c.CreateNode(ctx, "/", "/"+create.label, create.label, create.nodeType)
		require.NoError(t, err, create.label)
	}

	nodes, err := c.GetChildren(ctx, c.GetRoot())
	require.NoError(t, err)

	types := make(map[string]connector.NodeType, len(nodes))
	for _, n := range nodes {
		types[n.ID] = n.Type
		assert.Equal(t, int64(1), n.ConnectorID)
		assert.False(t, n.LastModified.IsZero())
	}
	assert.Equal(t, map[string]connector.NodeType{
		"/a.bpmn": connector.NodeTypeBPMNFile,
		"/b.png":  connector.NodeTypePNGFile,
		"/c.txt":  connector.NodeTypeAnyFile,
		"/d":      connector.NodeTypeFolder,
	}, types)
}

func TestEndToEndContentLifecycle(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newEmbeddedConnector(t)

	_, err := c.CreateNode(ctx, "/", "/procs", "procs", connector.NodeTypeFolder)
	require.NoError(t, err)
	node, err := c.CreateNode(ctx, "/procs", "/procs/order.bpmn", "order.bpmn", connector.NodeTypeBPMNFile)
	require.NoError(t, err)

	info, err := c.UpdateContent(ctx, node, strings.NewReader("<definitions id=\"order\"/>"))
	require.NoError(t, err)
	assert.True(t, info.Exists)

	rc, err := c.GetContent(ctx, node)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "<definitions id=\"order\"/>", string(data))

	info, err = c.GetContentInformation(ctx, node)
	require.NoError(t, err)
	assert.True(t, info.Exists)

	rendered, err := c.GetContent(ctx, &connector.Node{ID: node.ID, Type: connector.NodeTypePNGFile})
	assert.NoError(t, err)
	assert.Nil(t, rendered, "no rendering was ever committed")

	require.NoError(t, c.DeleteNode(ctx, node))

	info, err = c.GetContentInformation(ctx, node)
	require.NoError(t, err)
	assert.Equal(t, connector.NotFound(), info)

	gone, err := c.GetNode(ctx, node.ID)
	assert.NoError(t, err)
	assert.Nil(t, gone)
}

func TestEndToEndCreateExistingFails(t *testing.T) {
	ctx := context.Background()
	c, _, fs := newEmbeddedConnector(t)

	_, err := c.CreateNode(ctx, "/", "/order.bpmn", "order.bpmn", connector.NodeTypeBPMNFile)
	require.NoError(t, err)

	_, err = c.CreateNode(ctx, "/", "/order.bpmn", "order.bpmn", connector.NodeTypeBPMNFile)
	var opErr *connector.OperationError
	assert.ErrorAs(t, err, &opErr)

	staged, _ := afero.ReadDir(fs, "/staging")
	assert.Len(t, staged, 1, "failed working copy is left for inspection")
}
