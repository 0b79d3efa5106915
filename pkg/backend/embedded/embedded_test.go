package embedded

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/svnconnector/pkg/backend"
	backendtesting "github.com/marmos91/svnconnector/pkg/backend/testing"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "embedded:///"

func newTestClient(t *testing.T, fs afero.Fs) *Client {
	t.Helper()
	client, err := New(context.Background(), Config{InMemory: true, Fs: fs})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// TestEmbeddedClient runs the complete backend test suite against the
// embedded repository.
func TestEmbeddedClient(t *testing.T) {
	suite := &backendtesting.ClientTestSuite{
		NewFixture: func(t *testing.T) backendtesting.Fixture {
			fs := afero.NewMemMapFs()
			return backendtesting.Fixture{
				Client:  newTestClient(t, fs),
				Fs:      fs,
				BaseURL: baseURL,
			}
		},
	}

	suite.Run(t)
}

// commitFile adds name to the root folder through a fresh working copy.
func commitFile(t *testing.T, c *Client, fs afero.Fs, dir, name, data string) backend.Revision {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Checkout(ctx, baseURL, dir, backend.Head))
	p := filepath.Join(dir, name)
	require.NoError(t, afero.WriteFile(fs, p, []byte(data), 0644))
	require.NoError(t, c.AddFile(ctx, p))
	rev, err := c.Commit(ctx, []string{dir}, "add "+name, false)
	require.NoError(t, err)
	return rev
}

func TestCommitAllocatesRevisions(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestClient(t, fs)
	ctx := context.Background()

	head, err := c.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, backend.Revision(0), head)

	assert.Equal(t, backend.Revision(1), commitFile(t, c, fs, "/wc1", "a.bpmn", "a"))
	assert.Equal(t, backend.Revision(2), commitFile(t, c, fs, "/wc2", "b.bpmn", "b"))

	entry, err := c.Stat(ctx, baseURL+"a.bpmn", backend.Head)
	require.NoError(t, err)
	assert.Equal(t, backend.Revision(1), entry.Revision)

	root, err := c.Stat(ctx, baseURL, backend.Head)
	require.NoError(t, err)
	assert.Equal(t, backend.Revision(2), root.Revision, "folders carry the revision of their latest change")
}

func TestCommitWithoutChangesKeepsHead(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestClient(t, fs)
	ctx := context.Background()
	commitFile(t, c, fs, "/wc1", "a.bpmn", "a")

	require.NoError(t, c.Checkout(ctx, baseURL, "/wc2", backend.Head))
	rev, err := c.Commit(ctx, []string{"/wc2"}, "nothing", false)
	require.NoError(t, err)
	assert.Equal(t, backend.Revision(1), rev)
}

func TestCommitRecordsLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestClient(t, fs)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.SetCredentials("alice", "secret")

	commitFile(t, c, fs, "/wc", "order.bpmn", "<definitions/>")

	entry, err := c.Log(context.Background(), backend.Head)
	require.NoError(t, err)
	assert.Equal(t, "add order.bpmn", entry.Message)
	assert.Equal(t, "alice", entry.Author)
	assert.True(t, now.Equal(entry.Date))
	assert.Equal(t, []string{"/order.bpmn"}, entry.Paths)

	_, err = c.Log(context.Background(), 42)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestCommitOutOfDate(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestClient(t, fs)
	ctx := context.Background()
	commitFile(t, c, fs, "/wc0", "order.bpmn", "v1")

	require.NoError(t, c.Checkout(ctx, baseURL, "/stale", backend.Head))
	require.NoError(t, c.Checkout(ctx, baseURL, "/fresh", backend.Head))

	require.NoError(t, afero.WriteFile(fs, "/fresh/order.bpmn", []byte("v2"), 0644))
	_, err := c.Commit(ctx, []string{"/fresh"}, "update", false)
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "/stale/order.bpmn", []byte("v2-stale"), 0644))
	_, err = c.Commit(ctx, []string{"/stale"}, "update", false)
	assert.ErrorIs(t, err, ErrOutOfDate)

	reader, err := c.Content(ctx, baseURL+"order.bpmn", backend.Head)
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestCommitConflictingAddition(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestClient(t, fs)
	ctx := context.Background()

	require.NoError(t, c.Checkout(ctx, baseURL, "/first", backend.Head))
	require.NoError(t, c.Checkout(ctx, baseURL, "/second", backend.Head))

	for _, dir := range []string{"/first", "/second"} {
		p := filepath.Join(dir, "order.bpmn")
		require.NoError(t, afero.WriteFile(fs, p, []byte(dir), 0644))
		require.NoError(t, c.AddFile(ctx, p))
	}

	_, err := c.Commit(ctx, []string{"/first"}, "add", false)
	require.NoError(t, err)

	_, err = c.Commit(ctx, []string{"/second"}, "add", false)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestShallowCommitSkipsNestedAdditions(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestClient(t, fs)
	ctx := context.Background()

	require.NoError(t, c.Checkout(ctx, baseURL, "/wc", backend.Head))
	require.NoError(t, fs.MkdirAll("/wc/procs", 0755))
	require.NoError(t, afero.WriteFile(fs, "/wc/procs/order.bpmn", []byte("o"), 0644))
	require.NoError(t, c.AddDirectory(ctx, "/wc/procs", true))

	_, err := c.Commit(ctx, []string{"/wc"}, "mkdir", false)
	require.NoError(t, err)

	_, err = c.Stat(ctx, baseURL+"procs", backend.Head)
	require.NoError(t, err)
	_, err = c.Stat(ctx, baseURL+"procs/order.bpmn", backend.Head)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestOnlyHeadRevisionIsServed(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestClient(t, fs)
	commitFile(t, c, fs, "/wc", "a.bpmn", "a")

	_, err := c.Stat(context.Background(), baseURL+"a.bpmn", 1)
	assert.NoError(t, err)

	_, err = c.Stat(context.Background(), baseURL+"a.bpmn", 0)
	assert.Error(t, err)
}

func TestRepositoryPersistsOnDisk(t *testing.T) {
	dbPath := t.TempDir()
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	c, err := New(ctx, Config{DBPath: dbPath, Fs: fs})
	require.NoError(t, err)
	commitFile(t, c, fs, "/wc", "order.bpmn", "o")
	require.NoError(t, c.Close())

	reopened, err := New(ctx, Config{DBPath: dbPath, Fs: fs})
	require.NoError(t, err)
	defer reopened.Close()

	head, err := reopened.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, backend.Revision(1), head)

	entry, err := reopened.Stat(ctx, baseURL+"order.bpmn", backend.Head)
	require.NoError(t, err)
	assert.Equal(t, backend.KindFile, entry.Kind)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
