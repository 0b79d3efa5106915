package s3

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/svnconnector/pkg/backend"
	backendtesting "github.com/marmos91/svnconnector/pkg/backend/testing"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, api API, prefix string) (*Client, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	client, err := New(Config{Client: api, Bucket: "repo", KeyPrefix: prefix, Fs: fs})
	require.NoError(t, err)
	return client, fs
}

// TestS3Client runs the complete backend test suite against an in-memory
// bucket.
func TestS3Client(t *testing.T) {
	suite := &backendtesting.ClientTestSuite{
		NewFixture: func(t *testing.T) backendtesting.Fixture {
			client, fs := newTestClient(t, newFakeAPI(), "cycle/")
			return backendtesting.Fixture{Client: client, Fs: fs, BaseURL: "s3://repo/"}
		},
	}

	suite.Run(t)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Bucket: "repo"})
	assert.Error(t, err)

	_, err = New(Config{Client: newFakeAPI()})
	assert.Error(t, err)
}

func TestKeyLayout(t *testing.T) {
	c, _ := newTestClient(t, newFakeAPI(), "/cycle")

	assert.Equal(t, "cycle/procs/order.bpmn", c.objectKey("/procs/order.bpmn"))
	assert.Equal(t, "cycle/procs/", c.folderKey("/procs"))
	assert.Equal(t, "cycle/", c.folderKey("/"))

	bare, _ := newTestClient(t, newFakeAPI(), "")
	assert.Equal(t, "", bare.folderKey("/"))
	assert.Equal(t, "a/", bare.folderKey("/a"))
}

func TestCommitStoresAuthorAndMessage(t *testing.T) {
	api := newFakeAPI()
	c, fs := newTestClient(t, api, "")
	c.SetCredentials("alice", "ignored")
	ctx := context.Background()

	require.NoError(t, c.Checkout(ctx, "s3://repo/", "/wc", backend.Head))
	require.NoError(t, afero.WriteFile(fs, "/wc/order.bpmn", []byte("o"), 0644))
	require.NoError(t, c.AddFile(ctx, "/wc/order.bpmn"))

	rev, err := c.Commit(ctx, []string{"/wc"}, "created", false)
	require.NoError(t, err)
	assert.Equal(t, backend.Head, rev)

	obj := api.objects["order.bpmn"]
	assert.Equal(t, "alice", obj.metadata["author"])
	assert.Equal(t, "created", obj.metadata["message"])

	entry, err := c.Stat(ctx, "s3://repo/order.bpmn", backend.Head)
	require.NoError(t, err)
	assert.Equal(t, "alice", entry.Author)
}

func TestFolderMarker(t *testing.T) {
	api := newFakeAPI()
	c, fs := newTestClient(t, api, "")
	ctx := context.Background()

	require.NoError(t, c.Checkout(ctx, "s3://repo/", "/wc", backend.Head))
	require.NoError(t, fs.Mkdir(filepath.Join("/wc", "empty"), 0755))
	require.NoError(t, c.AddDirectory(ctx, "/wc/empty", true))
	_, err := c.Commit(ctx, []string{"/wc"}, "mkdir", true)
	require.NoError(t, err)

	_, ok := api.objects["empty/"]
	assert.True(t, ok, "empty folders are kept as marker objects")

	entries, err := c.List(ctx, "s3://repo/empty", backend.Head)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListFileIsNotDirectory(t *testing.T) {
	api := newFakeAPI()
	api.objects["order.bpmn"] = fakeObject{data: []byte("o")}
	c, _ := newTestClient(t, api, "")

	_, err := c.List(context.Background(), "s3://repo/order.bpmn", backend.Head)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, backend.ErrNotFound)
}

func TestImplicitFolder(t *testing.T) {
	api := newFakeAPI()
	api.objects["procs/order.bpmn"] = fakeObject{data: []byte("o")}
	c, _ := newTestClient(t, api, "")

	entry, err := c.Stat(context.Background(), "s3://repo/procs", backend.Head)
	require.NoError(t, err)
	assert.Equal(t, backend.KindDir, entry.Kind)
	assert.Equal(t, "procs", entry.Path)
}

func TestRemoveBatches(t *testing.T) {
	api := newFakeAPI()
	for i := 0; i < maxDeleteBatch+5; i++ {
		api.objects["big/file-"+strconv.Itoa(i)] = fakeObject{}
	}
	api.objects["keep"] = fakeObject{}
	c, _ := newTestClient(t, api, "")

	require.NoError(t, c.Remove(context.Background(), []string{"s3://repo/big"}, "rm"))
	assert.Len(t, api.objects, 1)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(assert.AnError))
}
