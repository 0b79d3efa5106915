package svn

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listXML = `<?xml version="1.0" encoding="UTF-8"?>
<lists>
<list path="https://svn.example.com/repo/procs">
<entry kind="file">
<name>order.bpmn</name>
<size>1204</size>
<commit revision="12">
<author>alice</author>
<date>2024-03-01T10:15:30.123456Z</date>
</commit>
</entry>
<entry kind="dir">
<name>archive</name>
<commit revision="9">
<author>bob</author>
<date>2024-02-01T08:00:00.000000Z</date>
</commit>
</entry>
</list>
</lists>`

const infoXML = `<?xml version="1.0" encoding="UTF-8"?>
<info>
<entry kind="file" path="order.bpmn" revision="15">
<url>https://svn.example.com/repo/procs/order.bpmn</url>
<commit revision="12">
<author>alice</author>
<date>2024-03-01T10:15:30.123456Z</date>
</commit>
</entry>
</info>`

// recorder is a Runner returning canned output and recording invocations.
type recorder struct {
	calls  [][]string
	stdin  []string
	output []byte
	err    error
}

func (r *recorder) run(_ context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	r.calls = append(r.calls, args)
	in := ""
	if stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		in = string(data)
	}
	r.stdin = append(r.stdin, in)
	return r.output, r.err
}

func (r *recorder) lastStdin() string {
	if len(r.stdin) == 0 {
		return ""
	}
	return r.stdin[len(r.stdin)-1]
}

func (r *recorder) last() []string {
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func newTestClient(cfg Config, output string) (*Client, *recorder) {
	rec := &recorder{output: []byte(output)}
	return NewWithRunner(cfg, rec.run), rec
}

func TestList(t *testing.T) {
	c, rec := newTestClient(Config{}, listXML)

	entries, err := c.List(context.Background(), "https://svn.example.com/repo/procs", backend.Head)
	require.NoError(t, err)

	assert.Equal(t, []string{"list", "--non-interactive", "--xml", "-r", "HEAD", "https://svn.example.com/repo/procs@"}, rec.last())
	require.Len(t, entries, 2)

	assert.Equal(t, "order.bpmn", entries[0].Path)
	assert.Equal(t, backend.KindFile, entries[0].Kind)
	assert.Equal(t, int64(1204), entries[0].Size)
	assert.Equal(t, backend.Revision(12), entries[0].Revision)
	assert.Equal(t, "alice", entries[0].Author)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 30, 123456000, time.UTC), entries[0].LastChangedDate)

	assert.Equal(t, "archive", entries[1].Path)
	assert.Equal(t, backend.KindDir, entries[1].Kind)
}

func TestListInvalidXML(t *testing.T) {
	c, _ := newTestClient(Config{}, "not xml")

	_, err := c.List(context.Background(), "https://svn.example.com/repo", backend.Head)
	assert.Error(t, err)
}

func TestStat(t *testing.T) {
	c, rec := newTestClient(Config{}, infoXML)

	entry, err := c.Stat(context.Background(), "https://svn.example.com/repo/procs/order.bpmn", 15)
	require.NoError(t, err)

	assert.Equal(t, []string{"info", "--non-interactive", "--xml", "-r", "15", "https://svn.example.com/repo/procs/order.bpmn@"}, rec.last())
	assert.Equal(t, "order.bpmn", entry.Path)
	assert.Equal(t, backend.KindFile, entry.Kind)
	assert.Equal(t, backend.Revision(12), entry.Revision)
}

func TestStatEmptyInfo(t *testing.T) {
	c, _ := newTestClient(Config{}, `<info></info>`)

	_, err := c.Stat(context.Background(), "https://svn.example.com/repo/x", backend.Head)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestCredentialsAndOptions(t *testing.T) {
	c, rec := newTestClient(Config{ConfigDir: "/etc/svn", TrustServerCert: true}, "")
	c.SetCredentials("alice", "secret")

	_, err := c.Content(context.Background(), "https://svn.example.com/repo/a.png", backend.Head)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"cat", "--non-interactive",
		"--username", "alice", "--password-from-stdin", "--no-auth-cache",
		"--config-dir", "/etc/svn",
		"--trust-server-cert-failures=unknown-ca,cn-mismatch,expired,not-yet-valid,other",
		"-r", "HEAD", "https://svn.example.com/repo/a.png@",
	}, rec.last())
	assert.Equal(t, "secret", rec.lastStdin())
	assert.NotContains(t, rec.last(), "secret", "the password never reaches the argument list")
}

func TestNoCredentialsNoStdin(t *testing.T) {
	c, rec := newTestClient(Config{}, "")

	_, err := c.Content(context.Background(), "https://svn.example.com/repo/a.png", backend.Head)
	require.NoError(t, err)
	assert.NotContains(t, rec.last(), "--password-from-stdin")
	assert.Empty(t, rec.lastStdin())
}

func TestMutationCommands(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestClient(Config{}, "")
	c.SetCredentials("alice", "secret")
	auth := []string{"--username", "alice", "--password-from-stdin", "--no-auth-cache"}
	cmd := func(subcommand string, args ...string) []string {
		out := append([]string{subcommand, "--non-interactive"}, auth...)
		return append(out, args...)
	}

	require.NoError(t, c.Checkout(ctx, "https://svn.example.com/repo/procs", "/tmp/wc", backend.Head))
	assert.Equal(t, cmd("checkout", "--depth", "files", "-r", "HEAD", "https://svn.example.com/repo/procs@", "/tmp/wc"), rec.last())

	require.NoError(t, c.AddFile(ctx, "/tmp/wc/order.bpmn"))
	assert.Equal(t, cmd("add", "--depth", "empty", "/tmp/wc/order.bpmn@"), rec.last())

	require.NoError(t, c.AddDirectory(ctx, "/tmp/wc/d", true))
	assert.Equal(t, cmd("add", "--depth", "infinity", "/tmp/wc/d@"), rec.last())

	require.NoError(t, c.AddDirectory(ctx, "/tmp/wc/d", false))
	assert.Equal(t, cmd("add", "--depth", "empty", "/tmp/wc/d@"), rec.last())

	require.NoError(t, c.Remove(ctx, []string{"https://svn.example.com/repo/a", "https://svn.example.com/repo/b"}, "gone"))
	assert.Equal(t, cmd("delete", "--message", "gone", "https://svn.example.com/repo/a@", "https://svn.example.com/repo/b@"), rec.last())

	for i, args := range rec.calls {
		assert.NotContains(t, args, "secret", "call %d leaks the password", i)
		assert.Equal(t, "secret", rec.stdin[i], "call %d", i)
	}
}

func TestTargetsContainingAt(t *testing.T) {
	ctx := context.Background()
	c, rec := newTestClient(Config{}, "")
	const url = "https://svn.example.com/repo/img/diagram@2x.png"

	_, err := c.Content(ctx, url, backend.Head)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "--non-interactive", "-r", "HEAD", url + "@"}, rec.last())

	_, _ = c.List(ctx, "https://svn.example.com/repo/img@old", backend.Head)
	assert.Equal(t, "https://svn.example.com/repo/img@old@", rec.last()[len(rec.last())-1])

	require.NoError(t, c.AddFile(ctx, "/tmp/wc/diagram@2x.png"))
	assert.Equal(t, "/tmp/wc/diagram@2x.png@", rec.last()[len(rec.last())-1])

	_, err = c.Commit(ctx, []string{"/tmp/wc/diagram@2x.png"}, "msg", false)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/wc/diagram@2x.png@", rec.last()[len(rec.last())-1])
}

func TestCommit(t *testing.T) {
	c, rec := newTestClient(Config{}, "Adding         order.bpmn\nTransmitting file data .done\nCommitting transaction...\nCommitted revision 42.\n")

	rev, err := c.Commit(context.Background(), []string{"/tmp/wc"}, "msg", true)
	require.NoError(t, err)
	assert.Equal(t, backend.Revision(42), rev)
	assert.Equal(t, []string{"commit", "--non-interactive", "--message", "msg", "/tmp/wc@"}, rec.last())

	_, err = c.Commit(context.Background(), []string{"/tmp/wc"}, "msg", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"commit", "--non-interactive", "--message", "msg", "--depth", "empty", "/tmp/wc@"}, rec.last())
}

func TestCommitNothingToCommit(t *testing.T) {
	c, _ := newTestClient(Config{}, "")

	rev, err := c.Commit(context.Background(), []string{"/tmp/wc"}, "msg", true)
	require.NoError(t, err)
	assert.Equal(t, backend.Head, rev)
}

func TestContent(t *testing.T) {
	c, _ := newTestClient(Config{}, "<definitions/>")

	reader, err := c.Content(context.Background(), "https://svn.example.com/repo/order.bpmn", backend.Head)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "<definitions/>", string(data))
}

func TestCommandErrorNotFound(t *testing.T) {
	err := &CommandError{
		Args:   []string{"info"},
		Stderr: "svn: warning: W170000: URL 'https://svn.example.com/repo/x' non-existent in revision 3",
		Err:    errors.New("exit status 1"),
	}
	assert.ErrorIs(t, err, backend.ErrNotFound)

	other := &CommandError{Args: []string{"info"}, Stderr: "svn: E170001: Authentication failed", Err: errors.New("exit status 1")}
	assert.NotErrorIs(t, other, backend.ErrNotFound)
	assert.Contains(t, other.Error(), "E170001")
}

func TestRunnerErrorPropagates(t *testing.T) {
	rec := &recorder{err: &CommandError{Stderr: "svn: E160013: path not found"}}
	c := NewWithRunner(Config{}, rec.run)

	_, err := c.Content(context.Background(), "https://svn.example.com/repo/x", backend.Head)
	assert.ErrorIs(t, err, backend.ErrNotFound)

	var cmdErr *CommandError
	assert.True(t, errors.As(err, &cmdErr))
}

func TestNewDefaultsBinary(t *testing.T) {
	c := New(Config{})
	assert.NotNil(t, c.run)
}
