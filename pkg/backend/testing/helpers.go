package testing

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs checks if the error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

// url returns the repository URL of path p.
func (f Fixture) url(p string) string {
	return strings.TrimSuffix(f.BaseURL, "/") + backend.CleanPath(p)
}

// workDir returns a fresh working-copy directory for name.
func workDir(name string) string {
	return filepath.Join("/work", name)
}

// mustCheckout checks folder out into a fresh working copy and returns it.
func mustCheckout(t *testing.T, f Fixture, folder, name string) string {
	t.Helper()
	dir := workDir(name)
	err := f.Client.Checkout(testContext(), f.url(folder), dir, backend.Head)
	require.NoError(t, err, "Checkout should succeed")
	return dir
}

// mustWriteFile writes a local file inside a working copy.
func mustWriteFile(t *testing.T, f Fixture, p string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.Fs, p, data, 0644), "local write should succeed")
}

// mustCommit commits the working copy at dir.
func mustCommit(t *testing.T, f Fixture, dir string, recursive bool) {
	t.Helper()
	_, err := f.Client.Commit(testContext(), []string{dir}, "test commit", recursive)
	require.NoError(t, err, "Commit should succeed")
}

// mustAddFile creates folder/name with data through a checkout and commit.
func mustAddFile(t *testing.T, f Fixture, folder, name string, data []byte) {
	t.Helper()
	dir := mustCheckout(t, f, folder, "add-"+strings.ReplaceAll(folder+"-"+name, "/", "_"))
	p := filepath.Join(dir, name)
	mustWriteFile(t, f, p, data)
	require.NoError(t, f.Client.AddFile(testContext(), p), "AddFile should succeed")
	mustCommit(t, f, dir, false)
}

// mustAddFolder creates folder/name through a checkout and commit.
func mustAddFolder(t *testing.T, f Fixture, folder, name string) {
	t.Helper()
	dir := mustCheckout(t, f, folder, "mkdir-"+strings.ReplaceAll(folder+"-"+name, "/", "_"))
	p := filepath.Join(dir, name)
	require.NoError(t, f.Fs.Mkdir(p, 0755))
	require.NoError(t, f.Client.AddDirectory(testContext(), p, true), "AddDirectory should succeed")
	mustCommit(t, f, dir, true)
}

// mustReadContent reads the file at p and fails the test if it errors.
func mustReadContent(t *testing.T, f Fixture, p string) []byte {
	t.Helper()
	reader, err := f.Client.Content(testContext(), f.url(p), backend.Head)
	require.NoError(t, err, "Content should succeed")
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err, "Reading content should succeed")
	return data
}

// assertContentEquals checks if the file at p holds expected.
func assertContentEquals(t *testing.T, f Fixture, p string, expected []byte) {
	t.Helper()
	assert.Equal(t, expected, mustReadContent(t, f, p), "Content data mismatch")
}

// assertKind checks that p exists with the given kind.
func assertKind(t *testing.T, f Fixture, p string, expected backend.Kind) {
	t.Helper()
	entry, err := f.Client.Stat(testContext(), f.url(p), backend.Head)
	require.NoError(t, err, "Stat should succeed")
	assert.Equal(t, expected, entry.Kind, "Kind mismatch for %s", p)
}

// assertMissing checks that nothing exists at p.
func assertMissing(t *testing.T, f Fixture, p string) {
	t.Helper()
	_, err := f.Client.Stat(testContext(), f.url(p), backend.Head)
	AssertErrorIs(t, backend.ErrNotFound, err)
}

// names returns the entry names of a listing keyed by name.
func names(entries []backend.Entry) map[string]backend.Kind {
	out := make(map[string]backend.Kind, len(entries))
	for _, e := range entries {
		out[e.Path] = e.Kind
	}
	return out
}
