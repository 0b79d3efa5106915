package connector

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/spf13/afero"
)

// indirection matches "${NAME}" temporary file store values.
var indirection = regexp.MustCompile(`^\$\{(.+)\}$`)

// DefaultTemporaryFileStore is the staging root used when none is configured.
func DefaultTemporaryFileStore() string {
	return os.TempDir()
}

// resolveTemporaryFileStore resolves the configured staging root.
//
// A "${NAME}" value is looked up in the environment. A missing, empty or
// unusable value falls back to the default with a warning.
func resolveTemporaryFileStore(value string) string {
	if value == "" {
		return DefaultTemporaryFileStore()
	}

	m := indirection.FindStringSubmatch(value)
	if m == nil {
		return value
	}

	name := m[1]
	resolved, ok := os.LookupEnv(name)
	if !ok || resolved == "" {
		logger.Warn("Could not read temporary file store path from environment variable %s, using %s",
			name, DefaultTemporaryFileStore())
		return DefaultTemporaryFileStore()
	}

	abs, err := filepath.Abs(resolved)
	if err != nil {
		logger.Warn("Could not read temporary file store path from environment variable %s (%q): %v",
			name, resolved, err)
		return DefaultTemporaryFileStore()
	}

	logger.Info("Loading temporary file store path from environment variable %s: %s", name, abs)
	return abs
}

// newWorkingCopyDir creates a fresh, uniquely named staging directory below
// the temporary file store.
func (c *Connector) newWorkingCopyDir() (string, error) {
	dir := filepath.Join(c.temporaryFileStore, uuid.NewString())
	if err := c.fs.MkdirAll(dir, 0755); err != nil {
		return dir, err
	}
	return dir, nil
}

// deleteRecursively removes path and everything below it.
//
// Removal is best-effort: every entry is attempted independently and a
// failure on one child never stops the attempts on its siblings. The result
// is true only if every single removal succeeded.
func deleteRecursively(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return fs.Remove(path) == nil
	}

	result := true
	children, err := afero.ReadDir(fs, path)
	if err != nil {
		result = false
	}
	for _, child := range children {
		removed := deleteRecursively(fs, filepath.Join(path, child.Name()))
		result = result && removed
	}

	removed := fs.Remove(path) == nil
	return result && removed
}
