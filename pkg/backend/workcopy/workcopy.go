// Package workcopy keeps the bookkeeping of local working copies for backends
// that have no native working-copy format (embedded, s3).
//
// A working copy is a local directory holding the immediate files of one
// repository folder plus a state file under StateDir. The state records the
// folder URL, the checked-out revision, a content hash for every base file,
// and the pending additions registered since checkout. Commit computes the
// change-set from that state and the directory contents.
package workcopy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
)

// StateDir is the administrative directory inside a working-copy root.
const StateDir = ".svnconnector"

const stateFile = "state.json"

// ErrNotWorkingCopy is returned when a path is not inside a working copy.
var ErrNotWorkingCopy = errors.New("not a working copy")

// ErrAlreadyVersioned is returned when adding a path that is already
// versioned or already scheduled for addition.
var ErrAlreadyVersioned = errors.New("already under version control")

// State is the persisted bookkeeping of a working copy.
type State struct {
	// URL is the repository folder the working copy was checked out from.
	URL string `json:"url"`

	// Revision is the revision that was checked out.
	Revision backend.Revision `json:"revision"`

	// Base maps relative file names to the hash of their checked-out content.
	Base map[string]uint64 `json:"base"`

	// Added lists pending additions, relative to the root, slash-separated.
	Added []Addition `json:"added"`
}

// Addition is a path scheduled for addition.
type Addition struct {
	Path string       `json:"path"`
	Kind backend.Kind `json:"kind"`
}

// Change is one element of a change-set.
type Change struct {
	// Path is relative to the working-copy root, slash-separated.
	Path string

	// Kind is KindFile or KindDir.
	Kind backend.Kind

	// Added distinguishes additions from modifications of base files.
	Added bool

	// Content holds file bytes (nil for directories).
	Content []byte
}

// Hash returns the change-detection hash of content.
func Hash(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// Create writes the initial state of a working copy rooted at root.
func Create(fs afero.Fs, root string, state *State) error {
	if state.Base == nil {
		state.Base = make(map[string]uint64)
	}
	if err := fs.MkdirAll(filepath.Join(root, StateDir), 0755); err != nil {
		return fmt.Errorf("failed to create working copy state directory: %w", err)
	}
	return Save(fs, root, state)
}

// Load reads the state of the working copy rooted at root.
func Load(fs afero.Fs, root string) (*State, error) {
	data, err := afero.ReadFile(fs, filepath.Join(root, StateDir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotWorkingCopy, root)
		}
		return nil, fmt.Errorf("failed to read working copy state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupt working copy state in %s: %w", root, err)
	}
	if state.Base == nil {
		state.Base = make(map[string]uint64)
	}
	return &state, nil
}

// Save persists state for the working copy rooted at root.
func Save(fs afero.Fs, root string, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode working copy state: %w", err)
	}
	if err := afero.WriteFile(fs, filepath.Join(root, StateDir, stateFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write working copy state: %w", err)
	}
	return nil
}

// FindRoot returns the working-copy root containing p, searching upward
// from p itself.
func FindRoot(fs afero.Fs, p string) (string, error) {
	dir := filepath.Clean(p)
	for {
		if ok, _ := afero.Exists(fs, filepath.Join(dir, StateDir, stateFile)); ok {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrNotWorkingCopy, p)
		}
		dir = parent
	}
}

// Register schedules p for addition. Directories registered with recursive
// set have their whole content scheduled as well.
func Register(fs afero.Fs, p string, recursive bool) error {
	root, err := FindRoot(fs, filepath.Dir(filepath.Clean(p)))
	if err != nil {
		return err
	}
	state, err := Load(fs, root)
	if err != nil {
		return err
	}

	if err := state.schedule(fs, root, p, recursive); err != nil {
		return err
	}
	return Save(fs, root, state)
}

func (s *State) schedule(fs afero.Fs, root, p string, recursive bool) error {
	rel, err := relative(root, p)
	if err != nil {
		return err
	}

	info, err := fs.Stat(p)
	if err != nil {
		return fmt.Errorf("cannot add %s: %w", p, err)
	}

	if s.isVersioned(rel) {
		return fmt.Errorf("%w: %s", ErrAlreadyVersioned, rel)
	}

	kind := backend.KindFile
	if info.IsDir() {
		kind = backend.KindDir
	}
	s.Added = append(s.Added, Addition{Path: rel, Kind: kind})

	if kind != backend.KindDir || !recursive {
		return nil
	}

	children, err := afero.ReadDir(fs, p)
	if err != nil {
		return fmt.Errorf("cannot list %s: %w", p, err)
	}
	for _, child := range children {
		if child.Name() == StateDir {
			continue
		}
		if err := s.schedule(fs, root, filepath.Join(p, child.Name()), true); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) isVersioned(rel string) bool {
	if _, ok := s.Base[rel]; ok {
		return true
	}
	for _, a := range s.Added {
		if a.Path == rel {
			return true
		}
	}
	return false
}

// Changes computes the change-set of the working copy rooted at root:
// every pending addition, parents before children, followed by the base
// files whose content differs from the checked-out version. Base files that
// were deleted locally are ignored.
func Changes(fs afero.Fs, root string, state *State) ([]Change, error) {
	added := append([]Addition(nil), state.Added...)
	sort.SliceStable(added, func(i, j int) bool {
		return strings.Count(added[i].Path, "/") < strings.Count(added[j].Path, "/")
	})

	changes := make([]Change, 0, len(added))
	for _, a := range added {
		change := Change{Path: a.Path, Kind: a.Kind, Added: true}
		if a.Kind == backend.KindFile {
			data, err := afero.ReadFile(fs, filepath.Join(root, filepath.FromSlash(a.Path)))
			if err != nil {
				return nil, fmt.Errorf("cannot read added file %s: %w", a.Path, err)
			}
			change.Content = data
		}
		changes = append(changes, change)
	}

	names := make([]string, 0, len(state.Base))
	for name := range state.Base {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := afero.ReadFile(fs, filepath.Join(root, filepath.FromSlash(name)))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("cannot read %s: %w", name, err)
		}
		if Hash(data) == state.Base[name] {
			continue
		}
		changes = append(changes, Change{Path: name, Kind: backend.KindFile, Content: data})
	}

	return changes, nil
}

// MarkCommitted folds a committed change-set into state: additions become
// base entries and the revision advances.
func (s *State) MarkCommitted(changes []Change, rev backend.Revision) {
	for _, ch := range changes {
		if ch.Kind == backend.KindFile {
			s.Base[ch.Path] = Hash(ch.Content)
		}
	}
	s.Added = nil
	s.Revision = rev
}

// Join returns the repository path of a change relative to the folder path
// the working copy was checked out from.
func Join(folder, rel string) string {
	return backend.CleanPath(path.Join(folder, rel))
}

func relative(root, p string) (string, error) {
	rel, err := filepath.Rel(root, filepath.Clean(p))
	if err != nil {
		return "", err
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s is outside %s", ErrNotWorkingCopy, p, root)
	}
	return filepath.ToSlash(rel), nil
}
