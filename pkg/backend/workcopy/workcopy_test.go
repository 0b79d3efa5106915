package workcopy

import (
	"path/filepath"
	"testing"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkingCopy(t *testing.T, base map[string]string) (afero.Fs, string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	root := "/wc"
	state := &State{URL: "mem:///procs", Revision: 3, Base: make(map[string]uint64)}
	for name, content := range base {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(root, name), []byte(content), 0644))
		state.Base[name] = Hash([]byte(content))
	}
	require.NoError(t, Create(fs, root, state))
	return fs, root
}

func TestCreateAndLoad(t *testing.T) {
	fs, root := newWorkingCopy(t, map[string]string{"order.bpmn": "o"})

	state, err := Load(fs, root)
	require.NoError(t, err)
	assert.Equal(t, "mem:///procs", state.URL)
	assert.Equal(t, backend.Revision(3), state.Revision)
	assert.Equal(t, Hash([]byte("o")), state.Base["order.bpmn"])
}

func TestLoadNotWorkingCopy(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nowhere")
	assert.ErrorIs(t, err, ErrNotWorkingCopy)
}

func TestFindRoot(t *testing.T) {
	fs, root := newWorkingCopy(t, nil)
	require.NoError(t, fs.MkdirAll("/wc/a/b", 0755))

	found, err := FindRoot(fs, "/wc/a/b")
	require.NoError(t, err)
	assert.Equal(t, root, found)

	_, err = FindRoot(fs, "/elsewhere")
	assert.ErrorIs(t, err, ErrNotWorkingCopy)
}

func TestRegisterRecursive(t *testing.T) {
	fs, root := newWorkingCopy(t, nil)
	require.NoError(t, fs.MkdirAll("/wc/d/e", 0755))
	require.NoError(t, afero.WriteFile(fs, "/wc/d/e/x.bpmn", []byte("x"), 0644))

	require.NoError(t, Register(fs, "/wc/d", true))

	state, err := Load(fs, root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Addition{
		{Path: "d", Kind: backend.KindDir},
		{Path: "d/e", Kind: backend.KindDir},
		{Path: "d/e/x.bpmn", Kind: backend.KindFile},
	}, state.Added)
}

func TestRegisterNonRecursive(t *testing.T) {
	fs, root := newWorkingCopy(t, nil)
	require.NoError(t, fs.MkdirAll("/wc/d", 0755))
	require.NoError(t, afero.WriteFile(fs, "/wc/d/x.bpmn", []byte("x"), 0644))

	require.NoError(t, Register(fs, "/wc/d", false))

	state, err := Load(fs, root)
	require.NoError(t, err)
	assert.Equal(t, []Addition{{Path: "d", Kind: backend.KindDir}}, state.Added)
}

func TestRegisterRejectsVersionedPaths(t *testing.T) {
	fs, _ := newWorkingCopy(t, map[string]string{"order.bpmn": "o"})

	err := Register(fs, "/wc/order.bpmn", false)
	assert.ErrorIs(t, err, ErrAlreadyVersioned)

	require.NoError(t, afero.WriteFile(fs, "/wc/new.bpmn", nil, 0644))
	require.NoError(t, Register(fs, "/wc/new.bpmn", false))
	assert.ErrorIs(t, Register(fs, "/wc/new.bpmn", false), ErrAlreadyVersioned)
}

func TestRegisterMissingPath(t *testing.T) {
	fs, _ := newWorkingCopy(t, nil)
	assert.Error(t, Register(fs, "/wc/ghost.bpmn", false))
}

func TestChanges(t *testing.T) {
	fs, root := newWorkingCopy(t, map[string]string{
		"same.bpmn":    "same",
		"changed.bpmn": "before",
		"gone.bpmn":    "gone",
	})
	require.NoError(t, afero.WriteFile(fs, "/wc/changed.bpmn", []byte("after"), 0644))
	require.NoError(t, fs.Remove("/wc/gone.bpmn"))
	require.NoError(t, fs.MkdirAll("/wc/d", 0755))
	require.NoError(t, afero.WriteFile(fs, "/wc/d/x.bpmn", []byte("x"), 0644))
	require.NoError(t, Register(fs, "/wc/d", true))

	state, err := Load(fs, root)
	require.NoError(t, err)
	changes, err := Changes(fs, root, state)
	require.NoError(t, err)

	require.Len(t, changes, 3)
	assert.Equal(t, Change{Path: "d", Kind: backend.KindDir, Added: true}, changes[0])
	assert.Equal(t, Change{Path: "d/x.bpmn", Kind: backend.KindFile, Added: true, Content: []byte("x")}, changes[1])
	assert.Equal(t, Change{Path: "changed.bpmn", Kind: backend.KindFile, Content: []byte("after")}, changes[2])
}

func TestMarkCommitted(t *testing.T) {
	state := &State{Base: map[string]uint64{}, Added: []Addition{{Path: "a.bpmn", Kind: backend.KindFile}}}

	state.MarkCommitted([]Change{
		{Path: "a.bpmn", Kind: backend.KindFile, Added: true, Content: []byte("a")},
		{Path: "d", Kind: backend.KindDir, Added: true},
	}, 7)

	assert.Empty(t, state.Added)
	assert.Equal(t, backend.Revision(7), state.Revision)
	assert.Equal(t, map[string]uint64{"a.bpmn": Hash([]byte("a"))}, state.Base)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/procs/order.bpmn", Join("/procs", "order.bpmn"))
	assert.Equal(t, "/order.bpmn", Join("/", "order.bpmn"))
	assert.Equal(t, "/procs/d/x.bpmn", Join("/procs/", "d/x.bpmn"))
}
