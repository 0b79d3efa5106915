package connector

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
)

// fakeClient is a scripted backend.Client recording every call.
type fakeClient struct {
	fs afero.Fs

	mu        sync.Mutex
	calls     []string
	username  string
	password  string
	added     []string
	addedDirs map[string]bool
	messages  []string
	committed map[string][]byte
	removed   []string
	urls      []string

	entries map[string][]backend.Entry
	stats   map[string]*backend.Entry
	content map[string][]byte

	listErr     error
	statErr     error
	checkoutErr error
	commitErr   error
	removeErr   error

	// commitDelay widens the checkout-commit window.
	commitDelay time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeClient(fs afero.Fs) *fakeClient {
	return &fakeClient{
		fs:        fs,
		addedDirs: make(map[string]bool),
		committed: make(map[string][]byte),
		entries:   make(map[string][]backend.Entry),
		stats:     make(map[string]*backend.Entry),
		content:   make(map[string][]byte),
	}
}

func (f *fakeClient) record(call, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if url != "" {
		f.urls = append(f.urls, url)
	}
}

func (f *fakeClient) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeClient) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.urls) == 0 {
		return ""
	}
	return f.urls[len(f.urls)-1]
}

func (f *fakeClient) SetCredentials(username, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "login")
	f.username = username
	f.password = password
}

func (f *fakeClient) List(_ context.Context, url string, _ backend.Revision) ([]backend.Entry, error) {
	f.record("list", url)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.entries[url], nil
}

func (f *fakeClient) Stat(_ context.Context, url string, _ backend.Revision) (*backend.Entry, error) {
	f.record("stat", url)
	if f.statErr != nil {
		return nil, f.statErr
	}
	entry, ok := f.stats[url]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return entry, nil
}

func (f *fakeClient) Checkout(_ context.Context, url, target string, _ backend.Revision) error {
	f.record("checkout", url)
	if n := f.active.Add(1); n > f.maxActive.Load() {
		f.maxActive.Store(n)
	}
	if f.checkoutErr != nil {
		f.active.Add(-1)
		return f.checkoutErr
	}
	return f.fs.MkdirAll(target, 0755)
}

func (f *fakeClient) AddFile(_ context.Context, path string) error {
	f.record("addFile", "")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, path)
	return nil
}

func (f *fakeClient) AddDirectory(_ context.Context, path string, recursive bool) error {
	f.record("addDirectory", "")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, path)
	f.addedDirs[path] = recursive
	return nil
}

func (f *fakeClient) Commit(_ context.Context, paths []string, message string, _ bool) (backend.Revision, error) {
	f.record("commit", "")
	defer f.active.Add(-1)
	time.Sleep(f.commitDelay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	if f.commitErr != nil {
		return 0, f.commitErr
	}

	for _, root := range paths {
		files, _ := afero.ReadDir(f.fs, root)
		for _, fi := range files {
			if fi.IsDir() {
				continue
			}
			data, _ := afero.ReadFile(f.fs, filepath.Join(root, fi.Name()))
			f.committed[fi.Name()] = data
		}
	}
	return backend.Revision(len(f.messages)), nil
}

func (f *fakeClient) Remove(_ context.Context, urls []string, message string) error {
	f.record("remove", urls[0])
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, urls...)
	return nil
}

func (f *fakeClient) Content(_ context.Context, url string, _ backend.Revision) (io.ReadCloser, error) {
	f.record("content", url)
	data, ok := f.content[url]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// recordingMetrics counts observations.
type recordingMetrics struct {
	mu         sync.Mutex
	operations map[string]int
	failures   map[string]int
	lockWaits  int
	leaks      int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{operations: make(map[string]int), failures: make(map[string]int)}
}

func (m *recordingMetrics) RecordOperation(op string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[op]++
	if err != nil {
		m.failures[op]++
	}
}

func (m *recordingMetrics) RecordLockWait(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockWaits++
}

func (m *recordingMetrics) RecordWorkingCopyLeak() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaks++
}

const testBaseURL = "https://svn.example.com/repo/"

// newTestConnector returns an initialized connector over a fake client and an
// in-memory filesystem.
func newTestConnector() (*Connector, *fakeClient, *recordingMetrics, afero.Fs) {
	fs := afero.NewMemMapFs()
	client := newFakeClient(fs)
	metrics := newRecordingMetrics()

	c := New(client, Options{Fs: fs, Metrics: metrics})
	c.Init(Configuration{
		ID:    7,
		Label: "test",
		Properties: map[string]string{
			ConfigKeyRepositoryPath:     testBaseURL,
			ConfigKeyTemporaryFileStore: "/staging",
		},
	})
	return c, client, metrics, fs
}
