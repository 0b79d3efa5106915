// Package embedded implements a self-contained revisioned repository
// persisted in BadgerDB.
//
// It behaves like a small Subversion server living inside the process: every
// commit allocates a new head revision, folders record the revision of their
// latest change, commits from stale working copies are rejected, and working
// copies are plain local directories tracked with package workcopy.
//
// Repository URLs may use any scheme; only their path component is used, so
// "embedded:///procs/order.bpmn" addresses "/procs/order.bpmn".
package embedded

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
)

// ErrOutOfDate is returned when committing a change to a file that was
// modified in the repository after the working copy was checked out.
var ErrOutOfDate = errors.New("working copy is out of date")

// ErrConflict is returned when an addition collides with an existing path or
// targets a missing folder.
var ErrConflict = errors.New("commit conflict")

// nodeRecord is the persisted metadata of one repository path.
type nodeRecord struct {
	Kind     backend.Kind `json:"kind"`
	Size     int64        `json:"size"`
	Revision int64        `json:"revision"`
	Author   string       `json:"author"`
	Changed  time.Time    `json:"changed"`
}

// Config configures the embedded repository.
type Config struct {
	// DBPath is the BadgerDB directory. Ignored when InMemory is set.
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps the whole repository in memory.
	InMemory bool `mapstructure:"in_memory"`

	// Fs is the filesystem working copies live on. Defaults to the OS
	// filesystem.
	Fs afero.Fs `mapstructure:"-"`

	// Now returns commit timestamps. Defaults to time.Now.
	Now func() time.Time `mapstructure:"-"`
}

// Client is a backend.Client over an embedded BadgerDB repository.
//
// Thread Safety:
// Safe for concurrent use. Commits and removals are serialized internally so
// revision numbers are allocated without conflicts.
type Client struct {
	db  *badger.DB
	fs  afero.Fs
	now func() time.Time

	// commitMu serializes revision allocation.
	commitMu sync.Mutex

	credMu   sync.RWMutex
	username string
}

// New opens (or creates) the repository described by cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("embedded repository: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING).WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Client{db: db, fs: cfg.Fs, now: cfg.Now}
	if err := c.initializeRoot(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	return c, nil
}

// initializeRoot creates revision 0 with an empty root folder.
func (c *Client) initializeRoot() error {
	return c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(keyNode("/"))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := putRecord(txn, "/", &nodeRecord{Kind: backend.KindDir, Changed: c.now()}); err != nil {
			return err
		}
		return setHead(txn, 0)
	})
}

// Close closes the underlying database.
func (c *Client) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// SetCredentials records the username used as commit author. The embedded
// repository performs no authentication.
func (c *Client) SetCredentials(username, _ string) {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	c.username = username
}

func (c *Client) author() string {
	c.credMu.RLock()
	defer c.credMu.RUnlock()
	if c.username == "" {
		return "anonymous"
	}
	return c.username
}

// Head returns the current head revision.
func (c *Client) Head(ctx context.Context) (backend.Revision, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var head int64
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		head, err = getHead(txn)
		return err
	})
	return backend.Revision(head), err
}

func getRecord(txn *badger.Txn, p string) (*nodeRecord, error) {
	item, err := txn.Get(keyNode(p))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, p)
	}
	if err != nil {
		return nil, err
	}

	var rec nodeRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode node %s: %w", p, err)
	}
	return &rec, nil
}

func putRecord(txn *badger.Txn, p string, rec *nodeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode node %s: %w", p, err)
	}
	return txn.Set(keyNode(p), data)
}

func getHead(txn *badger.Txn) (int64, error) {
	item, err := txn.Get(keyHead)
	if err != nil {
		return 0, fmt.Errorf("failed to read head revision: %w", err)
	}
	var head int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("invalid head revision encoding")
		}
		head = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return head, err
}

func setHead(txn *badger.Txn, rev int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(rev))
	return txn.Set(keyHead, buf)
}

// scan calls fn for every key/value below prefix.
func scan(txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}
