// Package connector exposes a version-control repository as a tree of
// document nodes (BPMN process files, images, folders).
//
// Reads go straight to the repository. Writes (create, update content) run a
// checkout, modify, commit, cleanup workflow in a disposable local working
// copy, serialized through one exclusive lock per Connector.
package connector

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
)

// RootID is the identifier of the tree root.
const RootID = "/"

// Connector implements the repository connector on top of a backend.Client.
//
// Thread Safety:
// Read operations are safe for concurrent use. CreateNode and UpdateContent
// serialize through the transaction lock; callers may block indefinitely
// behind a slow commit. DeleteNode is a single repository call and does not
// take the lock. Init must complete before any other operation.
type Connector struct {
	client  backend.Client
	fs      afero.Fs
	metrics Metrics
	lock    *transactionLock

	config             Configuration
	baseURL            string
	temporaryFileStore string
}

// Options configures collaborators of a Connector.
type Options struct {
	// Fs is the filesystem used for working copies. It must be the filesystem
	// the backend checks out into. Defaults to the OS filesystem.
	Fs afero.Fs

	// Metrics receives observations. Defaults to no-op.
	Metrics Metrics
}

// New creates a connector driving client. Call Init before use.
func New(client backend.Client, opts Options) *Connector {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}

	return &Connector{
		client:  client,
		fs:      opts.Fs,
		metrics: opts.Metrics,
		lock:    newTransactionLock(),
	}
}

// Init applies the configuration. A missing repositoryPath is not reported
// here; it fails the first address translation instead.
func (c *Connector) Init(config Configuration) {
	props := make(map[string]string, len(config.Properties))
	for k, v := range config.Properties {
		props[k] = v
	}
	config.Properties = props

	c.config = config
	c.baseURL = props[ConfigKeyRepositoryPath]
	c.temporaryFileStore = resolveTemporaryFileStore(props[ConfigKeyTemporaryFileStore])

	logger.Debug("Connector %q initialized: repository=%s, temporary file store=%s",
		config.Label, c.baseURL, c.temporaryFileStore)
}

// Configuration returns the configuration applied by Init.
func (c *Connector) Configuration() Configuration {
	return c.config
}

// TemporaryFileStore returns the resolved working copy staging root.
func (c *Connector) TemporaryFileStore() string {
	return c.temporaryFileStore
}

// Login binds credentials for all subsequent repository calls. The
// credentials are process-wide for this connector: the last caller wins.
func (c *Connector) Login(username, password string) {
	c.client.SetCredentials(username, password)
}

// GetRoot returns the fixed root folder node.
func (c *Connector) GetRoot() *Node {
	return &Node{
		ID:          RootID,
		Label:       RootID,
		Type:        NodeTypeFolder,
		ConnectorID: c.config.ID,
	}
}

// GetChildren lists the folder parent at head revision, non-recursively.
func (c *Connector) GetChildren(ctx context.Context, parent *Node) (nodes []*Node, err error) {
	defer c.observe(OpGetChildren, time.Now(), &err)

	addr, err := c.AddressOf(parent.ID)
	if err != nil {
		return nil, c.fail(OpGetChildren, parent.ID, err)
	}

	entries, err := c.client.List(ctx, addr, backend.Head)
	if err != nil {
		return nil, c.fail(OpGetChildren, parent.ID, err)
	}

	nodes = make([]*Node, 0, len(entries))
	for _, entry := range entries {
		nodes = append(nodes, c.materialize(parent.ID, entry))
	}
	return nodes, nil
}

// GetNode resolves the node at id. It returns nil and no error when the
// repository has no entry there.
func (c *Connector) GetNode(ctx context.Context, id string) (node *Node, err error) {
	defer c.observe(OpGetNode, time.Now(), &err)

	addr, err := c.AddressOf(id)
	if err != nil {
		return nil, c.fail(OpGetNode, id, err)
	}

	entry, err := c.client.Stat(ctx, addr, backend.Head)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, c.fail(OpGetNode, id, err)
	}
	return c.decorate(id, *entry), nil
}

// fail logs a repository failure and wraps it into an OperationError.
func (c *Connector) fail(op, id string, err error) error {
	logger.Debug("Connector %q: %s %q failed: %v", c.config.Label, op, id, err)
	return &OperationError{Op: op, ID: id, Err: err}
}

func (c *Connector) observe(op string, start time.Time, err *error) {
	c.metrics.RecordOperation(op, time.Since(start), *err)
}
