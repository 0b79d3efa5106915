package connector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
)

// commitSuffix marks every commit made by the connector in repository history.
const commitSuffix = "using svnconnector"

// mutation describes one checkout, modify, commit workflow.
type mutation struct {
	// op and id identify the operation for errors and logs.
	op string
	id string

	// folder is the identifier of the folder checked out as working copy.
	folder string

	// message is the commit message.
	message string

	// apply changes the working copy rooted at dir.
	apply func(ctx context.Context, dir string) error
}

// CreateNode creates an empty file, or a folder, named label in the folder
// containing id and commits it.
//
// The checkout folder is derived from id; parentID is only informational.
func (c *Connector) CreateNode(ctx context.Context, parentID, id, label string, nodeType NodeType) (node *Node, err error) {
	if nodeType == NodeTypeUnspecified {
		return nil, ErrUnspecifiedNodeType
	}
	if _, known := nodeTypeNames[nodeType]; !known {
		return nil, ErrUnspecifiedNodeType
	}
	if err := validateLabel(label); err != nil {
		return nil, err
	}

	defer c.observe(OpCreateNode, time.Now(), &err)

	folder := ParentOf(id)
	logger.Debug("Creating %s %q (parent %q) in %q", nodeType, label, parentID, folder)

	err = c.mutate(ctx, mutation{
		op:      OpCreateNode,
		id:      id,
		folder:  folder,
		message: fmt.Sprintf("Created node '%s' in '%s' %s.", label, folder, commitSuffix),
		apply: func(ctx context.Context, dir string) error {
			target := filepath.Join(dir, label)

			if nodeType == NodeTypeFolder {
				if err := c.fs.Mkdir(target, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", target, err)
				}
				return c.client.AddDirectory(ctx, target, true)
			}

			f, err := c.fs.OpenFile(target, os.O_RDWR|os.O_CREATE, 0644)
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", target, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close file %s: %w", target, err)
			}
			return c.client.AddFile(ctx, target)
		},
	})
	if err != nil {
		return nil, err
	}

	return &Node{
		ID:          id,
		Label:       label,
		Type:        nodeType,
		ConnectorID: c.config.ID,
	}, nil
}

// UpdateContent replaces the content of the file node with content and
// commits it. The stream is fully drained and flushed before the commit.
func (c *Connector) UpdateContent(ctx context.Context, node *Node, content io.Reader) (info ContentInformation, err error) {
	if err := validateLabel(node.Label); err != nil {
		return ContentInformation{}, err
	}

	defer c.observe(OpUpdateContent, time.Now(), &err)

	folder := ParentOf(node.ID)

	err = c.mutate(ctx, mutation{
		op:      OpUpdateContent,
		id:      node.ID,
		folder:  folder,
		message: fmt.Sprintf("Updated file '%s' in '%s' %s.", node.Label, folder, commitSuffix),
		apply: func(_ context.Context, dir string) error {
			target := filepath.Join(dir, node.Label)

			f, err := c.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("failed to open %s for writing: %w", target, err)
			}

			w := bufio.NewWriter(f)
			if _, err := io.Copy(w, content); err != nil {
				_ = f.Close()
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
			if err := w.Flush(); err != nil {
				_ = f.Close()
				return fmt.Errorf("failed to flush %s: %w", target, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", target, err)
			}

			stat, err := c.fs.Stat(target)
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", target, err)
			}
			info = ContentInformation{Exists: true, LastModified: stat.ModTime()}
			return nil
		},
	})
	if err != nil {
		return ContentInformation{}, err
	}
	return info, nil
}

// validateLabel rejects labels that would not name an entry directly inside
// the working copy.
func validateLabel(label string) error {
	switch {
	case label == "", label == ".", label == "..":
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	case strings.ContainsAny(label, `/\`):
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return nil
}

// DeleteNode removes node from the repository in a single call.
//
// It does not stage a working copy and does not take the transaction lock,
// so it may run while a create or update is in flight.
func (c *Connector) DeleteNode(ctx context.Context, node *Node) (err error) {
	defer c.observe(OpDeleteNode, time.Now(), &err)

	addr, err := c.AddressOf(node.ID)
	if err != nil {
		return c.fail(OpDeleteNode, node.ID, err)
	}

	message := fmt.Sprintf("Removed '%s' %s.", node.ID, commitSuffix)
	if err := c.client.Remove(ctx, []string{addr}, message); err != nil {
		return c.fail(OpDeleteNode, node.ID, err)
	}
	return nil
}

// mutate runs m under the transaction lock.
//
// The lock is released on every exit path. The working copy is removed only
// after a successful commit: a failed attempt leaves it on disk, where it is
// logged and counted.
func (c *Connector) mutate(ctx context.Context, m mutation) error {
	dir, err := c.transaction(func() (string, error) {
		addr, err := c.AddressOf(m.folder)
		if err != nil {
			return "", err
		}

		dir, err := c.newWorkingCopyDir()
		if err != nil {
			return dir, fmt.Errorf("failed to create working copy: %w", err)
		}

		if err := c.checkout(ctx, addr, dir); err != nil {
			return dir, err
		}
		if err := m.apply(ctx, dir); err != nil {
			return dir, err
		}
		return dir, c.commit(ctx, dir, m.message)
	})
	if err != nil {
		if dir != "" {
			if exists, _ := afero.DirExists(c.fs, dir); exists {
				logger.Warn("Working copy %s left behind after failed %s of %q", dir, m.op, m.id)
				c.metrics.RecordWorkingCopyLeak()
			}
		}
		return c.fail(m.op, m.id, err)
	}

	if !deleteRecursively(c.fs, dir) {
		logger.Warn("Could not completely remove working copy %s", dir)
	}
	return nil
}

// transaction runs fn while holding the transaction lock.
func (c *Connector) transaction(fn func() (string, error)) (string, error) {
	start := time.Now()
	c.beginTransaction()
	c.metrics.RecordLockWait(time.Since(start))
	defer c.stopTransaction()

	return fn()
}

func (c *Connector) beginTransaction() {
	c.lock.lock()
}

func (c *Connector) stopTransaction() {
	if !c.lock.unlock() {
		logger.Debug("Transaction lock was not held on release")
	}
}

func (c *Connector) checkout(ctx context.Context, url, dir string) error {
	if err := c.client.Checkout(ctx, url, dir, backend.Head); err != nil {
		logger.Error("Could not checkout from repository %s to %s: %v", url, dir, err)
		return err
	}
	return nil
}

func (c *Connector) commit(ctx context.Context, dir, message string) error {
	rev, err := c.client.Commit(ctx, []string{dir}, message, true)
	if err != nil {
		logger.Error("Could not commit changes in %s: %v", dir, err)
		return err
	}
	logger.Debug("Committed revision %s: %s", rev, message)
	return nil
}
