package embedded

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/marmos91/svnconnector/pkg/backend/workcopy"
	"github.com/spf13/afero"
)

// Checkout writes the immediate files of the folder at url into target and
// records the working-copy state.
func (c *Client) Checkout(ctx context.Context, url, target string, rev backend.Revision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := backend.URLPath(url)
	if err != nil {
		return fmt.Errorf("invalid repository url %q: %w", url, err)
	}

	files := make(map[string][]byte)
	var head int64
	err = c.db.View(func(txn *badger.Txn) error {
		if err := checkRevision(txn, rev); err != nil {
			return err
		}
		var err error
		if head, err = getHead(txn); err != nil {
			return err
		}
		entries, err := listFolder(txn, p)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Kind != backend.KindFile {
				continue
			}
			data, err := readContent(txn, workcopy.Join(p, e.Path))
			if err != nil {
				return err
			}
			files[e.Path] = data
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := c.fs.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("failed to create checkout target %s: %w", target, err)
	}

	state := &workcopy.State{URL: url, Revision: backend.Revision(head), Base: make(map[string]uint64)}
	for name, data := range files {
		if err := afero.WriteFile(c.fs, filepath.Join(target, name), data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		state.Base[name] = workcopy.Hash(data)
	}
	return workcopy.Create(c.fs, target, state)
}

// AddFile schedules the file at p for addition.
func (c *Client) AddFile(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return workcopy.Register(c.fs, p, false)
}

// AddDirectory schedules the directory at p, and with recursive set its
// content, for addition.
func (c *Client) AddDirectory(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return workcopy.Register(c.fs, p, recursive)
}

// pendingCommit is the change-set of one working copy.
type pendingCommit struct {
	root    string
	folder  string
	state   *workcopy.State
	changes []workcopy.Change
}

// Commit applies the change-sets of the working copies at paths as one new
// revision. Without recursive only changes directly inside each root are
// committed. A commit without changes does not create a revision and returns
// the current head.
func (c *Client) Commit(ctx context.Context, paths []string, message string, recursive bool) (backend.Revision, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pending := make([]*pendingCommit, 0, len(paths))
	total := 0
	for _, p := range paths {
		root, err := workcopy.FindRoot(c.fs, p)
		if err != nil {
			return 0, err
		}
		state, err := workcopy.Load(c.fs, root)
		if err != nil {
			return 0, err
		}
		folder, err := backend.URLPath(state.URL)
		if err != nil {
			return 0, fmt.Errorf("invalid working copy url %q: %w", state.URL, err)
		}
		changes, err := workcopy.Changes(c.fs, root, state)
		if err != nil {
			return 0, err
		}
		if !recursive {
			changes = shallow(changes)
		}
		total += len(changes)
		pending = append(pending, &pendingCommit{root: root, folder: folder, state: state, changes: changes})
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	var rev int64
	err := c.db.Update(func(txn *badger.Txn) error {
		head, err := getHead(txn)
		if err != nil {
			return err
		}
		if total == 0 {
			rev = head
			return nil
		}

		rev = head + 1
		now := c.now()
		author := c.author()
		var changed []string
		for _, pc := range pending {
			for _, ch := range pc.changes {
				if err := c.apply(txn, pc, ch, rev, now, author); err != nil {
					return err
				}
				changed = append(changed, workcopy.Join(pc.folder, ch.Path))
			}
		}
		if err := putLog(txn, rev, &LogEntry{Message: message, Author: author, Date: now, Paths: changed}); err != nil {
			return err
		}
		return setHead(txn, rev)
	})
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return backend.Revision(rev), nil
	}

	for _, pc := range pending {
		pc.state.MarkCommitted(pc.changes, backend.Revision(rev))
		if err := workcopy.Save(c.fs, pc.root, pc.state); err != nil {
			return backend.Revision(rev), err
		}
	}
	return backend.Revision(rev), nil
}

func shallow(changes []workcopy.Change) []workcopy.Change {
	out := changes[:0]
	for _, ch := range changes {
		if !strings.Contains(ch.Path, "/") {
			out = append(out, ch)
		}
	}
	return out
}

func (c *Client) apply(txn *badger.Txn, pc *pendingCommit, ch workcopy.Change, rev int64, now time.Time, author string) error {
	target := workcopy.Join(pc.folder, ch.Path)

	existing, err := getRecord(txn, target)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return err
	}

	if ch.Added {
		if existing != nil {
			return fmt.Errorf("%w: %s already exists", ErrConflict, target)
		}
		parent, err := getRecord(txn, path.Dir(target))
		if err != nil || parent.Kind != backend.KindDir {
			return fmt.Errorf("%w: parent folder of %s does not exist", ErrConflict, target)
		}
	} else {
		if existing == nil {
			return fmt.Errorf("%w: %s was removed from the repository", ErrOutOfDate, target)
		}
		if existing.Revision > int64(pc.state.Revision) {
			return fmt.Errorf("%w: %s changed in revision %d", ErrOutOfDate, target, existing.Revision)
		}
	}

	rec := &nodeRecord{
		Kind:     ch.Kind,
		Size:     int64(len(ch.Content)),
		Revision: rev,
		Author:   author,
		Changed:  now,
	}
	if err := putRecord(txn, target, rec); err != nil {
		return err
	}
	if ch.Kind == backend.KindFile {
		if err := txn.Set(keyContent(target), ch.Content); err != nil {
			return err
		}
	}
	return touchAncestors(txn, target, rev, now, author)
}

// touchAncestors records rev as the latest change of every folder above p.
func touchAncestors(txn *badger.Txn, p string, rev int64, now time.Time, author string) error {
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		rec, err := getRecord(txn, dir)
		if err != nil {
			return err
		}
		rec.Revision = rev
		rec.Changed = now
		rec.Author = author
		if err := putRecord(txn, dir, rec); err != nil {
			return err
		}
		if dir == "/" {
			return nil
		}
	}
}

// Remove deletes every url, including the content of folders, as one new
// revision.
func (c *Client) Remove(ctx context.Context, urls []string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	targets := make([]string, 0, len(urls))
	for _, u := range urls {
		p, err := backend.URLPath(u)
		if err != nil {
			return fmt.Errorf("invalid repository url %q: %w", u, err)
		}
		if p == "/" {
			return fmt.Errorf("cannot remove the repository root")
		}
		targets = append(targets, p)
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	return c.db.Update(func(txn *badger.Txn) error {
		head, err := getHead(txn)
		if err != nil {
			return err
		}
		rev := head + 1
		now := c.now()
		author := c.author()

		for _, p := range targets {
			if _, err := getRecord(txn, p); err != nil {
				return err
			}
			if err := deleteTree(txn, p); err != nil {
				return err
			}
			if err := touchAncestors(txn, p, rev, now, author); err != nil {
				return err
			}
		}
		if err := putLog(txn, rev, &LogEntry{Message: message, Author: author, Date: now, Paths: targets}); err != nil {
			return err
		}
		return setHead(txn, rev)
	})
}

func deleteTree(txn *badger.Txn, p string) error {
	keys := [][]byte{keyNode(p), keyContent(p)}
	for _, prefix := range [][]byte{childPrefix(prefixNode, p), childPrefix(prefixContent, p)} {
		err := scan(txn, prefix, func(key, _ []byte) error {
			keys = append(keys, key)
			return nil
		})
		if err != nil {
			return err
		}
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
