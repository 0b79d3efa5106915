package embedded

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/svnconnector/pkg/backend"
)

// checkRevision rejects revisions other than head; the embedded repository
// keeps only the head tree.
func checkRevision(txn *badger.Txn, rev backend.Revision) error {
	if rev == backend.Head {
		return nil
	}
	head, err := getHead(txn)
	if err != nil {
		return err
	}
	if int64(rev) != head {
		return fmt.Errorf("revision %s is not available, only head (%d) is retained", rev, head)
	}
	return nil
}

func toEntry(p string, rec *nodeRecord) *backend.Entry {
	name := path.Base(p)
	return &backend.Entry{
		Path:            name,
		Kind:            rec.Kind,
		Size:            rec.Size,
		Revision:        backend.Revision(rec.Revision),
		Author:          rec.Author,
		LastChangedDate: rec.Changed,
	}
}

// Stat returns the entry at url.
func (c *Client) Stat(ctx context.Context, url string, rev backend.Revision) (*backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := backend.URLPath(url)
	if err != nil {
		return nil, fmt.Errorf("invalid repository url %q: %w", url, err)
	}

	var entry *backend.Entry
	err = c.db.View(func(txn *badger.Txn) error {
		if err := checkRevision(txn, rev); err != nil {
			return err
		}
		rec, err := getRecord(txn, p)
		if err != nil {
			return err
		}
		entry = toEntry(p, rec)
		return nil
	})
	return entry, err
}

// List returns the immediate children of the folder at url, sorted by name.
func (c *Client) List(ctx context.Context, url string, rev backend.Revision) ([]backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := backend.URLPath(url)
	if err != nil {
		return nil, fmt.Errorf("invalid repository url %q: %w", url, err)
	}

	var entries []backend.Entry
	err = c.db.View(func(txn *badger.Txn) error {
		if err := checkRevision(txn, rev); err != nil {
			return err
		}
		var err error
		entries, err = listFolder(txn, p)
		return err
	})
	return entries, err
}

func listFolder(txn *badger.Txn, p string) ([]backend.Entry, error) {
	rec, err := getRecord(txn, p)
	if err != nil {
		return nil, err
	}
	if rec.Kind != backend.KindDir {
		return nil, fmt.Errorf("%s is not a directory", p)
	}

	prefix := childPrefix(prefixNode, p)
	entries := make([]backend.Entry, 0)
	err = scan(txn, prefix, func(key, val []byte) error {
		rest := string(key[len(prefix):])
		if rest == "" || strings.Contains(rest, "/") {
			return nil
		}
		var child nodeRecord
		if err := json.Unmarshal(val, &child); err != nil {
			return fmt.Errorf("failed to decode node %s: %w", key, err)
		}
		entries = append(entries, *toEntry(string(key[len(prefixNode):]), &child))
		return nil
	})
	return entries, err
}

// Content returns the bytes of the file at url.
func (c *Client) Content(ctx context.Context, url string, rev backend.Revision) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := backend.URLPath(url)
	if err != nil {
		return nil, fmt.Errorf("invalid repository url %q: %w", url, err)
	}

	var data []byte
	err = c.db.View(func(txn *badger.Txn) error {
		if err := checkRevision(txn, rev); err != nil {
			return err
		}
		var err error
		data, err = readContent(txn, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func readContent(txn *badger.Txn, p string) ([]byte, error) {
	rec, err := getRecord(txn, p)
	if err != nil {
		return nil, err
	}
	if rec.Kind != backend.KindFile {
		return nil, fmt.Errorf("%s is not a file", p)
	}

	item, err := txn.Get(keyContent(p))
	if err != nil {
		return nil, fmt.Errorf("failed to read content of %s: %w", p, err)
	}
	return item.ValueCopy(nil)
}
