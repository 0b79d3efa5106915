package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/svnconnector/pkg/backend"
)

// LogEntry is the commit record of one revision.
type LogEntry struct {
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Paths   []string  `json:"paths"`
}

func putLog(txn *badger.Txn, rev int64, entry *LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}
	return txn.Set(keyLog(rev), data)
}

// Log returns the commit record of rev (Head for the latest).
func (c *Client) Log(ctx context.Context, rev backend.Revision) (*LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry LogEntry
	err := c.db.View(func(txn *badger.Txn) error {
		r := int64(rev)
		if rev == backend.Head {
			var err error
			if r, err = getHead(txn); err != nil {
				return err
			}
		}
		item, err := txn.Get(keyLog(r))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: no log entry for revision %d", backend.ErrNotFound, r)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
