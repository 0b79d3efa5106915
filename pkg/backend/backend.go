// Package backend defines the contract between the repository connector and a
// version-control repository client.
//
// A Client exposes the handful of primitives the connector orchestrates into
// logical operations: listing and stat'ing remote paths, checking a folder out
// into a local working copy, registering pending additions, committing a
// working copy, removing remote paths, and fetching file content.
//
// Implementations:
//   - svn: drives the Subversion command line client
//   - embedded: self-contained revisioned repository persisted in BadgerDB
//   - s3: repository layout on top of an S3 bucket
//
// Addresses passed to a Client are fully-qualified repository URLs, built by the
// connector from its configured base address and a node identifier.
package backend

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when the addressed path does not exist at the
// requested revision.
var ErrNotFound = errors.New("path not found in repository")

// Kind is the node kind reported by the repository for a path.
type Kind int

const (
	// KindOther covers anything the repository reports that is neither a
	// plain file nor a directory (unknown, none, externals).
	KindOther Kind = iota
	KindFile
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "other"
	}
}

// ParseKind maps a repository kind string ("file", "dir") onto a Kind.
// Unrecognized strings map to KindOther.
func ParseKind(s string) Kind {
	switch s {
	case "file":
		return KindFile
	case "dir":
		return KindDir
	default:
		return KindOther
	}
}

// Revision selects a repository revision. Only Head is used by the connector,
// but backends accept explicit revision numbers where they can serve them.
type Revision int64

// Head is the latest committed revision.
const Head Revision = -1

func (r Revision) String() string {
	if r == Head {
		return "HEAD"
	}
	return itoa(int64(r))
}

// Entry is a single directory-listing (or stat) entry as reported by the
// repository. It is owned by the backend; the connector only reads it.
type Entry struct {
	// Path is the entry's last path segment, relative to the listed folder.
	Path string

	// Kind is the repository node kind.
	Kind Kind

	// Size is the file size in bytes (zero for directories).
	Size int64

	// Revision is the revision in which the entry last changed.
	Revision Revision

	// Author is the committer of the last change, if known.
	Author string

	// LastChangedDate is the commit date of the last change.
	LastChangedDate time.Time
}

// Client is the set of repository primitives used by the connector.
//
// Thread Safety:
// Implementations must be safe for concurrent use by read operations. The
// credential pair is shared mutable state: SetCredentials affects every
// subsequent call from every goroutine (last writer wins).
type Client interface {
	// SetCredentials binds the username and password used for subsequent calls.
	SetCredentials(username, password string)

	// List returns the immediate children of the folder at url.
	List(ctx context.Context, url string, rev Revision) ([]Entry, error)

	// Stat returns the entry at url, or ErrNotFound if nothing exists there.
	Stat(ctx context.Context, url string, rev Revision) (*Entry, error)

	// Checkout materializes the immediate files of the folder at url into the
	// local directory target.
	Checkout(ctx context.Context, url, target string, rev Revision) error

	// AddFile registers a file inside a working copy as a pending addition.
	AddFile(ctx context.Context, path string) error

	// AddDirectory registers a directory inside a working copy as a pending
	// addition. With recursive set, its contents are registered as well.
	AddDirectory(ctx context.Context, path string, recursive bool) error

	// Commit submits the pending changes below the given working-copy paths as
	// a single change-set.
	Commit(ctx context.Context, paths []string, message string, recursive bool) (Revision, error)

	// Remove deletes the given urls from the repository in one commit.
	Remove(ctx context.Context, urls []string, message string) error

	// Content returns the bytes of the file at url.
	Content(ctx context.Context, url string, rev Revision) (io.ReadCloser, error)
}

// Closer is implemented by clients holding resources (databases, sessions).
type Closer interface {
	Close() error
}
