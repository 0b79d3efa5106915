package connector

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/pkg/backend"
)

// GetContent returns the content of node at head revision.
//
// For PNG nodes the path's last extension is rewritten to ".png" first, since
// a rendered image lives next to the artifact it was rendered from. A PNG
// that cannot be fetched yields nil and no error: renderings may legitimately
// not exist yet. For every other type a fetch failure is an OperationError.
//
// The caller must close the returned reader.
func (c *Connector) GetContent(ctx context.Context, node *Node) (rc io.ReadCloser, err error) {
	defer c.observe(OpGetContent, time.Now(), &err)

	addr, err := c.AddressOf(contentPath(node))
	if err != nil {
		return nil, c.fail(OpGetContent, node.ID, err)
	}

	rc, err = c.client.Content(ctx, addr, backend.Head)
	if err != nil {
		if node.Type == NodeTypePNGFile {
			logger.Debug("No rendered image for %q: %v", node.ID, err)
			return nil, nil
		}
		return nil, c.fail(OpGetContent, node.ID, err)
	}
	return rc, nil
}

// GetContentInformation re-resolves node and reports whether its content
// exists and when it last changed. Any failure to resolve the node yields the
// NotFound sentinel. Folders are rejected with ErrNotAFile.
func (c *Connector) GetContentInformation(ctx context.Context, node *Node) (info ContentInformation, err error) {
	defer c.observe(OpGetContentInformation, time.Now(), &err)

	reloaded, err := c.GetNode(ctx, node.ID)
	if err != nil || reloaded == nil {
		return NotFound(), nil
	}
	if reloaded.Type == NodeTypeFolder {
		return ContentInformation{}, ErrNotAFile
	}
	return ContentInformation{Exists: true, LastModified: reloaded.LastModified}, nil
}

// contentPath returns the repository path holding node's bytes.
func contentPath(node *Node) string {
	if node.Type != NodeTypePNGFile {
		return node.ID
	}

	id := node.ID
	dot := strings.LastIndex(id, ".")
	if dot < 0 || dot < strings.LastIndex(id, slash) {
		return id + ".png"
	}
	return id[:dot] + ".png"
}
