package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/svnconnector/pkg/backend"
)

// Stat returns the entry at url. A key is a file; a non-empty key prefix is
// a folder.
func (c *Client) Stat(ctx context.Context, url string, _ backend.Revision) (*backend.Entry, error) {
	p, err := c.repositoryPath(url)
	if err != nil {
		return nil, err
	}
	if p == "/" {
		return &backend.Entry{Path: "/", Kind: backend.KindDir, Revision: backend.Head}, nil
	}

	head, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(p)),
	})
	if err == nil {
		return &backend.Entry{
			Path:            path.Base(p),
			Kind:            backend.KindFile,
			Size:            aws.ToInt64(head.ContentLength),
			Revision:        backend.Head,
			Author:          head.Metadata["author"],
			LastChangedDate: aws.ToTime(head.LastModified),
		}, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", p, err)
	}

	prefix := c.folderKey(p)
	out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if len(out.Contents) == 0 {
		return nil, notFound(p)
	}

	entry := &backend.Entry{Path: path.Base(p), Kind: backend.KindDir, Revision: backend.Head}
	if first := out.Contents[0]; aws.ToString(first.Key) == prefix {
		entry.LastChangedDate = aws.ToTime(first.LastModified)
	}
	return entry, nil
}

// List returns the immediate children of the folder at url.
func (c *Client) List(ctx context.Context, url string, rev backend.Revision) ([]backend.Entry, error) {
	p, err := c.repositoryPath(url)
	if err != nil {
		return nil, err
	}
	prefix := c.folderKey(p)

	entries := make([]backend.Entry, 0)
	seen := false
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}
		for _, obj := range page.Contents {
			seen = true
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			entries = append(entries, backend.Entry{
				Path:            strings.TrimPrefix(key, prefix),
				Kind:            backend.KindFile,
				Size:            aws.ToInt64(obj.Size),
				Revision:        backend.Head,
				LastChangedDate: aws.ToTime(obj.LastModified),
			})
		}
		for _, cp := range page.CommonPrefixes {
			seen = true
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			entries = append(entries, backend.Entry{
				Path:     name,
				Kind:     backend.KindDir,
				Revision: backend.Head,
			})
		}
	}

	if !seen && p != "/" {
		entry, err := c.Stat(ctx, url, rev)
		if err != nil {
			return nil, err
		}
		if entry.Kind != backend.KindDir {
			return nil, fmt.Errorf("%s is not a directory", p)
		}
	}
	return entries, nil
}

// Content streams the object at url.
func (c *Client) Content(ctx context.Context, url string, _ backend.Revision) (io.ReadCloser, error) {
	p, err := c.repositoryPath(url)
	if err != nil {
		return nil, err
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound(p)
		}
		return nil, fmt.Errorf("failed to get %s: %w", p, err)
	}
	return out.Body, nil
}
