package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/marmos91/svnconnector/pkg/backend/workcopy"
	"github.com/spf13/afero"
)

// maxDeleteBatch is the S3 limit of keys per DeleteObjects call.
const maxDeleteBatch = 1000

// Checkout downloads the immediate files of the folder at url into target.
func (c *Client) Checkout(ctx context.Context, url, target string, rev backend.Revision) error {
	entries, err := c.List(ctx, url, rev)
	if err != nil {
		return err
	}
	p, err := c.repositoryPath(url)
	if err != nil {
		return err
	}

	if err := c.fs.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("failed to create checkout target %s: %w", target, err)
	}

	state := &workcopy.State{URL: url, Revision: backend.Head, Base: make(map[string]uint64)}
	for _, e := range entries {
		if e.Kind != backend.KindFile {
			continue
		}
		data, err := c.download(ctx, workcopy.Join(p, e.Path))
		if err != nil {
			return err
		}
		if err := afero.WriteFile(c.fs, filepath.Join(target, e.Path), data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Path, err)
		}
		state.Base[e.Path] = workcopy.Hash(data)
	}
	return workcopy.Create(c.fs, target, state)
}

func (c *Client) download(ctx context.Context, p string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(p)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", p, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// AddFile schedules the file at p for upload.
func (c *Client) AddFile(_ context.Context, p string) error {
	return workcopy.Register(c.fs, p, false)
}

// AddDirectory schedules the directory at p, and with recursive set its
// content, for upload.
func (c *Client) AddDirectory(_ context.Context, p string, recursive bool) error {
	return workcopy.Register(c.fs, p, recursive)
}

// Commit uploads the change-sets of the working copies at paths.
func (c *Client) Commit(ctx context.Context, paths []string, message string, recursive bool) (backend.Revision, error) {
	author := c.author()

	for _, wc := range paths {
		root, err := workcopy.FindRoot(c.fs, wc)
		if err != nil {
			return 0, err
		}
		state, err := workcopy.Load(c.fs, root)
		if err != nil {
			return 0, err
		}
		folder, err := c.repositoryPath(state.URL)
		if err != nil {
			return 0, err
		}
		changes, err := workcopy.Changes(c.fs, root, state)
		if err != nil {
			return 0, err
		}

		committed := make([]workcopy.Change, 0, len(changes))
		for _, ch := range changes {
			if !recursive && strings.Contains(ch.Path, "/") {
				continue
			}
			if err := c.upload(ctx, workcopy.Join(folder, ch.Path), ch, author, message); err != nil {
				return 0, err
			}
			committed = append(committed, ch)
		}

		state.MarkCommitted(committed, backend.Head)
		if err := workcopy.Save(c.fs, root, state); err != nil {
			return 0, err
		}
	}
	return backend.Head, nil
}

func (c *Client) upload(ctx context.Context, p string, ch workcopy.Change, author, message string) error {
	key := c.objectKey(p)
	body := ch.Content
	if ch.Kind == backend.KindDir {
		key = c.folderKey(p)
		body = nil
	}

	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
		Metadata: map[string]string{
			"author":  author,
			"message": message,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", p, err)
	}
	return nil
}

// Remove deletes the objects at urls; folders are removed with everything
// below them.
func (c *Client) Remove(ctx context.Context, urls []string, _ string) error {
	for _, u := range urls {
		p, err := c.repositoryPath(u)
		if err != nil {
			return err
		}
		if p == "/" {
			return fmt.Errorf("cannot remove the repository root")
		}

		entry, err := c.Stat(ctx, u, backend.Head)
		if err != nil {
			return err
		}

		if entry.Kind == backend.KindFile {
			_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(c.bucket),
				Key:    aws.String(c.objectKey(p)),
			})
			if err != nil {
				return fmt.Errorf("failed to delete %s: %w", p, err)
			}
			continue
		}

		keys, err := c.listAll(ctx, c.folderKey(p))
		if err != nil {
			return err
		}
		if err := c.deleteKeys(ctx, keys); err != nil {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}
	return nil
}

func (c *Client) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
		}

		_, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
