// Package s3 implements backend.Client on top of an S3 bucket.
//
// Repository paths map onto object keys below an optional prefix. Files are
// objects; folders are key prefixes, made explicit with an empty marker
// object ("<folder>/") when created through a commit. Buckets keep no
// revisions: commits upload the changed objects one by one and report Head.
//
// Only the path component of repository URLs is used, so the connector base
// address can be any URL, e.g. "s3://bucket/".
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/spf13/afero"
)

// API is the subset of the S3 client used by the backend. *s3.Client
// implements it.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config configures the S3 backend.
type Config struct {
	// Client is the configured S3 client.
	Client API

	// Bucket is the bucket holding the repository.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	// Example: "repos/cycle/" results in keys like "repos/cycle/procs/order.bpmn"
	KeyPrefix string

	// Fs is the filesystem working copies live on. Defaults to the OS
	// filesystem.
	Fs afero.Fs
}

// Client is a backend.Client over an S3 bucket.
//
// Thread Safety:
// Safe for concurrent use. Commits are not atomic: a failed commit may leave
// some objects uploaded.
type Client struct {
	api       API
	bucket    string
	keyPrefix string
	fs        afero.Fs

	mu       sync.RWMutex
	username string
}

// New creates an S3 backend.
func New(cfg Config) (*Client, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	prefix := strings.TrimLeft(cfg.KeyPrefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Client{
		api:       cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: prefix,
		fs:        cfg.Fs,
	}, nil
}

// SetCredentials records the username stored as author metadata on uploaded
// objects. Access to the bucket uses the credentials of the S3 client.
func (c *Client) SetCredentials(username, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
}

func (c *Client) author() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.username == "" {
		return "anonymous"
	}
	return c.username
}

// objectKey returns the object key of the file at repository path p.
func (c *Client) objectKey(p string) string {
	return c.keyPrefix + strings.TrimPrefix(p, "/")
}

// folderKey returns the key prefix (and marker key) of the folder at p.
func (c *Client) folderKey(p string) string {
	k := c.objectKey(p)
	if k != "" && !strings.HasSuffix(k, "/") {
		k += "/"
	}
	return k
}

func (c *Client) repositoryPath(url string) (string, error) {
	p, err := backend.URLPath(url)
	if err != nil {
		return "", fmt.Errorf("invalid repository url %q: %w", url, err)
	}
	return p, nil
}

// isNotFound reports whether err is a missing-key response.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func notFound(p string) error {
	return fmt.Errorf("%w: %s", backend.ErrNotFound, p)
}

// listAll returns every key below prefix.
func (c *Client) listAll(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
