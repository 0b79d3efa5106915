// Package svn implements backend.Client by driving the Subversion command
// line client.
//
// Listings and stats use the XML output of "svn list" and "svn info";
// checkouts are non-recursive ("--depth files"); every invocation runs with
// "--non-interactive" so a missing credential fails instead of prompting.
// The password is fed on standard input, never on the command line.
//
// Every URL and working copy path carries a trailing "@" so names containing
// "@" are not read as peg revisions.
package svn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/marmos91/svnconnector/pkg/backend"
)

// Config configures the command line client.
type Config struct {
	// Binary is the svn executable. Default: "svn" from PATH.
	Binary string `mapstructure:"binary"`

	// ConfigDir overrides the runtime configuration directory (--config-dir).
	ConfigDir string `mapstructure:"config_dir"`

	// TrustServerCert accepts server certificates that fail validation.
	TrustServerCert bool `mapstructure:"trust_server_cert"`
}

// Runner executes one svn invocation and returns its standard output. stdin,
// when not nil, is connected to the process standard input.
type Runner func(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error)

// Client is a backend.Client talking to a Subversion repository through the
// svn executable.
//
// Thread Safety:
// Safe for concurrent use; every call spawns its own process. Credentials set
// with SetCredentials apply to all subsequent calls.
type Client struct {
	config Config
	run    Runner

	mu       sync.RWMutex
	username string
	password string
}

// New creates a client running cfg.Binary.
func New(cfg Config) *Client {
	if cfg.Binary == "" {
		cfg.Binary = "svn"
	}
	return NewWithRunner(cfg, execRunner(cfg.Binary))
}

// NewWithRunner creates a client executing commands through run.
func NewWithRunner(cfg Config, run Runner) *Client {
	return &Client{config: cfg, run: run}
}

// CommandError is returned when an svn invocation fails.
type CommandError struct {
	// Args are the invocation arguments.
	Args []string

	// Stderr is the trimmed error output.
	Stderr string

	Err error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("svn %s: %s", strings.Join(e.Args, " "), e.Stderr)
	}
	return fmt.Sprintf("svn %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// notFoundCodes are svn error codes meaning the addressed path does not exist.
var notFoundCodes = []string{
	"E170000", // URL doesn't exist
	"W170000",
	"E160013", // path not found
	"W160013",
	"E155010", // local node not found
	"W155010",
	"E200009", // some targets don't exist
}

// Is makes errors.Is(err, backend.ErrNotFound) hold for missing-path failures.
func (e *CommandError) Is(target error) bool {
	if target != backend.ErrNotFound {
		return false
	}
	for _, code := range notFoundCodes {
		if strings.Contains(e.Stderr, code) {
			return true
		}
	}
	return false
}

func execRunner(binary string) Runner {
	return func(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, binary, args...)

		var stdout, stderr bytes.Buffer
		cmd.Stdin = stdin
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, &CommandError{
				Args:   args,
				Stderr: strings.TrimSpace(stderr.String()),
				Err:    err,
			}
		}
		return stdout.Bytes(), nil
	}
}

// SetCredentials binds the credentials passed to every subsequent call.
func (c *Client) SetCredentials(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
	c.password = password
}

// invoke runs subcommand with the bound credentials and global options.
func (c *Client) invoke(ctx context.Context, subcommand string, args ...string) ([]byte, error) {
	out := []string{subcommand, "--non-interactive"}

	var stdin io.Reader
	c.mu.RLock()
	if c.username != "" {
		out = append(out, "--username", c.username, "--password-from-stdin", "--no-auth-cache")
		stdin = strings.NewReader(c.password)
	}
	c.mu.RUnlock()

	if c.config.ConfigDir != "" {
		out = append(out, "--config-dir", c.config.ConfigDir)
	}
	if c.config.TrustServerCert {
		out = append(out, "--trust-server-cert-failures=unknown-ca,cn-mismatch,expired,not-yet-valid,other")
	}
	return c.run(ctx, stdin, append(out, args...)...)
}

// peg pins target to its operative revision. svn reads everything after the
// last "@" as a peg revision, so an explicit empty one keeps a name such as
// "diagram@2x.png" intact.
func peg(target string) string {
	return target + "@"
}

func pegAll(targets []string) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = peg(t)
	}
	return out
}

// List runs "svn list --xml".
func (c *Client) List(ctx context.Context, url string, rev backend.Revision) ([]backend.Entry, error) {
	out, err := c.invoke(ctx, "list", "--xml", "-r", rev.String(), peg(url))
	if err != nil {
		return nil, err
	}
	return parseList(out)
}

// Stat runs "svn info --xml".
func (c *Client) Stat(ctx context.Context, url string, rev backend.Revision) (*backend.Entry, error) {
	out, err := c.invoke(ctx, "info", "--xml", "-r", rev.String(), peg(url))
	if err != nil {
		return nil, err
	}
	return parseInfo(out, url)
}

// Checkout runs "svn checkout --depth files".
func (c *Client) Checkout(ctx context.Context, url, target string, rev backend.Revision) error {
	_, err := c.invoke(ctx, "checkout", "--depth", "files", "-r", rev.String(), peg(url), target)
	return err
}

// AddFile runs "svn add".
func (c *Client) AddFile(ctx context.Context, path string) error {
	_, err := c.invoke(ctx, "add", "--depth", "empty", peg(path))
	return err
}

// AddDirectory runs "svn add" with infinite depth when recursive.
func (c *Client) AddDirectory(ctx context.Context, path string, recursive bool) error {
	depth := "empty"
	if recursive {
		depth = "infinity"
	}
	_, err := c.invoke(ctx, "add", "--depth", depth, peg(path))
	return err
}

var committedRevision = regexp.MustCompile(`Committed revision (\d+)\.`)

// Commit runs "svn commit". When there was nothing to commit it returns Head.
func (c *Client) Commit(ctx context.Context, paths []string, message string, recursive bool) (backend.Revision, error) {
	args := []string{"--message", message}
	if !recursive {
		args = append(args, "--depth", "empty")
	}
	args = append(args, pegAll(paths)...)

	out, err := c.invoke(ctx, "commit", args...)
	if err != nil {
		return 0, err
	}

	m := committedRevision.FindSubmatch(out)
	if m == nil {
		return backend.Head, nil
	}
	rev, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected commit output %q: %w", out, err)
	}
	return backend.Revision(rev), nil
}

// Remove runs "svn delete" on the given urls.
func (c *Client) Remove(ctx context.Context, urls []string, message string) error {
	args := append([]string{"--message", message}, pegAll(urls)...)
	_, err := c.invoke(ctx, "delete", args...)
	return err
}

// Content runs "svn cat".
func (c *Client) Content(ctx context.Context, url string, rev backend.Revision) (io.ReadCloser, error) {
	out, err := c.invoke(ctx, "cat", "-r", rev.String(), peg(url))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(out)), nil
}
