package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/pkg/backend"
	"github.com/marmos91/svnconnector/pkg/config"
	"github.com/marmos91/svnconnector/pkg/connector"
	"github.com/spf13/afero"
)

// session is a connector opened for a single command.
type session struct {
	ctx    context.Context
	conn   *connector.Connector
	cancel context.CancelFunc
	client backend.Client
}

func (s *session) Close() {
	closeBackend(s.client)
	s.cancel()
	_ = logger.Sync()
}

// openSession parses the common flags and opens a connector. The command
// accepts between minArgs and maxArgs positional arguments.
func openSession(fs *flag.FlagSet, args []string, minArgs, maxArgs int) (*session, []string, error) {
	configPath := fs.String("config", "", "Path to the configuration file")
	username := fs.String("user", "", "Repository username (overrides the configuration)")
	password := fs.String("password", "", "Repository password")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if n := fs.NArg(); n < minArgs || n > maxArgs {
		fs.Usage()
		return nil, nil, fmt.Errorf("%s: unexpected number of arguments (%d)", fs.Name(), n)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, nil, err
	}
	// stdout carries command output
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	if err := initLogger(cfg); err != nil {
		return nil, nil, err
	}
	if *username != "" {
		cfg.Credentials.Username = *username
		cfg.Credentials.Password = *password
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	client, err := config.CreateBackend(ctx, &cfg.Backend, afero.NewOsFs())
	if err != nil {
		cancel()
		return nil, nil, err
	}

	conn := config.CreateConnector(cfg, client, connector.Options{Fs: afero.NewOsFs()})
	return &session{ctx: ctx, conn: conn, cancel: cancel, client: client}, fs.Args(), nil
}

// resolve returns the node at id, or the root for "/" and "".
func (s *session) resolve(id string) (*connector.Node, error) {
	if id == "" || id == connector.RootID {
		return s.conn.GetRoot(), nil
	}
	node, err := s.conn.GetNode(s.ctx, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%s: %w", id, backend.ErrNotFound)
	}
	return node, nil
}

func runLs(args []string) error {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	long := fs.Bool("l", false, "Long listing (type and last modification)")
	s, rest, err := openSession(fs, args, 0, 1)
	if err != nil {
		return err
	}
	defer s.Close()

	id := connector.RootID
	if len(rest) == 1 {
		id = rest[0]
	}
	parent, err := s.resolve(id)
	if err != nil {
		return err
	}
	if parent.Type != connector.NodeTypeFolder {
		return fmt.Errorf("%s: not a folder", parent.ID)
	}

	children, err := s.conn.GetChildren(s.ctx, parent)
	if err != nil {
		return err
	}

	if !*long {
		for _, child := range children {
			fmt.Println(child.ID)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, child := range children {
		fmt.Fprintf(w, "%s\t%s\t%s\n", child.Type, formatTime(child.LastModified), child.ID)
	}
	return w.Flush()
}

func runStat(args []string) error {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	s, rest, err := openSession(fs, args, 1, 1)
	if err != nil {
		return err
	}
	defer s.Close()

	node, err := s.resolve(rest[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:            %s\n", node.ID)
	fmt.Printf("Label:         %s\n", node.Label)
	fmt.Printf("Type:          %s\n", node.Type)
	fmt.Printf("Last modified: %s\n", formatTime(node.LastModified))
	fmt.Printf("Connector:     %d\n", node.ConnectorID)

	if node.Type == connector.NodeTypeFolder {
		return nil
	}
	info, err := s.conn.GetContentInformation(s.ctx, node)
	if err != nil {
		return err
	}
	fmt.Printf("Content:       exists=%t\n", info.Exists)
	return nil
}

func runCat(args []string) error {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	nodeType := fs.String("type", "", "Read as this node type (e.g. PNG_FILE for the rendered image)")
	s, rest, err := openSession(fs, args, 1, 1)
	if err != nil {
		return err
	}
	defer s.Close()

	node, err := s.resolve(rest[0])
	if err != nil {
		return err
	}
	if *nodeType != "" {
		t, err := connector.ParseNodeType(*nodeType)
		if err != nil {
			return err
		}
		node.Type = t
	}
	if node.Type == connector.NodeTypeFolder {
		return fmt.Errorf("%s: %w", node.ID, connector.ErrNotAFile)
	}

	rc, err := s.conn.GetContent(s.ctx, node)
	if err != nil {
		return err
	}
	if rc == nil {
		return fmt.Errorf("%s: no %s content", node.ID, node.Type)
	}
	defer rc.Close()

	_, err = io.Copy(os.Stdout, rc)
	return err
}

func runMkdir(args []string) error {
	return create("mkdir", args, func(string) connector.NodeType { return connector.NodeTypeFolder })
}

func runTouch(args []string) error {
	return create("touch", args, func(id string) connector.NodeType {
		return connector.TypeOf(backend.Entry{Path: path.Base(id), Kind: backend.KindFile})
	})
}

func create(name string, args []string, typeOf func(id string) connector.NodeType) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	s, rest, err := openSession(fs, args, 1, 1)
	if err != nil {
		return err
	}
	defer s.Close()

	id := rest[0]
	node, err := s.conn.CreateNode(s.ctx, connector.ParentOf(id), id, path.Base(id), typeOf(id))
	if err != nil {
		return err
	}
	fmt.Printf("Created %s %s\n", node.Type, node.ID)
	return nil
}

func runPut(args []string) error {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	s, rest, err := openSession(fs, args, 2, 2)
	if err != nil {
		return err
	}
	defer s.Close()

	node, err := s.resolve(rest[0])
	if err != nil {
		return err
	}
	if node.Type == connector.NodeTypeFolder {
		return fmt.Errorf("%s: %w", node.ID, connector.ErrNotAFile)
	}

	var src io.Reader = os.Stdin
	if rest[1] != "-" {
		f, err := os.Open(rest[1])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", rest[1], err)
		}
		defer f.Close()
		src = f
	}

	info, err := s.conn.UpdateContent(s.ctx, node, src)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s (last modified %s)\n", node.ID, formatTime(info.LastModified))
	return nil
}

func runRm(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	s, rest, err := openSession(fs, args, 1, 1)
	if err != nil {
		return err
	}
	defer s.Close()

	node, err := s.resolve(rest[0])
	if err != nil {
		return err
	}
	if node.ID == connector.RootID {
		return fmt.Errorf("refusing to delete the root")
	}
	if err := s.conn.DeleteNode(s.ctx, node); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", node.ID)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
