package connector

import (
	"fmt"
	"strings"
	"time"
)

// NodeType classifies a node of the logical document tree.
//
// The type is never stored: it is recomputed from the backend kind and the
// file name every time a node is read (see TypeOf).
type NodeType int

const (
	NodeTypeUnspecified NodeType = iota
	NodeTypeFolder
	NodeTypeBPMNFile
	NodeTypePNGFile
	NodeTypeAnyFile
)

var nodeTypeNames = map[NodeType]string{
	NodeTypeUnspecified: "UNSPECIFIED",
	NodeTypeFolder:      "FOLDER",
	NodeTypeBPMNFile:    "BPMN_FILE",
	NodeTypePNGFile:     "PNG_FILE",
	NodeTypeAnyFile:     "ANY_FILE",
}

func (t NodeType) String() string {
	if name, ok := nodeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// ParseNodeType maps a type name ("FOLDER", "bpmn_file", ...) onto a NodeType.
func ParseNodeType(s string) (NodeType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range nodeTypeNames {
		if name == upper {
			return t, nil
		}
	}
	return NodeTypeUnspecified, fmt.Errorf("unknown node type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t NodeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *NodeType) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Node is an entry of the logical document tree exposed by the connector.
//
// Nodes are built per call and never cached: no Node outlives the operation
// that produced it.
type Node struct {
	// ID is the slash-delimited logical path, rooted at "/".
	ID string `json:"id"`

	// Label is the last path segment as reported by the repository.
	Label string `json:"label"`

	// Type is derived from the repository kind and the file name.
	Type NodeType `json:"type"`

	// LastModified is the date of the last committed change.
	LastModified time.Time `json:"lastModified"`

	// ConnectorID is the id of the configuration that produced the node.
	ConnectorID int64 `json:"connectorId"`
}

// ContentInformation is a lightweight freshness descriptor for a node's
// content. A zero LastModified means the timestamp is unknown.
type ContentInformation struct {
	Exists       bool      `json:"exists"`
	LastModified time.Time `json:"lastModified,omitempty"`
}

// NotFound returns the canonical "no such resource" content information.
func NotFound() ContentInformation {
	return ContentInformation{}
}

// IsNotFound reports whether ci is the "no such resource" sentinel.
func (ci ContentInformation) IsNotFound() bool {
	return !ci.Exists
}

// Configuration keys understood by Init.
const (
	ConfigKeyRepositoryPath     = "repositoryPath"
	ConfigKeyTemporaryFileStore = "temporaryFileStore"
)

// Configuration is the connector configuration as handed over by the hosting
// application. It is read-only from the connector's perspective.
type Configuration struct {
	// ID identifies the configuration; copied onto every produced Node.
	ID int64

	// Label is the human-readable connector name.
	Label string

	// Properties holds the string-keyed settings (repositoryPath,
	// temporaryFileStore).
	Properties map[string]string
}

// Operation names, used in errors, metrics and the Operations table.
const (
	OpLogin                 = "login"
	OpGetRoot               = "getRoot"
	OpGetChildren           = "getChildren"
	OpGetNode               = "getNode"
	OpCreateNode            = "createNode"
	OpDeleteNode            = "deleteNode"
	OpUpdateContent         = "updateContent"
	OpGetContent            = "getContent"
	OpGetContentInformation = "getContentInformation"
)

// OperationTraits declares how the hosting application may invoke an operation.
type OperationTraits struct {
	// Threadsafe operations may be invoked concurrently without extra
	// synchronization by the caller.
	Threadsafe bool

	// Secured operations require an authenticated caller.
	Secured bool
}

// Operations declares the traits of every connector operation.
var Operations = map[string]OperationTraits{
	OpLogin:                 {Threadsafe: true},
	OpGetRoot:               {Secured: true},
	OpGetChildren:           {Threadsafe: true, Secured: true},
	OpGetNode:               {Threadsafe: true, Secured: true},
	OpCreateNode:            {Threadsafe: true, Secured: true},
	OpDeleteNode:            {Threadsafe: true, Secured: true},
	OpUpdateContent:         {Threadsafe: true, Secured: true},
	OpGetContent:            {Threadsafe: true, Secured: true},
	OpGetContentInformation: {Threadsafe: true, Secured: true},
}
