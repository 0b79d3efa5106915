package connector

import (
	"strings"

	"github.com/marmos91/svnconnector/pkg/backend"
)

// TypeOf infers the node type of a repository entry.
//
// Anything that is not a plain file maps to NodeTypeFolder. Files map by
// extension: .xml and .bpmn to NodeTypeBPMNFile, .png to NodeTypePNGFile, and
// everything else to NodeTypeAnyFile. The mapping is total.
func TypeOf(entry backend.Entry) NodeType {
	if entry.Kind != backend.KindFile {
		return NodeTypeFolder
	}

	name := entry.Path
	switch {
	case strings.HasSuffix(name, ".xml"), strings.HasSuffix(name, ".bpmn"):
		return NodeTypeBPMNFile
	case strings.HasSuffix(name, ".png"):
		return NodeTypePNGFile
	default:
		return NodeTypeAnyFile
	}
}

// materialize builds the node for a listing entry of the folder parentID.
func (c *Connector) materialize(parentID string, entry backend.Entry) *Node {
	return c.decorate(childID(parentID, entry.Path), entry)
}

// decorate builds the node with identifier id from its repository entry.
func (c *Connector) decorate(id string, entry backend.Entry) *Node {
	return &Node{
		ID:           id,
		Label:        entry.Path,
		Type:         TypeOf(entry),
		LastModified: entry.LastChangedDate,
		ConnectorID:  c.config.ID,
	}
}
