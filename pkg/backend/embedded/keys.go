package embedded

import "fmt"

// Database Key Namespace
// ======================
//
// Prefix   Key Format        Value
// ===================================================
// "n:"     n:<path>          nodeRecord (JSON)
// "c:"     c:<path>          file content (raw bytes)
// "r:"     r:head            head revision (uint64, big endian)
// "l:"     l:<rev>           LogEntry (JSON), rev as 16 hex digits
//
// Paths are slash-rooted and cleaned ("/", "/procs", "/procs/order.bpmn"),
// so the children of a folder are a prefix scan over "n:<folder>/".

const (
	prefixNode    = "n:"
	prefixContent = "c:"
)

var keyHead = []byte("r:head")

func keyLog(rev int64) []byte {
	return []byte(fmt.Sprintf("l:%016x", rev))
}

func keyNode(p string) []byte {
	return []byte(prefixNode + p)
}

func keyContent(p string) []byte {
	return []byte(prefixContent + p)
}

// childPrefix returns the prefix shared by the node keys of every descendant
// of folder p.
func childPrefix(prefix, p string) []byte {
	if p == "/" {
		return []byte(prefix + "/")
	}
	return []byte(prefix + p + "/")
}
