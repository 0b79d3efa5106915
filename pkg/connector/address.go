package connector

import (
	"fmt"
	"net/url"
	"strings"
)

const slash = "/"

// AddressOf translates a node identifier into a repository URL.
//
// The configured base address and the identifier are joined with exactly one
// separator between them; a resulting trailing double slash is collapsed.
//
// Returns ErrInvalidConfiguration if Init was never called or the
// configuration lacked a usable repositoryPath.
func (c *Connector) AddressOf(id string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrInvalidConfiguration, ConfigKeyRepositoryPath)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("%w: %s %q is not a repository URL", ErrInvalidConfiguration, ConfigKeyRepositoryPath, c.baseURL)
	}

	result := strings.TrimRight(c.baseURL, slash) + slash + strings.TrimLeft(id, slash)
	if strings.HasSuffix(result, "//") {
		result = result[:len(result)-1]
	}
	return result, nil
}

// ParentOf returns the identifier of the folder containing id: everything
// before the last slash, or the empty identifier (repository root) if id
// contains none.
func ParentOf(id string) string {
	idx := strings.LastIndex(id, slash)
	if idx < 0 {
		return ""
	}
	return id[:idx]
}

// childID joins a parent identifier and a path segment with one separator.
func childID(parentID, segment string) string {
	if !strings.HasSuffix(parentID, slash) {
		parentID += slash
	}
	return parentID + segment
}
