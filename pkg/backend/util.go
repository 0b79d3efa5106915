package backend

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

// URLPath returns the cleaned, slash-rooted path component of a repository
// URL. "scheme://host/a/b/" yields "/a/b"; an empty path yields "/".
func URLPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return CleanPath(p), nil
}

// CleanPath normalizes a repository path to a slash-rooted form without a
// trailing slash (except for the root itself).
func CleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
