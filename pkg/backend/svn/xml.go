package svn

import (
	"encoding/xml"
	"fmt"
	"path"
	"time"

	"github.com/marmos91/svnconnector/pkg/backend"
)

type xmlCommit struct {
	Revision int64  `xml:"revision,attr"`
	Author   string `xml:"author"`
	Date     string `xml:"date"`
}

type xmlListEntry struct {
	Kind   string    `xml:"kind,attr"`
	Name   string    `xml:"name"`
	Size   int64     `xml:"size"`
	Commit xmlCommit `xml:"commit"`
}

type xmlLists struct {
	Lists []struct {
		Path    string         `xml:"path,attr"`
		Entries []xmlListEntry `xml:"entry"`
	} `xml:"list"`
}

type xmlInfo struct {
	Entries []struct {
		Kind     string    `xml:"kind,attr"`
		Path     string    `xml:"path,attr"`
		Revision int64     `xml:"revision,attr"`
		URL      string    `xml:"url"`
		Commit   xmlCommit `xml:"commit"`
	} `xml:"entry"`
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid svn date %q: %w", s, err)
	}
	return t, nil
}

func parseList(out []byte) ([]backend.Entry, error) {
	var doc xmlLists
	if err := xml.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse svn list output: %w", err)
	}

	entries := make([]backend.Entry, 0)
	for _, list := range doc.Lists {
		for _, e := range list.Entries {
			date, err := parseDate(e.Commit.Date)
			if err != nil {
				return nil, err
			}
			entries = append(entries, backend.Entry{
				Path:            e.Name,
				Kind:            backend.ParseKind(e.Kind),
				Size:            e.Size,
				Revision:        backend.Revision(e.Commit.Revision),
				Author:          e.Commit.Author,
				LastChangedDate: date,
			})
		}
	}
	return entries, nil
}

func parseInfo(out []byte, url string) (*backend.Entry, error) {
	var doc xmlInfo
	if err := xml.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse svn info output: %w", err)
	}
	if len(doc.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, url)
	}

	e := doc.Entries[0]
	date, err := parseDate(e.Commit.Date)
	if err != nil {
		return nil, err
	}

	name := e.Path
	if name == "" {
		name = path.Base(url)
	}
	return &backend.Entry{
		Path:            name,
		Kind:            backend.ParseKind(e.Kind),
		Revision:        backend.Revision(e.Commit.Revision),
		Author:          e.Commit.Author,
		LastChangedDate: date,
	}, nil
}
