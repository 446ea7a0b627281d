// Package objectstore implements the storage layer spec.md treats as an
// external, consumed dependency (§6): a content-addressed, badger-backed
// repository with commits, trees, blobs, branches, tags and a staging
// index. It generalises the teacher's badger object model
// (Commit{Tree,Parents,Author,Message,Timestamp} / Tree map[string]string)
// to multi-parent commits, separate author/committer identities and an
// arbitrary file set per tree.
package objectstore

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Author identifies a commit's author or committer.
type Author struct {
	Name  string
	Email string
}

// Tree maps a repository-relative file path to the blob id holding its
// content. Trees in this store are flat: every entry is keyed by its
// full path (which may contain "/"), so there is no nested tree object
// to walk recursively. A tree may also hold files that are not
// configured N-Quads files (such as the quadstore facade's
// _manifest.json); readers filter entries by basename.
type Tree map[string]string

// commitData is the hashed, stored representation of a commit. The
// commit's own id is derived from this payload, so the id itself is
// never part of it.
type commitData struct {
	Tree           string    `json:"tree"`
	Parents        []string  `json:"parents"`
	AuthorName     string    `json:"author_name"`
	AuthorEmail    string    `json:"author_email"`
	AuthorTime     time.Time `json:"author_time"`
	CommitterName  string    `json:"committer_name"`
	CommitterEmail string    `json:"committer_email"`
	CommitTime     time.Time `json:"commit_time"`
	Message        string    `json:"message"`
}

// Commit is a CommitDescriptor (spec §3): an immutable, content
// addressed point in history.
type Commit struct {
	ID string
	commitData
}

// Author returns the commit's author identity.
func (c *Commit) Author() Author { return Author{Name: c.AuthorName, Email: c.AuthorEmail} }

// Committer returns the commit's committer identity.
func (c *Commit) Committer() Author { return Author{Name: c.CommitterName, Email: c.CommitterEmail} }

// Headers parses the structured "Key: value" / `Key: "multi-line"`
// header block at the top of the message, returning the headers and the
// free-form body that follows the blank line separating them.
func (c *Commit) Headers() (map[string]string, string) {
	return ParseHeaderMessage(c.Message)
}

var headerLineRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*): (.*)$`)

// ParseHeaderMessage splits a commit message of the form described in
// spec §3 ("Key: value" or `Key: "multi-line value"` lines, a blank
// line, then free text) into its headers and body. A message with no
// recognisable header line at its very start has no headers at all;
// the whole message is the body.
func ParseHeaderMessage(raw string) (map[string]string, string) {
	lines := strings.Split(raw, "\n")
	headers := map[string]string{}

	i := 0
	for i < len(lines) {
		line := lines[i]
		if line == "" {
			i++
			break
		}
		m := headerLineRe.FindStringSubmatch(line)
		if m == nil {
			if i == 0 {
				return map[string]string{}, raw
			}
			break
		}
		key, val := m[1], m[2]
		if strings.HasPrefix(val, `"`) {
			valLines := []string{strings.TrimPrefix(val, `"`)}
			i++
			for i < len(lines) && !strings.HasSuffix(lines[i], `"`) {
				valLines = append(valLines, lines[i])
				i++
			}
			if i < len(lines) {
				valLines = append(valLines, strings.TrimSuffix(lines[i], `"`))
				i++
			}
			headers[key] = strings.Join(valLines, "\n")
		} else {
			headers[key] = val
			i++
		}
	}
	return headers, strings.Join(lines[i:], "\n")
}

// BuildMessage is the inverse of ParseHeaderMessage: it concatenates
// "Key: value" lines (one per header, sorted by key for reproducible
// commits), a blank line, then the free-form message.
func BuildMessage(headers map[string]string, message string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sortStrings(keys)

	var out []string
	for _, k := range keys {
		v := headers[k]
		if strings.Contains(v, "\n") {
			out = append(out, k+`: "`+v+`"`)
		} else {
			out = append(out, k+": "+v)
		}
	}
	if len(out) > 0 {
		out = append(out, "")
	}
	out = append(out, message)
	return strings.Join(out, "\n")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func hashBytes(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func marshalCanonical(v interface{}) ([]byte, error) {
	// encoding/json sorts map keys and preserves struct field order, so
	// this is deterministic across calls for equal input.
	return json.Marshal(v)
}
