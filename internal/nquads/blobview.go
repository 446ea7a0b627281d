package nquads

import (
	"strings"

	"github.com/cayleygraph/quad"
)

// BlobView is the Blob View component (C1): a parsed N-Quads blob that
// keeps its content as ordered, byte-exact lines and exposes the set of
// named graphs it carries, filtered against the global configuration.
type BlobView struct {
	Path  string
	lines []string
	graphs map[string]struct{}
	dirty bool
}

// NewBlobView parses raw N-Quads bytes into a BlobView.
//
// declaredForFile is the set of graph URIs the configuration declares
// for this file (graph_uri_for_file); configuredGraphs is the full
// graph_uri_file_map's key set. Per invariant 1, the resulting graph
// set is declaredForFile ∪ (graphs actually present in the content ∩
// configuredGraphs) — graphs parsed from the file that nobody
// configured are discarded.
func NewBlobView(path string, raw []byte, declaredForFile []string, configuredGraphs map[string]struct{}) (*BlobView, error) {
	lines := splitKeepTerminator(raw)

	present := make(map[string]struct{})
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		_, graph, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		present[graph] = struct{}{}
	}

	graphs := make(map[string]struct{}, len(declaredForFile)+len(present))
	for _, g := range declaredForFile {
		graphs[g] = struct{}{}
	}
	for g := range present {
		if _, ok := configuredGraphs[g]; ok {
			graphs[g] = struct{}{}
		}
	}

	return &BlobView{Path: path, lines: lines, graphs: graphs}, nil
}

// splitKeepTerminator splits raw bytes into lines, each retaining its
// original "\n" terminator (the final line keeps none if the blob does
// not end with a newline), and drops blank trailing segments.
func splitKeepTerminator(raw []byte) []string {
	s := string(raw)
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// Graphs returns the set of graph URIs this blob exposes.
func (b *BlobView) Graphs() map[string]struct{} {
	out := make(map[string]struct{}, len(b.graphs))
	for g := range b.graphs {
		out[g] = struct{}{}
	}
	return out
}

// Content returns the ordered line sequence, each line including its
// trailing "\n".
func (b *BlobView) Content() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Bytes concatenates Content() back into the raw blob representation.
func (b *BlobView) Bytes() []byte {
	var sb strings.Builder
	for _, l := range b.lines {
		sb.WriteString(l)
	}
	return []byte(sb.String())
}

// Quads re-parses every non-blank line into a quad.Quad, the shape the
// Instance Builder and Hydrator need to build per-graph triples from a
// blob's content.
func (b *BlobView) Quads() ([]quad.Quad, error) {
	var out []quad.Quad
	for _, line := range b.lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		q, _, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Dirty reports whether AddLine/RemoveLine have mutated this view since
// construction.
func (b *BlobView) Dirty() bool {
	return b.dirty
}

// AddLine appends a line unconditionally and marks the view dirty. line
// must already carry its trailing "\n" (the shape EncodeLine produces).
func (b *BlobView) AddLine(line string) {
	b.lines = append(b.lines, line)
	b.dirty = true
}

// RemoveLine removes the first exact-match occurrence of line. It
// returns false (a no-op) if the line is absent.
func (b *BlobView) RemoveLine(line string) bool {
	for i, l := range b.lines {
		if l == line {
			b.lines = append(b.lines[:i], b.lines[i+1:]...)
			b.dirty = true
			return true
		}
	}
	return false
}
