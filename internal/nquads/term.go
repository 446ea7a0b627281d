// Package nquads implements the Blob View component: parsing an N-Quads
// blob into byte-exact lines plus the set of named graphs it declares,
// and line-level editing for commit synthesis.
package nquads

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cayleygraph/quad"
)

// termPattern matches exactly one N-Quads term: an IRI ref, a blank node
// label, or a literal with an optional datatype or language tag.
var termPattern = regexp.MustCompile(`<[^>]*>|_:[A-Za-z0-9_:.-]+|"(?:[^"\\]|\\.)*"(?:\^\^<[^>]*>|@[A-Za-z0-9-]+)?`)

// ErrMalformedLine is returned when a line cannot be parsed into a quad.
// It corresponds to the MalformedBlob error kind of the error handling
// design: fatal for the commit being processed.
type ErrMalformedLine struct {
	Line string
}

func (e *ErrMalformedLine) Error() string {
	return fmt.Sprintf("nquads: malformed line %q", e.Line)
}

// ParseLine parses a single N-Quads line (terminated by " .", with or
// without a trailing newline) into a quad and its graph IRI. The graph
// slot is required: this store only ever deals in quads, never bare
// triples.
func ParseLine(line string) (quad.Quad, string, error) {
	body := strings.TrimRight(line, "\r\n")
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(strings.TrimSpace(body), ".")
	body = strings.TrimSpace(body)

	terms := termPattern.FindAllString(body, -1)
	if len(terms) != 4 {
		return quad.Quad{}, "", &ErrMalformedLine{Line: line}
	}

	s, err := parseTerm(terms[0])
	if err != nil {
		return quad.Quad{}, "", &ErrMalformedLine{Line: line}
	}
	p, err := parseTerm(terms[1])
	if err != nil {
		return quad.Quad{}, "", &ErrMalformedLine{Line: line}
	}
	o, err := parseTerm(terms[2])
	if err != nil {
		return quad.Quad{}, "", &ErrMalformedLine{Line: line}
	}
	g, err := parseTerm(terms[3])
	if err != nil {
		return quad.Quad{}, "", &ErrMalformedLine{Line: line}
	}
	graphIRI, ok := g.(quad.IRI)
	if !ok {
		return quad.Quad{}, "", &ErrMalformedLine{Line: line}
	}

	q := quad.Quad{Subject: s, Predicate: p, Object: o, Label: graphIRI}
	return q, string(graphIRI), nil
}

func parseTerm(tok string) (quad.Value, error) {
	switch {
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return quad.IRI(tok[1 : len(tok)-1]), nil
	case strings.HasPrefix(tok, "_:"):
		return quad.BNode(tok[2:]), nil
	case strings.HasPrefix(tok, "\""):
		return parseLiteral(tok)
	default:
		return nil, fmt.Errorf("nquads: unrecognised term %q", tok)
	}
}

func parseLiteral(tok string) (quad.Value, error) {
	// Split the quoted body from an optional ^^<datatype> or @lang suffix.
	end := strings.LastIndexByte(tok, '"')
	if end <= 0 {
		return nil, fmt.Errorf("nquads: bad literal %q", tok)
	}
	quoted := tok[:end+1]
	suffix := tok[end+1:]
	unquoted := unescapeLiteral(quoted[1 : len(quoted)-1])

	switch {
	case strings.HasPrefix(suffix, "^^"):
		dt := strings.TrimSuffix(strings.TrimPrefix(suffix, "^^<"), ">")
		return quad.TypedString{Value: quad.String(unquoted), Type: quad.IRI(dt)}, nil
	case strings.HasPrefix(suffix, "@"):
		return quad.LangString{Value: quad.String(unquoted), Lang: suffix[1:]}, nil
	default:
		return quad.String(unquoted), nil
	}
}

func unescapeLiteral(body string) string {
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

// EncodeLine is the canonical N-Quads line encoder: the "consumed,
// out-of-scope" dependency of spec §6. It must be stable: the same
// input quad always yields the same bytes, because commit synthesis
// removes lines by exact byte match. See DESIGN.md for why this is
// hand-written rather than delegated to a pulled-in serializer.
func EncodeLine(q quad.Quad) ([]byte, error) {
	s, err := termToNQuads(q.Subject)
	if err != nil {
		return nil, err
	}
	p, err := termToNQuads(q.Predicate)
	if err != nil {
		return nil, err
	}
	o, err := termToNQuads(q.Object)
	if err != nil {
		return nil, err
	}
	g, err := termToNQuads(q.Label)
	if err != nil {
		return nil, err
	}
	line := s + " " + p + " " + o + " " + g + " .\n"
	return []byte(line), nil
}

// EncodeLineForGraph encodes a bare (subject, predicate, object) triple
// under the given named graph, the shape the Commit Synthesiser uses
// when it encodes triples from a Delta.
func EncodeLineForGraph(s, p, o quad.Value, graphIRI string) ([]byte, error) {
	return EncodeLine(quad.Quad{Subject: s, Predicate: p, Object: o, Label: quad.IRI(graphIRI)})
}

func termToNQuads(v quad.Value) (string, error) {
	switch t := v.(type) {
	case quad.IRI:
		return "<" + string(t) + ">", nil
	case quad.BNode:
		return "_:" + string(t), nil
	case quad.String:
		return "\"" + escapeLiteral(string(t)) + "\"", nil
	case quad.TypedString:
		return "\"" + escapeLiteral(string(t.Value)) + "\"^^<" + string(t.Type) + ">", nil
	case quad.LangString:
		return "\"" + escapeLiteral(string(t.Value)) + "\"@" + t.Lang, nil
	default:
		return "", fmt.Errorf("nquads: unsupported term kind %T", v)
	}
}

func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}
