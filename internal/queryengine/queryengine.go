// Package queryengine is a deliberately thin stand-in for the "assumed
// available" SPARQL evaluator spec.md excludes from scope (§1): string-
// level triage of SELECT/ASK and INSERT DATA/DELETE DATA, grounded on
// quit/quitFiles.py's QueryCheck and splitinformation. It exists so
// internal/instance.VirtualGraph has something to exercise end to end;
// it is not, and is not meant to become, a SPARQL algebra.
package queryengine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/mannyrivera2010/go-quadgit/internal/delta"
	"github.com/mannyrivera2010/go-quadgit/internal/nquads"
	"github.com/mannyrivera2010/go-quadgit/internal/provenance"
)

// QueryType mirrors QueryCheck.getType()'s two-way classification.
type QueryType int

const (
	Select QueryType = iota
	Ask
	Update
)

// ErrUnrecognised is returned when a query string matches neither the
// read nor the write shape this engine understands.
var ErrUnrecognised = fmt.Errorf("queryengine: unrecognised query form")

var (
	selectRe = regexp.MustCompile(`(?is)^\s*SELECT\b`)
	askRe    = regexp.MustCompile(`(?is)^\s*ASK\b`)

	// One triple pattern, optionally wrapped in a GRAPH <iri> { ... }
	// block, the only shape Query() understands.
	patternRe = regexp.MustCompile(`(?is)(?:WHERE\s*)?\{\s*(?:GRAPH\s*<([^>]*)>\s*\{\s*(.*?)\s*\}|(.*?))\s*\}`)
)

// Classify reports whether querystring is a SELECT, an ASK, or an
// update (INSERT DATA / DELETE DATA), the equivalent of QueryCheck's
// try-parseQuery-then-try-parseUpdate dispatch.
func Classify(querystring string) (QueryType, error) {
	switch {
	case selectRe.MatchString(querystring):
		return Select, nil
	case askRe.MatchString(querystring):
		return Ask, nil
	case strings.Contains(strings.ToUpper(querystring), "INSERT DATA"),
		strings.Contains(strings.ToUpper(querystring), "DELETE DATA"):
		return Update, nil
	default:
		return 0, ErrUnrecognised
	}
}

// Pattern is the single (subject, predicate, object, graph) pattern a
// SELECT/ASK query names; nil term fields are unbound variables.
type Pattern struct {
	Subject, Predicate, Object quad.Value
	GraphIRI                   string // empty means the default/any graph
}

// ParseQuery extracts the single triple pattern from a SELECT or ASK
// query's WHERE clause. Variables (tokens starting with "?" or "$") are
// left unbound (nil).
func ParseQuery(querystring string) (Pattern, error) {
	m := patternRe.FindStringSubmatch(querystring)
	if m == nil {
		return Pattern{}, fmt.Errorf("queryengine: no recognisable WHERE clause in %q", querystring)
	}

	graphIRI := m[1]
	body := m[2]
	if body == "" {
		body = m[3]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), ".")

	terms := strings.Fields(body)
	if len(terms) < 3 {
		return Pattern{}, fmt.Errorf("queryengine: expected a (subject, predicate, object) pattern, got %q", body)
	}

	toValue := func(tok string) quad.Value {
		if strings.HasPrefix(tok, "?") || strings.HasPrefix(tok, "$") {
			return nil
		}
		v, _, err := nquads.ParseLine(tok + " " + tok + " " + tok + " <urn:x> .")
		if err != nil {
			return nil
		}
		return v.Subject
	}

	return Pattern{
		Subject:   toValue(terms[0]),
		Predicate: toValue(terms[1]),
		Object:    toValue(terms[2]),
		GraphIRI:  graphIRI,
	}, nil
}

// Matches reports whether t satisfies p, treating a nil field in p as
// an unbound variable.
func (p Pattern) Matches(graphIRI string, t provenance.Triple) bool {
	if p.GraphIRI != "" && p.GraphIRI != graphIRI {
		return false
	}
	if p.Subject != nil && p.Subject != t.S {
		return false
	}
	if p.Predicate != nil && p.Predicate != t.P {
		return false
	}
	if p.Object != nil && p.Object != t.O {
		return false
	}
	return true
}

// ParseUpdate turns an INSERT DATA / DELETE DATA query into a Delta,
// the moral equivalent of quitFiles.py's splitinformation: walk every
// quad line in the data block(s) and bucket it by graph IRI.
func ParseUpdate(querystring string) (delta.Delta, error) {
	out := delta.Delta{}

	if err := collectBlock(querystring, "INSERT DATA", delta.Additions, out); err != nil {
		return nil, err
	}
	if err := collectBlock(querystring, "DELETE DATA", delta.Removals, out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("queryengine: no INSERT DATA / DELETE DATA block found")
	}
	return out, nil
}

// blockBodyRe matches one data block: its braces may enclose GRAPH
// blocks, but nothing nested deeper, so it stops at its own closing brace.
var blockBodyRe = regexp.MustCompile(`(?is)\{((?:[^{}]|\{[^{}]*\})*)\}`)
var graphBlockRe = regexp.MustCompile(`(?is)GRAPH\s*<([^>]*)>\s*\{([^}]*)\}`)

func collectBlock(querystring, keyword string, op delta.Operation, out delta.Delta) error {
	idx := strings.Index(strings.ToUpper(querystring), strings.ToUpper(keyword))
	if idx < 0 {
		return nil
	}
	rest := querystring[idx+len(keyword):]
	m := blockBodyRe.FindStringSubmatch(rest)
	if m == nil {
		return fmt.Errorf("queryengine: %s missing a { ... } block", keyword)
	}
	body := m[1]

	remaining := body
	for _, gm := range graphBlockRe.FindAllStringSubmatch(body, -1) {
		graphIRI, quadsBody := gm[1], gm[2]
		triples, err := parseDataLines(quadsBody, graphIRI)
		if err != nil {
			return err
		}
		appendChangeset(out, graphIRI, op, triples)
		remaining = strings.Replace(remaining, gm[0], "", 1)
	}

	if strings.TrimSpace(remaining) != "" {
		triples, err := parseDataLines(remaining, provenance.DefaultContext)
		if err != nil {
			return err
		}
		if len(triples) > 0 {
			appendChangeset(out, provenance.DefaultContext, op, triples)
		}
	}
	return nil
}

func appendChangeset(out delta.Delta, graphIRI string, op delta.Operation, triples []provenance.Triple) {
	if len(triples) == 0 {
		return
	}
	out[graphIRI] = append(out[graphIRI], delta.Changeset{Op: op, Triples: triples})
}

// parseDataLines parses a sequence of "s p o ." triples (no graph term,
// since the enclosing GRAPH/default block already supplies it) into
// Triples.
func parseDataLines(body, graphIRI string) ([]provenance.Triple, error) {
	var out []provenance.Triple
	for _, stmt := range splitStatements(body) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		q, _, err := nquads.ParseLine(stmt + " <" + graphIRI + "> .")
		if err != nil {
			return nil, err
		}
		out = append(out, provenance.Triple{S: q.Subject, P: q.Predicate, O: q.Object})
	}
	return out, nil
}

// splitStatements splits a SPARQL data block on the "." statement
// terminator, naively (no literal-dot escaping support, consistent with
// this engine's stand-in scope).
func splitStatements(body string) []string {
	return strings.Split(body, ".")
}
