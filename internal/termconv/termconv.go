// Package termconv converts between pkg/quadstore's public, bracket-free
// string Quad representation and the internal RDF term model
// (github.com/cayleygraph/quad values plus internal/provenance.Triple).
// The public API predates the internal term model (it is the teacher's
// original flat Quad{Subject,Predicate,Object,Graph string}), so this is
// the seam where string IRIs become typed terms and back.
package termconv

import (
	"strings"

	"github.com/cayleygraph/quad"

	"github.com/mannyrivera2010/go-quadgit/internal/provenance"
)

// ToSubjectOrGraph parses a public Subject/Predicate/Graph-slot string
// into a term: "_:label" is a blank node, anything else is an IRI.
// Predicates and graph names are never literals.
func ToSubjectOrGraph(s string) quad.Value {
	if strings.HasPrefix(s, "_:") {
		return quad.BNode(strings.TrimPrefix(s, "_:"))
	}
	return quad.IRI(s)
}

// ToObject parses a public Object-slot string into a term. A value
// starting with `"` is a literal, optionally carrying a `^^<datatype>`
// or `@lang` suffix exactly as N-Quads would write it; `_:label` is a
// blank node; anything else is an IRI.
func ToObject(s string) quad.Value {
	if strings.HasPrefix(s, "_:") {
		return quad.BNode(strings.TrimPrefix(s, "_:"))
	}
	if strings.HasPrefix(s, `"`) {
		return parseLiteral(s)
	}
	return quad.IRI(s)
}

func parseLiteral(tok string) quad.Value {
	end := strings.LastIndexByte(tok, '"')
	if end <= 0 {
		return quad.String(strings.Trim(tok, `"`))
	}
	body := tok[1:end]
	suffix := tok[end+1:]
	switch {
	case strings.HasPrefix(suffix, "^^"):
		dt := strings.TrimSuffix(strings.TrimPrefix(suffix, "^^<"), ">")
		return quad.TypedString{Value: quad.String(body), Type: quad.IRI(dt)}
	case strings.HasPrefix(suffix, "@"):
		return quad.LangString{Value: quad.String(body), Lang: suffix[1:]}
	default:
		return quad.String(body)
	}
}

// FromTerm renders a term back into its public string form: the
// inverse of ToSubjectOrGraph/ToObject.
func FromTerm(v quad.Value) string {
	switch t := v.(type) {
	case quad.IRI:
		return string(t)
	case quad.BNode:
		return "_:" + string(t)
	case quad.String:
		return `"` + string(t) + `"`
	case quad.TypedString:
		return `"` + string(t.Value) + `"^^<` + string(t.Type) + `>`
	case quad.LangString:
		return `"` + string(t.Value) + `"@` + t.Lang
	default:
		return ""
	}
}

// Triple converts a (subject, predicate, object) string triple into a
// provenance.Triple.
func Triple(subject, predicate, object string) provenance.Triple {
	return provenance.Triple{
		S: ToSubjectOrGraph(subject),
		P: ToSubjectOrGraph(predicate),
		O: ToObject(object),
	}
}

// FromTriple renders a provenance.Triple back into its public
// (subject, predicate, object) string form.
func FromTriple(t provenance.Triple) (subject, predicate, object string) {
	return FromTerm(t.S), FromTerm(t.P), FromTerm(t.O)
}
