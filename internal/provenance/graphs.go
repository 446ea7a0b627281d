package provenance

import "github.com/cayleygraph/quad"

// GraphLike is anything that can present itself as a named graph of
// triples: the raw parsed context of a blob, or a RewriteGraph
// projecting a private store context under its logical identifier.
type GraphLike interface {
	Identifier() string
	Triples() []Triple
}

// ParsedGraph is the raw graph context parsed straight out of a blob,
// used when Persistence is disabled or the caller passed force=true to
// Instance (spec §4.5: "the raw parsed graph from the BlobView").
type ParsedGraph struct {
	IRI      string
	triples  []Triple
}

// NewParsedGraph builds a ParsedGraph from every (s, p, o) triple whose
// quad belongs to graphIRI.
func NewParsedGraph(graphIRI string, quads []quad.Quad) *ParsedGraph {
	var triples []Triple
	for _, q := range quads {
		if label, ok := q.Label.(quad.IRI); ok && string(label) == graphIRI {
			triples = append(triples, Triple{S: q.Subject, P: q.Predicate, O: q.Object})
		}
	}
	return &ParsedGraph{IRI: graphIRI, triples: triples}
}

// Identifier implements GraphLike.
func (g *ParsedGraph) Identifier() string { return g.IRI }

// Triples implements GraphLike.
func (g *ParsedGraph) Triples() []Triple { return g.triples }

// RewriteGraph presents the triples stored in the provenance Store
// under internalContext as if they belonged to externalIRI: "present
// graph X as if under identifier Y" (spec §9), a pure projection, not a
// storage type. It translates the context slot on read; writers keep
// using internalContext directly via the Store.
type RewriteGraph struct {
	store           *Store
	internalContext string
	externalIRI     string
}

// NewRewriteGraph builds the adapter.
func NewRewriteGraph(store *Store, internalContext, externalIRI string) *RewriteGraph {
	return &RewriteGraph{store: store, internalContext: internalContext, externalIRI: externalIRI}
}

// Identifier implements GraphLike, returning the logical (external)
// graph IRI rather than the internal storage context.
func (g *RewriteGraph) Identifier() string { return g.externalIRI }

// Triples implements GraphLike by reading from the internal context.
func (g *RewriteGraph) Triples() []Triple {
	return g.store.Quads(g.internalContext)
}

// AggregatedGraph is a read-only union of member graphs: the
// InMemoryAggregatedGraph of spec §9.
type AggregatedGraph struct {
	members []GraphLike
}

// NewAggregatedGraph builds the union over members.
func NewAggregatedGraph(members []GraphLike) *AggregatedGraph {
	return &AggregatedGraph{members: members}
}

// Quads materialises every member's triples as quads labelled by the
// member's own Identifier(), concatenated across all members.
func (a *AggregatedGraph) Quads() []quad.Quad {
	var out []quad.Quad
	for _, m := range a.members {
		label := quad.IRI(m.Identifier())
		for _, t := range m.Triples() {
			out = append(out, quad.Quad{Subject: t.S, Predicate: t.P, Object: t.O, Label: label})
		}
	}
	return out
}

// Contexts returns the identifiers of every member graph.
func (a *AggregatedGraph) Contexts() []string {
	out := make([]string, 0, len(a.members))
	for _, m := range a.members {
		out = append(out, m.Identifier())
	}
	return out
}

// Graph returns the member with the given identifier, or nil.
func (a *AggregatedGraph) Graph(iri string) GraphLike {
	for _, m := range a.members {
		if m.Identifier() == iri {
			return m
		}
	}
	return nil
}
