package instance

import (
	"github.com/mannyrivera2010/go-quadgit/internal/delta"
	"github.com/mannyrivera2010/go-quadgit/internal/provenance"
	"github.com/mannyrivera2010/go-quadgit/internal/queryengine"
)

// VirtualGraph is the queryable surface spec §4.5 returns from
// Instance: an AggregatedGraph plus the query/update entry points spec
// §1 treats as delegating to an external evaluator. Here that evaluator
// is internal/queryengine's stand-in (spec §4.7).
type VirtualGraph struct {
	graph *provenance.AggregatedGraph
}

// NewVirtualGraph wraps an already-built AggregatedGraph.
func NewVirtualGraph(g *provenance.AggregatedGraph) *VirtualGraph {
	return &VirtualGraph{graph: g}
}

// Binding is one solution row: the triple that matched plus the graph
// it was found in.
type Binding struct {
	Graph  string
	Triple provenance.Triple
}

// Query runs a SELECT or ASK query's single triple pattern against
// every member graph and returns the matching bindings. For ASK, a
// non-empty result means true.
func (v *VirtualGraph) Query(querystring string) ([]Binding, error) {
	qtype, err := queryengine.Classify(querystring)
	if err != nil {
		return nil, err
	}
	if qtype == queryengine.Update {
		return nil, errNotAQuery
	}

	pattern, err := queryengine.ParseQuery(querystring)
	if err != nil {
		return nil, err
	}

	var out []Binding
	for _, ctxID := range v.graph.Contexts() {
		member := v.graph.Graph(ctxID)
		for _, t := range member.Triples() {
			if pattern.Matches(member.Identifier(), t) {
				out = append(out, Binding{Graph: member.Identifier(), Triple: t})
				if qtype == queryengine.Ask {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

// Update parses an INSERT DATA / DELETE DATA query into a Delta and
// returns it; handing the Delta to the Commit Synthesiser is up to the
// caller. Update takes no versioning flag, never commits, and does not
// mutate the graph itself: VirtualGraph is a read-only view.
func (v *VirtualGraph) Update(querystring string) (delta.Delta, error) {
	qtype, err := queryengine.Classify(querystring)
	if err != nil {
		return nil, err
	}
	if qtype != queryengine.Update {
		return nil, errNotAnUpdate
	}
	return queryengine.ParseUpdate(querystring)
}

type queryError string

func (e queryError) Error() string { return string(e) }

const (
	errNotAQuery   queryError = "instance: not a SELECT/ASK query"
	errNotAnUpdate queryError = "instance: not an INSERT DATA/DELETE DATA update"
)
