package instance

import (
	"testing"

	"github.com/cayleygraph/quad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mannyrivera2010/go-quadgit/internal/provenance"
)

func TestVirtualGraphQuerySelect(t *testing.T) {
	g := provenance.NewParsedGraph("http://ex.org/g1", []quad.Quad{
		{Subject: quad.IRI("urn:s"), Predicate: quad.IRI("urn:p"), Object: quad.IRI("urn:o"), Label: quad.IRI("http://ex.org/g1")},
	})
	agg := provenance.NewAggregatedGraph([]provenance.GraphLike{g})
	vg := NewVirtualGraph(agg)

	bindings, err := vg.Query("SELECT * WHERE { ?s <urn:p> <urn:o> }")
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "http://ex.org/g1", bindings[0].Graph)
}

func TestVirtualGraphQueryAskStopsAtFirstMatch(t *testing.T) {
	g := provenance.NewParsedGraph("http://ex.org/g1", []quad.Quad{
		{Subject: quad.IRI("urn:s"), Predicate: quad.IRI("urn:p"), Object: quad.IRI("urn:o"), Label: quad.IRI("http://ex.org/g1")},
		{Subject: quad.IRI("urn:s2"), Predicate: quad.IRI("urn:p"), Object: quad.IRI("urn:o"), Label: quad.IRI("http://ex.org/g1")},
	})
	agg := provenance.NewAggregatedGraph([]provenance.GraphLike{g})
	vg := NewVirtualGraph(agg)

	bindings, err := vg.Query("ASK { ?s <urn:p> <urn:o> }")
	require.NoError(t, err)
	assert.Len(t, bindings, 1)
}

func TestVirtualGraphQueryRejectsUpdate(t *testing.T) {
	agg := provenance.NewAggregatedGraph(nil)
	vg := NewVirtualGraph(agg)

	_, err := vg.Query("INSERT DATA { <urn:a> <urn:b> <urn:c> . }")
	assert.Error(t, err)
}

func TestVirtualGraphUpdateParsesDelta(t *testing.T) {
	agg := provenance.NewAggregatedGraph(nil)
	vg := NewVirtualGraph(agg)

	d, err := vg.Update("INSERT DATA { GRAPH <http://ex.org/g1> { <urn:a> <urn:b> <urn:c> . } }")
	require.NoError(t, err)
	assert.Contains(t, d, "http://ex.org/g1")
}

func TestVirtualGraphUpdateRejectsQuery(t *testing.T) {
	agg := provenance.NewAggregatedGraph(nil)
	vg := NewVirtualGraph(agg)

	_, err := vg.Update("SELECT * WHERE { ?s ?p ?o }")
	assert.Error(t, err)
}
