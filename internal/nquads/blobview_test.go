package nquads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<http://ex.org/s1> <http://ex.org/p> <http://ex.org/o1> <http://ex.org/g1> .
<http://ex.org/s2> <http://ex.org/p> <http://ex.org/o2> <http://ex.org/g2> .
`

func TestNewBlobViewFiltersUnconfiguredGraphs(t *testing.T) {
	configured := map[string]struct{}{"http://ex.org/g1": {}}
	bv, err := NewBlobView("data.nq", []byte(fixture), nil, configured)
	require.NoError(t, err)

	graphs := bv.Graphs()
	assert.Contains(t, graphs, "http://ex.org/g1")
	assert.NotContains(t, graphs, "http://ex.org/g2")
}

func TestNewBlobViewUnionsDeclaredForFile(t *testing.T) {
	// g3 is declared for this file but never appears in its content;
	// invariant 1 still exposes it.
	configured := map[string]struct{}{"http://ex.org/g1": {}}
	bv, err := NewBlobView("data.nq", []byte(fixture), []string{"http://ex.org/g3"}, configured)
	require.NoError(t, err)

	graphs := bv.Graphs()
	assert.Contains(t, graphs, "http://ex.org/g1")
	assert.Contains(t, graphs, "http://ex.org/g3")
	assert.NotContains(t, graphs, "http://ex.org/g2")
}

func TestBlobViewBytesRoundTrip(t *testing.T) {
	bv, err := NewBlobView("data.nq", []byte(fixture), nil, map[string]struct{}{
		"http://ex.org/g1": {}, "http://ex.org/g2": {},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte(fixture), bv.Bytes())
	assert.False(t, bv.Dirty())
}

func TestBlobViewAddRemoveLine(t *testing.T) {
	bv, err := NewBlobView("data.nq", []byte(fixture), nil, map[string]struct{}{
		"http://ex.org/g1": {}, "http://ex.org/g2": {},
	})
	require.NoError(t, err)

	newLine := `<http://ex.org/s3> <http://ex.org/p> <http://ex.org/o3> <http://ex.org/g1> .` + "\n"
	bv.AddLine(newLine)
	assert.True(t, bv.Dirty())
	assert.Contains(t, string(bv.Bytes()), "s3")

	removed := bv.RemoveLine(newLine)
	assert.True(t, removed)
	assert.NotContains(t, string(bv.Bytes()), "s3")

	// Removing an absent line is a no-op, not an error.
	assert.False(t, bv.RemoveLine("not present .\n"))
}

func TestBlobViewQuads(t *testing.T) {
	bv, err := NewBlobView("data.nq", []byte(fixture), nil, map[string]struct{}{
		"http://ex.org/g1": {}, "http://ex.org/g2": {},
	})
	require.NoError(t, err)

	quads, err := bv.Quads()
	require.NoError(t, err)
	assert.Len(t, quads, 2)
}

func TestNewBlobViewEmpty(t *testing.T) {
	bv, err := NewBlobView("empty.nq", []byte(""), nil, map[string]struct{}{})
	require.NoError(t, err)
	assert.Empty(t, bv.Content())
	assert.Empty(t, bv.Graphs())
}
