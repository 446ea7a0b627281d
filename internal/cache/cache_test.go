package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mannyrivera2010/go-quadgit/internal/nquads"
)

func TestBlobCacheUnboundedGetSetRemove(t *testing.T) {
	c, err := NewBlobCache(0)
	require.NoError(t, err)

	_, ok := c.Get("abc")
	assert.False(t, ok)

	bv, err := nquads.NewBlobView("f.nq", nil, nil, nil)
	require.NoError(t, err)
	entry := BlobEntry{View: bv, Graphs: map[string]struct{}{"g1": {}}}
	c.Set("abc", entry)

	got, ok := c.Get("abc")
	require.True(t, ok)
	assert.Equal(t, entry.Graphs, got.Graphs)

	c.Remove("abc")
	_, ok = c.Get("abc")
	assert.False(t, ok)
}

func TestBlobCacheBoundedEviction(t *testing.T) {
	c, err := NewBlobCache(1)
	require.NoError(t, err)

	c.Set("a", BlobEntry{})
	c.Set("b", BlobEntry{})

	_, ok := c.Get("a")
	assert.False(t, ok, "bounded cache of size 1 should have evicted the first entry")
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestCommitCacheRemoveReturnsStoredSet(t *testing.T) {
	c, err := NewCommitCache(0)
	require.NoError(t, err)

	blobs := map[string]struct{}{"blob1": {}, "blob2": {}}
	c.Set("commit1", blobs)

	removed := c.Remove("commit1")
	assert.Equal(t, blobs, removed)

	_, ok := c.Get("commit1")
	assert.False(t, ok)

	assert.Nil(t, c.Remove("never-set"))
}
