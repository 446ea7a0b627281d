package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mannyrivera2010/go-quadgit/internal/cache"
	"github.com/mannyrivera2010/go-quadgit/internal/config"
	"github.com/mannyrivera2010/go-quadgit/internal/objectstore"
	"github.com/mannyrivera2010/go-quadgit/internal/provenance"
)

func newTestBuilder(t *testing.T, cfg config.Config) (*Builder, *objectstore.Repository) {
	t.Helper()
	repo, err := objectstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	blobs, err := cache.NewBlobCache(0)
	require.NoError(t, err)
	commits, err := cache.NewCommitCache(0)
	require.NoError(t, err)
	store := provenance.NewStore()

	return New(repo, cfg, blobs, commits, store), repo
}

func commitFile(t *testing.T, repo *objectstore.Repository, parent, path string, content []byte) string {
	t.Helper()
	idx, err := repo.NewIndex(parent)
	require.NoError(t, err)
	_, err = idx.Add(path, content)
	require.NoError(t, err)
	id, err := idx.Commit("msg", "a", "a@example.org", "")
	require.NoError(t, err)
	return id
}

func TestInstanceEmptyCommitID(t *testing.T) {
	cfg := &config.Static{}
	b, _ := newTestBuilder(t, cfg)

	agg, err := b.Instance("", false)
	require.NoError(t, err)
	assert.Empty(t, agg.Contexts())
}

func TestInstanceParsedGraphNonPersistent(t *testing.T) {
	cfg := &config.Static{FileGraphs: map[string][]string{"a.nq": {"http://ex.org/g1"}}}
	b, repo := newTestBuilder(t, cfg)

	content := []byte("<urn:s> <urn:p> <urn:o> <http://ex.org/g1> .\n")
	commitID := commitFile(t, repo, "", "a.nq", content)

	agg, err := b.Instance(commitID, false)
	require.NoError(t, err)
	assert.Contains(t, agg.Contexts(), "http://ex.org/g1")
	assert.Len(t, agg.Quads(), 1)
}

func TestInstanceCachesBlobsAcrossCalls(t *testing.T) {
	cfg := &config.Static{FileGraphs: map[string][]string{"a.nq": {"http://ex.org/g1"}}}
	b, repo := newTestBuilder(t, cfg)

	content := []byte("<urn:s> <urn:p> <urn:o> <http://ex.org/g1> .\n")
	commitID := commitFile(t, repo, "", "a.nq", content)

	_, err := b.Instance(commitID, false)
	require.NoError(t, err)

	// Second call must reuse the cached commit->blob set and blob view.
	agg, err := b.Instance(commitID, false)
	require.NoError(t, err)
	assert.Len(t, agg.Quads(), 1)
}

func TestInstanceForceBypassesPersistence(t *testing.T) {
	cfg := &config.Static{
		FileGraphs: map[string][]string{"a.nq": {"http://ex.org/g1"}},
		Features:   map[config.Feature]bool{config.Persistence: true},
	}
	b, repo := newTestBuilder(t, cfg)

	content := []byte("<urn:s> <urn:p> <urn:o> <http://ex.org/g1> .\n")
	commitID := commitFile(t, repo, "", "a.nq", content)

	// force=true must return the raw parsed graph even when
	// Persistence is enabled, since nothing has been written into the
	// provenance store under the rewrite identifier yet.
	agg, err := b.Instance(commitID, true)
	require.NoError(t, err)
	assert.Len(t, agg.Quads(), 1)
}

func TestInstanceIgnoresUnconfiguredFiles(t *testing.T) {
	cfg := &config.Static{}
	b, repo := newTestBuilder(t, cfg)

	commitID := commitFile(t, repo, "", "unrelated.txt", []byte("not n-quads at all"))

	agg, err := b.Instance(commitID, false)
	require.NoError(t, err)
	assert.Empty(t, agg.Contexts())
}
