// Package instance implements the read half of the Instance Builder &
// Commit Synthesiser component (C5): instance(commit_id, force) (spec
// §4.5 "Instance (read)"), grounded on quit/core.py's Queryable.instance.
// The write half (commit synthesis) lives in internal/synth, which
// depends on this package and on internal/hydrator; keeping the read
// path here lets the Hydrator depend on it too without an import cycle.
package instance

import (
	"fmt"
	"strings"

	"github.com/mannyrivera2010/go-quadgit/internal/cache"
	"github.com/mannyrivera2010/go-quadgit/internal/commitview"
	"github.com/mannyrivera2010/go-quadgit/internal/config"
	"github.com/mannyrivera2010/go-quadgit/internal/nquads"
	"github.com/mannyrivera2010/go-quadgit/internal/objectstore"
	"github.com/mannyrivera2010/go-quadgit/internal/provenance"
)

// Builder resolves commit ids to read-only aggregated graph views,
// caching parsed blobs and per-commit blob id sets along the way.
type Builder struct {
	repo    *objectstore.Repository
	cfg     config.Config
	blobs   *cache.BlobCache
	commits *cache.CommitCache
	store   *provenance.Store
}

// New returns a Builder bound to the given repository, configuration,
// caches and provenance store. All four are expected to outlive the
// Builder (spec §9: "inject them ... do not expose module-level
// singletons").
func New(repo *objectstore.Repository, cfg config.Config, blobs *cache.BlobCache, commits *cache.CommitCache, store *provenance.Store) *Builder {
	return &Builder{repo: repo, cfg: cfg, blobs: blobs, commits: commits, store: store}
}

// Instance builds the aggregated read view for commitID. The empty
// commitID (no base commit, e.g. the synthesiser staging against an
// empty tree) yields an empty aggregate. force bypasses the persistent
// rewrite view and always returns the raw parsed graph, the shape a
// diff against "what's actually in the blob" needs.
func (b *Builder) Instance(commitID string, force bool) (*provenance.AggregatedGraph, error) {
	if commitID == "" {
		return provenance.NewAggregatedGraph(nil), nil
	}

	blobIDs, ok := b.commits.Get(commitID)
	if !ok {
		var err error
		blobIDs, err = b.resolveBlobs(commitID)
		if err != nil {
			return nil, err
		}
		b.commits.Set(commitID, blobIDs)
	}

	var members []provenance.GraphLike
	for blobID := range blobIDs {
		entry, ok := b.blobs.Get(blobID)
		if !ok {
			return nil, fmt.Errorf("instance: blob %s missing from cache after resolve", blobID)
		}
		quads, err := entry.View.Quads()
		if err != nil {
			return nil, err
		}
		for graphIRI := range entry.Graphs {
			if force || !b.cfg.HasFeature(config.Persistence) {
				members = append(members, provenance.NewParsedGraph(graphIRI, quads))
				continue
			}
			// spec §4.5: "looked up in the store under the internal
			// identifier graph_iri + '-' + blobId". This key scheme is
			// independent of the private_uri the Hydrator mints when it
			// persists the same content (quit:graph-{blobId}-{j}, spec
			// §4.4) — two different subjects for what is conceptually
			// the same graph. Preserved as specified; see DESIGN.md.
			internalIdentifier := graphIRI + "-" + blobID
			members = append(members, provenance.NewRewriteGraph(b.store, internalIdentifier, graphIRI))
		}
	}
	return provenance.NewAggregatedGraph(members), nil
}

// resolveBlobs enumerates commitID's configured tree entries, parsing
// and caching any blob the blob cache doesn't already hold, and returns
// the full set of blob ids the commit exposes.
func (b *Builder) resolveBlobs(commitID string) (map[string]struct{}, error) {
	entries, err := commitview.List(b.repo, commitID, b.cfg)
	if err != nil {
		return nil, err
	}
	configuredGraphs := config.ConfiguredGraphSet(b.cfg)

	blobIDs := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		blobIDs[e.BlobID] = struct{}{}
		if _, cached := b.blobs.Get(e.BlobID); cached {
			continue
		}
		declared := b.cfg.GraphURIForFile(basename(e.Path))
		view, err := nquads.NewBlobView(e.Path, e.Content, declared, configuredGraphs)
		if err != nil {
			return nil, err
		}
		b.blobs.Set(e.BlobID, cache.BlobEntry{View: view, Graphs: view.Graphs()})
	}
	return blobIDs, nil
}

func basename(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
