// Package commitview implements the Commit View component (C2): given a
// commit id, enumerate the blobs relevant to the configured file->graph
// map.
package commitview

import (
	"github.com/mannyrivera2010/go-quadgit/internal/config"
	"github.com/mannyrivera2010/go-quadgit/internal/objectstore"
)

// Entry is a single relevant file in a commit's tree.
type Entry struct {
	Path    string
	BlobID  string
	Content []byte
}

// List walks commitID's tree (there is no nesting to recurse into; see
// objectstore.Tree) and returns every entry whose basename is
// configured, sorted by path. Order is not semantically significant
// (spec §4.2) but sorting makes the result reproducible for callers
// that care, such as the Hydrator and the Commit Synthesiser.
func List(repo *objectstore.Repository, commitID string, cfg config.Config) ([]Entry, error) {
	allowed := config.ConfiguredFiles(cfg)
	treeEntries, err := repo.Entries(commitID, allowed)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(treeEntries))
	for _, te := range treeEntries {
		content, err := repo.ReadBlob(te.BlobID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Path: te.Path, BlobID: te.BlobID, Content: content})
	}
	return entries, nil
}
