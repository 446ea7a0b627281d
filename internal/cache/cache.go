// Package cache implements the Fingerprint Cache component (C3): a
// content-addressed blob cache and a commit cache, both LRU-bounded
// with an unbounded fallback mode, mirroring core.py's quit.cache.Cache
// used for self._blobs / self._commits.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mannyrivera2010/go-quadgit/internal/nquads"
)

// BlobEntry is what the blob cache stores per blob id: the parsed
// BlobView and the graph set it exposes (invariant 5 of spec §3: equal
// BlobId implies equal parsed BlobView).
type BlobEntry struct {
	View   *nquads.BlobView
	Graphs map[string]struct{}
}

// BlobCache maps BlobId -> BlobEntry.
type BlobCache struct {
	bounded *lru.Cache[string, BlobEntry]
	plain   map[string]BlobEntry
}

// NewBlobCache creates a blob cache. size <= 0 means unbounded.
func NewBlobCache(size int) (*BlobCache, error) {
	if size <= 0 {
		return &BlobCache{plain: map[string]BlobEntry{}}, nil
	}
	c, err := lru.New[string, BlobEntry](size)
	if err != nil {
		return nil, err
	}
	return &BlobCache{bounded: c}, nil
}

// Get returns the cached entry for id and whether it was present.
func (c *BlobCache) Get(id string) (BlobEntry, bool) {
	if c.bounded != nil {
		return c.bounded.Get(id)
	}
	e, ok := c.plain[id]
	return e, ok
}

// Set populates the cache entry for id.
func (c *BlobCache) Set(id string, e BlobEntry) {
	if c.bounded != nil {
		c.bounded.Add(id, e)
		return
	}
	c.plain[id] = e
}

// Remove invalidates the cache entry for id, e.g. when a blob is about
// to be replaced during commit synthesis.
func (c *BlobCache) Remove(id string) {
	if c.bounded != nil {
		c.bounded.Remove(id)
		return
	}
	delete(c.plain, id)
}

// CommitCache maps CommitId -> set of BlobIds that commit exposes.
// Presence means "we know which blobs this commit exposes"; it does
// not imply the commit has been hydrated into provenance.
type CommitCache struct {
	bounded *lru.Cache[string, map[string]struct{}]
	plain   map[string]map[string]struct{}
}

// NewCommitCache creates a commit cache. size <= 0 means unbounded.
func NewCommitCache(size int) (*CommitCache, error) {
	if size <= 0 {
		return &CommitCache{plain: map[string]map[string]struct{}{}}, nil
	}
	c, err := lru.New[string, map[string]struct{}](size)
	if err != nil {
		return nil, err
	}
	return &CommitCache{bounded: c}, nil
}

// Get returns the blob id set known for commitID.
func (c *CommitCache) Get(commitID string) (map[string]struct{}, bool) {
	if c.bounded != nil {
		return c.bounded.Get(commitID)
	}
	e, ok := c.plain[commitID]
	return e, ok
}

// Set records the blob id set for commitID.
func (c *CommitCache) Set(commitID string, blobs map[string]struct{}) {
	if c.bounded != nil {
		c.bounded.Add(commitID, blobs)
		return
	}
	c.plain[commitID] = blobs
}

// Remove invalidates the entry for commitID, returning the set that was
// removed (or nil if absent), mirroring core.py's
// `self._commits.remove(commit_id) or []` usage in commit synthesis.
func (c *CommitCache) Remove(commitID string) map[string]struct{} {
	blobs, ok := c.Get(commitID)
	if !ok {
		return nil
	}
	if c.bounded != nil {
		c.bounded.Remove(commitID)
	} else {
		delete(c.plain, commitID)
	}
	return blobs
}
