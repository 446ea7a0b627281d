// Package synth implements the Commit Synthesiser half of C5: commit()
// (spec §4.5 "Commit (write)"), grounded on quit/core.py's
// Queryable.commit / changeset staging. It reads blobs through the
// shared caches that internal/instance fills, and depends on
// internal/hydrator (to re-hydrate the new commit immediately after
// writing it), which is why the read and
// write halves of C5 live in separate packages: the Hydrator itself
// only needs the read half.
package synth

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/mannyrivera2010/go-quadgit/internal/cache"
	"github.com/mannyrivera2010/go-quadgit/internal/config"
	"github.com/mannyrivera2010/go-quadgit/internal/delta"
	"github.com/mannyrivera2010/go-quadgit/internal/hydrator"
	"github.com/mannyrivera2010/go-quadgit/internal/logging"
	"github.com/mannyrivera2010/go-quadgit/internal/nquads"
	"github.com/mannyrivera2010/go-quadgit/internal/objectstore"
)

// Synthesiser turns a Delta into a new commit, staging edited blobs
// through an Index and re-hydrating the result immediately.
type Synthesiser struct {
	repo    *objectstore.Repository
	cfg     config.Config
	blobs   *cache.BlobCache
	commits *cache.CommitCache
	hydra   *hydrator.Hydrator
	logger  zerolog.Logger
}

// New returns a Synthesiser bound to the shared repository, config,
// caches and Hydrator.
func New(repo *objectstore.Repository, cfg config.Config, blobs *cache.BlobCache, commits *cache.CommitCache, hydra *hydrator.Hydrator) *Synthesiser {
	return &Synthesiser{repo: repo, cfg: cfg, blobs: blobs, commits: commits, hydra: hydra, logger: logging.WithComponent("synth")}
}

// Commit applies d against baseCommitID's tree, producing a new commit
// on ref with the given headers and free-form message (spec §4.5
// "Commit (write)"). It returns the empty string, with no error, if d
// is empty (step 1: "no commit").
func (s *Synthesiser) Commit(d delta.Delta, message string, baseCommitID, ref string, headers map[string]string) (string, error) {
	if len(d) == 0 {
		s.logger.Debug().Str("base", baseCommitID).Msg("empty delta, nothing to commit")
		return "", nil
	}

	idx, err := s.repo.NewIndex(baseCommitID)
	if err != nil {
		s.logger.Error().Err(err).Str("base", baseCommitID).Msg("failed to open index")
		return "", err
	}

	baseBlobs := s.commits.Remove(baseCommitID)
	blobsNew := map[string]struct{}{}

	for blobID := range baseBlobs {
		// The caller is expected to have built instance(baseCommitID)
		// (or otherwise warmed the blob cache) before calling Commit;
		// that's what populated baseBlobs in the first place.
		entry, ok := s.blobs.Get(blobID)
		if !ok {
			continue
		}

		changed := false
		for graphURI := range entry.Graphs {
			for _, cs := range d[graphURI] {
				for _, t := range cs.Triples {
					line, err := nquads.EncodeLineForGraph(t.S, t.P, t.O, graphURI)
					if err != nil {
						return "", err
					}
					switch cs.Op {
					case delta.Additions:
						entry.View.AddLine(string(line))
						changed = true
					case delta.Removals:
						if entry.View.RemoveLine(string(line)) {
							changed = true
						}
					}
				}
			}
		}

		if !changed {
			// Not touched by this delta: the blob stays in the new tree
			// under its existing oid (idx was seeded from baseCommitID's
			// tree), so it must still be tracked for the new commit.
			blobsNew[blobID] = struct{}{}
			continue
		}

		newBlobID, err := idx.Add(entry.View.Path, entry.View.Bytes())
		if err != nil {
			return "", err
		}
		s.blobs.Remove(blobID)
		s.blobs.Set(newBlobID, entry)
		blobsNew[newBlobID] = struct{}{}
	}

	sig := s.repo.DefaultSignature()
	fullMessage := objectstore.BuildMessage(headers, message)

	newCommitID, err := idx.Commit(fullMessage, sig.Name, sig.Email, ref)
	if err != nil {
		if errors.Is(err, objectstore.ErrNoChangesStaged) {
			s.logger.Debug().Str("base", baseCommitID).Msg("delta staged nothing, nothing to commit")
			return "", nil
		}
		s.logger.Error().Err(err).Str("base", baseCommitID).Msg("failed to write commit")
		return "", err
	}

	s.commits.Set(newCommitID, blobsNew)

	newCommit, err := s.repo.ReadCommit(newCommitID)
	if err != nil {
		return "", err
	}
	commitLogger := logging.WithCommit(newCommitID)
	if err := s.hydra.SyncSingle(newCommit, d); err != nil {
		commitLogger.Error().Err(err).Msg("re-hydration after commit synthesis failed")
		return "", err
	}
	commitLogger.Info().Str("base", baseCommitID).Msg("commit synthesised")

	return newCommitID, nil
}
