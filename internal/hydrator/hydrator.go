// Package hydrator implements the Hydrator component (C4): sync_all(),
// the explicit-stack commit DAG walk, and per-commit provenance
// emission (spec §4.4), grounded on quit/core.py's
// Queryable.{syncAll,traverse,syncSingle,changeset}.
package hydrator

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cayleygraph/quad"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mannyrivera2010/go-quadgit/internal/cache"
	"github.com/mannyrivera2010/go-quadgit/internal/commitview"
	"github.com/mannyrivera2010/go-quadgit/internal/config"
	"github.com/mannyrivera2010/go-quadgit/internal/delta"
	"github.com/mannyrivera2010/go-quadgit/internal/instance"
	"github.com/mannyrivera2010/go-quadgit/internal/logging"
	"github.com/mannyrivera2010/go-quadgit/internal/nquads"
	"github.com/mannyrivera2010/go-quadgit/internal/objectstore"
	"github.com/mannyrivera2010/go-quadgit/internal/provenance"
)

// Hydrator walks the commit DAG and materialises PROV/QUIT provenance
// for every commit not already hydrated.
type Hydrator struct {
	repo    *objectstore.Repository
	cfg     config.Config
	blobs   *cache.BlobCache
	commits *cache.CommitCache
	store   *provenance.Store
	builder *instance.Builder
	logger  zerolog.Logger
}

// New returns a Hydrator. builder is the Instance Builder (C5's read
// half) used to compute the before/after instances a delta is diffed
// from when the caller doesn't supply one.
func New(repo *objectstore.Repository, cfg config.Config, blobs *cache.BlobCache, commits *cache.CommitCache, store *provenance.Store, builder *instance.Builder) *Hydrator {
	return &Hydrator{repo: repo, cfg: cfg, blobs: blobs, commits: commits, store: store, builder: builder, logger: logging.WithComponent("hydrator")}
}

// alreadyHydrated implements spec §4.4's already_hydrated(id): the
// provenance store holds some quad about the commit's canonical IRI in
// the default context.
func (h *Hydrator) alreadyHydrated(commitID string) bool {
	return h.store.HasSubject(provenance.DefaultContext, provenance.QUIT("commit-"+commitID))
}

// Rebuild wipes every provenance context and replays SyncAll. No CLI
// command calls it.
func (h *Hydrator) Rebuild() error {
	h.logger.Info().Msg("rebuild: clearing provenance contexts")
	for _, c := range h.store.Contexts() {
		h.store.RemoveContext(c)
	}
	if err := h.SyncAll(); err != nil {
		h.logger.Error().Err(err).Msg("rebuild: sync_all replay failed")
		return err
	}
	return nil
}

// SyncAll walks every branch and tag, hydrating every reachable commit
// not yet synced (spec §4.4's sync_all entry point).
func (h *Hydrator) SyncAll() error {
	seen := map[string]struct{}{}

	var roots []objectstore.Reference
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		refs, err := h.repo.ListReferences(prefix)
		if err != nil {
			h.logger.Error().Err(err).Str("prefix", prefix).Msg("sync_all: failed to list references")
			return err
		}
		roots = append(roots, refs...)
	}

	hydrated := 0
	for _, ref := range roots {
		commit, err := h.repo.ReadCommit(ref.Hash)
		if err != nil {
			h.logger.Error().Err(err).Str("ref", ref.Name).Msg("sync_all: failed to read ref head")
			return err
		}
		list, err := h.traverse(commit, seen)
		if err != nil {
			h.logger.Error().Err(err).Str("ref", ref.Name).Msg("sync_all: traverse failed")
			return err
		}
		// The returned list is reverse hydration order; pop from the
		// end so every commit's parents are hydrated first.
		for i := len(list) - 1; i >= 0; i-- {
			if err := h.SyncSingle(list[i], nil); err != nil {
				return err
			}
			hydrated++
		}
	}
	h.logger.Info().Int("hydrated", hydrated).Msg("sync_all complete")
	return nil
}

type pendingMerge struct {
	idx     int
	parents []string
}

// traverse is spec §4.4's traverse(commit, seen): each first-parent
// chain is walked in a loop, and every extra parent of a merge is walked
// by a recursive traverse call whose result is spliced back in. There is
// no explicit work stack, so recursion depth grows with the nesting of
// merges (not with the length of first-parent history).
func (h *Hydrator) traverse(start *objectstore.Commit, seen map[string]struct{}) ([]*objectstore.Commit, error) {
	var list []*objectstore.Commit
	var merges []pendingMerge

	cur := start
	for {
		if _, ok := seen[cur.ID]; ok {
			break
		}
		seen[cur.ID] = struct{}{}
		if h.alreadyHydrated(cur.ID) {
			break
		}
		list = append(list, cur)

		parents := cur.Parents
		if len(parents) == 0 {
			break
		}
		if len(parents) > 1 {
			merges = append(merges, pendingMerge{idx: len(list), parents: parents[1:]})
		}
		next, err := h.repo.ReadCommit(parents[0])
		if err != nil {
			return nil, err
		}
		cur = next
	}

	// Splice in merge branches in reverse, preserving first-parent
	// contiguity: processing higher indices first keeps lower splice
	// points stable.
	for i := len(merges) - 1; i >= 0; i-- {
		m := merges[i]
		for _, parentID := range m.parents {
			parentCommit, err := h.repo.ReadCommit(parentID)
			if err != nil {
				return nil, err
			}
			sub, err := h.traverse(parentCommit, seen)
			if err != nil {
				return nil, err
			}
			list = spliceInsert(list, m.idx, sub)
		}
	}
	return list, nil
}

// spliceInsert inserts ins at idx within list, equivalent to Python's
// list[idx:idx] = ins.
func spliceInsert(list []*objectstore.Commit, idx int, ins []*objectstore.Commit) []*objectstore.Commit {
	out := make([]*objectstore.Commit, 0, len(list)+len(ins))
	out = append(out, list[:idx]...)
	out = append(out, ins...)
	out = append(out, list[idx:]...)
	return out
}

// SyncSingle hydrates a single commit if it isn't already hydrated. d,
// when non-nil, is used directly instead of being recomputed by diffing
// instances (spec §4.5: "why pass delta back into hydration").
func (h *Hydrator) SyncSingle(commit *objectstore.Commit, d delta.Delta) error {
	if h.alreadyHydrated(commit.ID) {
		return nil
	}
	commitLogger := logging.WithCommit(commit.ID)
	if err := h.changeset(commit, d); err != nil {
		commitLogger.Error().Err(err).Msg("hydration failed")
		return err
	}
	commitLogger.Debug().Msg("hydrated")
	return nil
}

// changeset is spec §4.4's per-commit hydration: it emits PROV/QUIT
// metadata about the commit itself, the graph-level delta, and the
// private entity descriptions for every exposed graph context.
func (h *Hydrator) changeset(commit *objectstore.Commit, d delta.Delta) error {
	persistence := h.cfg.HasFeature(config.Persistence)
	provenanceOn := h.cfg.HasFeature(config.Provenance)
	if !persistence && !provenanceOn {
		return nil
	}

	commitURI := provenance.QUIT("commit-" + commit.ID)

	if provenanceOn {
		if err := h.emitCommitMetadata(commit, commitURI, d); err != nil {
			return err
		}
	}

	if err := h.emitEntities(commit, commitURI, persistence, provenanceOn); err != nil {
		return err
	}
	return nil
}

// ensureRoleDeclarations emits the two fixed Role declarations once per
// store (`quit:Author a prov:Role`, `quit:Committer a prov:Role`),
// matching core.py's changeset() placing them ahead of the per-commit
// metadata whenever Feature.Provenance is on. The store itself doesn't
// dedupe, so this checks for their prior presence instead of relying on
// set semantics.
func (h *Hydrator) ensureRoleDeclarations() {
	if h.store.HasSubject(provenance.DefaultContext, provenance.QUIT("Author")) {
		return
	}
	h.store.Add(provenance.DefaultContext, provenance.Triple{S: provenance.QUIT("Author"), P: provenance.RDFType, O: provenance.PROV("Role")})
	h.store.Add(provenance.DefaultContext, provenance.Triple{S: provenance.QUIT("Committer"), P: provenance.RDFType, O: provenance.PROV("Role")})
}

func (h *Hydrator) emitCommitMetadata(commit *objectstore.Commit, commitURI quad.IRI, d delta.Delta) error {
	g := h.store

	h.ensureRoleDeclarations()

	g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.RDFType, O: provenance.PROV("Activity")})

	headers, body := commit.Headers()
	if src, ok := headers["Source"]; ok {
		g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.RDFType, O: provenance.QUIT("Import")})
		g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.QUIT("dataSource"), O: quad.String(strings.TrimSpace(src))})
	}
	if q, ok := headers["Query"]; ok {
		g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.RDFType, O: provenance.QUIT("Transformation")})
		g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.QUIT("query"), O: quad.String(strings.TrimSpace(q))})
	}

	g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.QUIT("hex"), O: quad.String(commit.ID)})
	g.Add(provenance.DefaultContext, provenance.Triple{
		S: commitURI, P: provenance.PROV("startedAtTime"),
		O: quad.TypedString{Value: quad.String(commit.AuthorTime.UTC().Format(time.RFC3339)), Type: provenance.XSD("dateTime")},
	})
	g.Add(provenance.DefaultContext, provenance.Triple{
		S: commitURI, P: provenance.PROV("endedAtTime"),
		O: quad.TypedString{Value: quad.String(commit.CommitTime.UTC().Format(time.RFC3339)), Type: provenance.XSD("dateTime")},
	})
	g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.RDFS("comment"), O: quad.String(strings.TrimSpace(body))})

	author := commit.Author()
	authorURI := provenance.QUIT("user-" + emailHash(author.Email))
	g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.PROV("wasAssociatedWith"), O: authorURI})
	g.Add(provenance.DefaultContext, provenance.Triple{S: authorURI, P: provenance.RDFType, O: provenance.PROV("Agent")})
	g.Add(provenance.DefaultContext, provenance.Triple{S: authorURI, P: provenance.RDFS("label"), O: quad.String(author.Name)})
	g.Add(provenance.DefaultContext, provenance.Triple{S: authorURI, P: provenance.FOAF("mbox"), O: quad.String(author.Email)})

	qAuthor := quad.BNode(uuid.New().String())
	g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.PROV("qualifiedAssociation"), O: qAuthor})
	g.Add(provenance.DefaultContext, provenance.Triple{S: qAuthor, P: provenance.RDFType, O: provenance.PROV("Association")})
	g.Add(provenance.DefaultContext, provenance.Triple{S: qAuthor, P: provenance.PROV("agent"), O: authorURI})

	committer := commit.Committer()
	if committer.Name != author.Name {
		committerURI := provenance.QUIT("user-" + emailHash(committer.Email))
		g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.PROV("wasAssociatedWith"), O: committerURI})
		g.Add(provenance.DefaultContext, provenance.Triple{S: committerURI, P: provenance.RDFType, O: provenance.PROV("Agent")})
		g.Add(provenance.DefaultContext, provenance.Triple{S: committerURI, P: provenance.RDFS("label"), O: quad.String(committer.Name)})
		g.Add(provenance.DefaultContext, provenance.Triple{S: committerURI, P: provenance.FOAF("mbox"), O: quad.String(committer.Email)})

		qCommitter := quad.BNode(uuid.New().String())
		g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.PROV("qualifiedAssociation"), O: qCommitter})
		g.Add(provenance.DefaultContext, provenance.Triple{S: qCommitter, P: provenance.RDFType, O: provenance.PROV("Association")})
		// TODO: the committer association's agent is set to the author
		// IRI here, not the committer's. This looks wrong but is a
		// faithful transcription of the upstream behaviour (spec §9
		// Open Question 1); do not "fix" it without sign-off.
		g.Add(provenance.DefaultContext, provenance.Triple{S: qCommitter, P: provenance.PROV("agent"), O: authorURI})
		g.Add(provenance.DefaultContext, provenance.Triple{S: qCommitter, P: provenance.PROV("role"), O: provenance.QUIT("Committer")})
		g.Add(provenance.DefaultContext, provenance.Triple{S: qAuthor, P: provenance.PROV("role"), O: provenance.QUIT("Author")})
	} else {
		g.Add(provenance.DefaultContext, provenance.Triple{S: qAuthor, P: provenance.PROV("role"), O: provenance.QUIT("Committer")})
	}

	for _, parent := range commit.Parents {
		g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.QUIT("preceedingCommit"), O: provenance.QUIT("commit-" + parent)})
	}

	if d == nil {
		after, err := h.builder.Instance(commit.ID, true)
		if err != nil {
			return err
		}
		var beforeSnap map[string][]provenance.Triple
		if len(commit.Parents) > 0 {
			before, err := h.builder.Instance(commit.Parents[0], true)
			if err != nil {
				return err
			}
			beforeSnap = before.Snapshot()
		}
		d = delta.Diff(beforeSnap, after.Snapshot())
	}

	graphURIs := make([]string, 0, len(d))
	for gURI := range d {
		graphURIs = append(graphURIs, gURI)
	}
	sort.Strings(graphURIs)

	for index, graphURI := range graphURIs {
		updateURI := provenance.QUIT(fmt.Sprintf("update-%s-%d", commit.ID, index))
		g.Add(provenance.DefaultContext, provenance.Triple{S: updateURI, P: provenance.QUIT("graph"), O: quad.IRI(graphURI)})
		g.Add(provenance.DefaultContext, provenance.Triple{S: commitURI, P: provenance.QUIT("updates"), O: updateURI})

		for _, cs := range d[graphURI] {
			opURI := provenance.QUIT(string(cs.Op) + "-" + commit.ID)
			g.Add(provenance.DefaultContext, provenance.Triple{S: updateURI, P: provenance.QUIT(string(cs.Op)), O: opURI})
			g.AddN(string(opURI), cs.Triples)
		}
	}
	return nil
}

func (h *Hydrator) emitEntities(commit *objectstore.Commit, commitURI quad.IRI, persistence, provenanceOn bool) error {
	entries, err := commitview.List(h.repo, commit.ID, h.cfg)
	if err != nil {
		return err
	}
	configuredGraphs := config.ConfiguredGraphSet(h.cfg)

	for _, e := range entries {
		entry, ok := h.blobs.Get(e.BlobID)
		if !ok {
			declared := h.cfg.GraphURIForFile(basename(e.Path))
			view, err := nquads.NewBlobView(e.Path, e.Content, declared, configuredGraphs)
			if err != nil {
				return err
			}
			entry.View = view
			entry.Graphs = view.Graphs()
			h.blobs.Set(e.BlobID, entry)
		}

		quads, err := entry.View.Quads()
		if err != nil {
			return err
		}

		graphURIs := make([]string, 0, len(entry.Graphs))
		for gURI := range entry.Graphs {
			graphURIs = append(graphURIs, gURI)
		}
		sort.Strings(graphURIs)

		for index, graphURI := range graphURIs {
			privateURI := provenance.QUIT(fmt.Sprintf("graph-%s-%d", e.BlobID, index))
			h.store.Add(provenance.DefaultContext, provenance.Triple{S: privateURI, P: provenance.RDFType, O: provenance.PROV("Entity")})
			h.store.Add(provenance.DefaultContext, provenance.Triple{S: privateURI, P: provenance.PROV("specializationOf"), O: quad.IRI(graphURI)})
			h.store.Add(provenance.DefaultContext, provenance.Triple{S: privateURI, P: provenance.PROV("wasGeneratedBy"), O: commitURI})

			if persistence {
				pg := provenance.NewParsedGraph(graphURI, quads)
				h.store.AddN(string(privateURI), pg.Triples())
			}
		}
	}
	return nil
}

func basename(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// emailHash derives the author-agent IRI local name from the content
// hash of an e-mail address, not the name (spec §4.4).
func emailHash(email string) string {
	sum := sha1.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}
