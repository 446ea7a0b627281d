package objectstore

import "time"

// Index is a staging area bound to a base commit, matching spec §6's
// `index(commit_id)` with `.add`, `.stash` and `.commit`.
type Index struct {
	repo         *Repository
	baseCommitID string
	baseTree     Tree
	stash        map[string]string
}

// Add stages path with the given content, returning the blob id the
// content was written under. Repeated Add calls for the same path
// overwrite the staged blob id (last writer wins within one index).
func (idx *Index) Add(path string, data []byte) (string, error) {
	id, err := idx.repo.WriteBlob(data)
	if err != nil {
		return "", err
	}
	idx.stash[path] = id
	return id, nil
}

// Stash returns the path -> new-blob-id map accumulated by Add calls,
// the equivalent of spec §6's `index.stash[path][0]` lookup.
func (idx *Index) Stash() map[string]string {
	out := make(map[string]string, len(idx.stash))
	for k, v := range idx.stash {
		out[k] = v
	}
	return out
}

// Commit builds a tree from the base tree overlaid with staged blobs,
// writes a commit whose only parent is the base commit (no parent when
// the index was opened against the empty tree), moves ref to point at
// it, and returns
// the new commit id. If nothing was staged, NoChangesStaged is
// returned and no commit is written.
func (idx *Index) Commit(message, name, email, ref string) (string, error) {
	return idx.CommitWithParents(message, name, email, ref, idx.parentsSlice())
}

// CommitWithParents is Commit generalised to an explicit parent list,
// used by Merge to write a multi-parent commit.
func (idx *Index) CommitWithParents(message, name, email, ref string, parents []string) (string, error) {
	if len(idx.stash) == 0 {
		return "", ErrNoChangesStaged
	}

	newTree := make(Tree, len(idx.baseTree)+len(idx.stash))
	for k, v := range idx.baseTree {
		newTree[k] = v
	}
	for k, v := range idx.stash {
		newTree[k] = v
	}

	treeHash, err := idx.repo.writeTree(newTree)
	if err != nil {
		return "", err
	}

	now := time.Now()
	author := Author{Name: name, Email: email}
	commit, err := idx.repo.WriteCommit(parents, treeHash, author, author, now, now, message)
	if err != nil {
		return "", err
	}
	if ref != "" {
		if err := idx.repo.SetReference(ref, commit.ID); err != nil {
			return "", err
		}
	}
	return commit.ID, nil
}

func (idx *Index) parentsSlice() []string {
	if idx.baseCommitID == "" {
		return nil
	}
	return []string{idx.baseCommitID}
}

// ErrNoChangesStaged is returned by Commit when no blob was staged; the
// caller should treat it identically to an empty delta (spec §7).
var ErrNoChangesStaged = errNoChangesStaged{}

type errNoChangesStaged struct{}

func (errNoChangesStaged) Error() string { return "objectstore: no changes staged" }
