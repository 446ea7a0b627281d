package objectstore

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestWriteReadBlobIdempotent(t *testing.T) {
	r := openTestRepo(t)

	id1, err := r.WriteBlob([]byte("hello"))
	require.NoError(t, err)
	id2, err := r.WriteBlob([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "writing identical content twice must yield the same blob id")

	got, err := r.ReadBlob(id1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestReadBlobMissing(t *testing.T) {
	r := openTestRepo(t)
	_, err := r.ReadBlob("deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteTreeIsContentAddressed(t *testing.T) {
	r := openTestRepo(t)
	id1, err := r.writeTree(Tree{"a.nq": "blob1"})
	require.NoError(t, err)
	id2, err := r.writeTree(Tree{"a.nq": "blob1"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	tree, err := r.ReadTree(id1)
	require.NoError(t, err)
	assert.Equal(t, Tree{"a.nq": "blob1"}, tree)
}

func TestWriteReadCommit(t *testing.T) {
	r := openTestRepo(t)
	treeID, err := r.writeTree(Tree{"a.nq": "blob1"})
	require.NoError(t, err)

	author := Author{Name: "alice", Email: "alice@example.org"}
	now := time.Now()
	c, err := r.WriteCommit(nil, treeID, author, author, now, now, "Initial commit")
	require.NoError(t, err)
	require.NotEmpty(t, c.ID)

	got, err := r.ReadCommit(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Initial commit", got.Message)
	assert.Equal(t, author, got.Author())
	assert.Equal(t, author, got.Committer())
	assert.Empty(t, got.Parents)
}

func TestCommitHeaders(t *testing.T) {
	r := openTestRepo(t)
	treeID, err := r.writeTree(Tree{})
	require.NoError(t, err)
	author := Author{Name: "alice", Email: "alice@example.org"}
	now := time.Now()
	msg := BuildMessage(map[string]string{"Signature": "sig123"}, "body text")
	c, err := r.WriteCommit(nil, treeID, author, author, now, now, msg)
	require.NoError(t, err)

	got, err := r.ReadCommit(c.ID)
	require.NoError(t, err)
	headers, body := got.Headers()
	assert.Equal(t, "sig123", headers["Signature"])
	assert.Equal(t, "body text", body)
}

func TestEntriesFiltersByAllowedBasename(t *testing.T) {
	r := openTestRepo(t)
	blobID, err := r.WriteBlob([]byte("<a> <b> <c> .\n"))
	require.NoError(t, err)
	treeID, err := r.writeTree(Tree{
		"graphs/a.nq": blobID,
		"_manifest.json": blobID,
	})
	require.NoError(t, err)
	author := Author{Name: "a", Email: "a@example.org"}
	now := time.Now()
	c, err := r.WriteCommit(nil, treeID, author, author, now, now, "msg")
	require.NoError(t, err)

	entries, err := r.Entries(c.ID, map[string]struct{}{"a.nq": {}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "graphs/a.nq", entries[0].Path)
}

func TestReferencesSetGetDeleteList(t *testing.T) {
	r := openTestRepo(t)
	require.NoError(t, r.SetReference("refs/heads/main", "abc123"))

	val, err := r.GetReference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", val)

	refs, err := r.ListReferences("refs/heads/")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "refs/heads/main", refs[0].Name)

	require.NoError(t, r.DeleteReference("refs/heads/main"))
	_, err = r.GetReference("refs/heads/main")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRefSymbolicHEAD(t *testing.T) {
	r := openTestRepo(t)
	require.NoError(t, r.SetReference("refs/heads/main", "abc123"))
	require.NoError(t, r.SetReference("HEAD", "ref:refs/heads/main"))

	resolved, err := r.ResolveRef("HEAD")
	require.NoError(t, err)
	assert.Equal(t, "abc123", resolved)
}

func TestResolveRefByShortNameAndHash(t *testing.T) {
	r := openTestRepo(t)
	treeID, err := r.writeTree(Tree{})
	require.NoError(t, err)
	author := Author{Name: "a", Email: "a@example.org"}
	now := time.Now()
	c, err := r.WriteCommit(nil, treeID, author, author, now, now, "msg")
	require.NoError(t, err)
	require.NoError(t, r.SetReference("refs/heads/main", c.ID))

	resolved, err := r.ResolveRef("main")
	require.NoError(t, err)
	assert.Equal(t, c.ID, resolved)

	resolved, err = r.ResolveRef(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, resolved)
}

func TestResolveRefNotFound(t *testing.T) {
	r := openTestRepo(t)
	_, err := r.ResolveRef("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTagsOrBranches(t *testing.T) {
	r := openTestRepo(t)
	require.NoError(t, r.SetReference("refs/heads/main", "abc"))
	require.NoError(t, r.SetReference("refs/tags/v1", "def"))

	names, err := r.TagsOrBranches()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"refs/heads/main", "refs/tags/v1"}, names)
}

func TestIndexCommitNoChangesStaged(t *testing.T) {
	r := openTestRepo(t)
	idx, err := r.NewIndex("")
	require.NoError(t, err)
	_, err = idx.Commit("empty", "a", "a@example.org", "")
	assert.ErrorIs(t, err, ErrNoChangesStaged)
}

func TestIndexCommitBuildsOnParentTree(t *testing.T) {
	r := openTestRepo(t)

	idx1, err := r.NewIndex("")
	require.NoError(t, err)
	_, err = idx1.Add("a.nq", []byte("quad-a"))
	require.NoError(t, err)
	firstID, err := idx1.Commit("first", "a", "a@example.org", "refs/heads/main")
	require.NoError(t, err)

	idx2, err := r.NewIndex(firstID)
	require.NoError(t, err)
	_, err = idx2.Add("b.nq", []byte("quad-b"))
	require.NoError(t, err)
	secondID, err := idx2.Commit("second", "a", "a@example.org", "refs/heads/main")
	require.NoError(t, err)

	second, err := r.ReadCommit(secondID)
	require.NoError(t, err)
	assert.Equal(t, []string{firstID}, second.Parents)

	tree, err := r.ReadTree(second.Tree)
	require.NoError(t, err)
	assert.Contains(t, tree, "a.nq", "parent tree entries must carry forward")
	assert.Contains(t, tree, "b.nq")

	headVal, err := r.GetReference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, secondID, headVal)
}

func TestIndexCommitWithParentsMultiParent(t *testing.T) {
	r := openTestRepo(t)
	idx, err := r.NewIndex("")
	require.NoError(t, err)
	_, err = idx.Add("a.nq", []byte("x"))
	require.NoError(t, err)
	base, err := idx.Commit("base", "a", "a@example.org", "")
	require.NoError(t, err)

	idx2, err := r.NewIndex(base)
	require.NoError(t, err)
	_, err = idx2.Add("b.nq", []byte("y"))
	require.NoError(t, err)
	mergeID, err := idx2.CommitWithParents("merge", "a", "a@example.org", "", []string{base, base})
	require.NoError(t, err)

	merge, err := r.ReadCommit(mergeID)
	require.NoError(t, err)
	assert.Equal(t, []string{base, base}, merge.Parents)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	r := openTestRepo(t)
	id, err := r.WriteBlob([]byte("backed up content"))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = r.Backup(&buf, 0)
	require.NoError(t, err)

	r2, err := Open(filepath.Join(t.TempDir(), "restored"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r2.Close() })

	require.NoError(t, r2.Restore(bytes.NewReader(buf.Bytes())))

	got, err := r2.ReadBlob(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("backed up content"), got)
}

func TestIsBareAndCheckout(t *testing.T) {
	r := openTestRepo(t)
	assert.True(t, r.IsBare())
	assert.NoError(t, r.Checkout("anything"))
}
