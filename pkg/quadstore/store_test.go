package quadstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, OpenOptions{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, ctx
}

func drainChanges(ch <-chan Change) []Change {
	var out []Change
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func drainBlame(ch <-chan BlameResult) []BlameResult {
	var out []BlameResult
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestCommitGenesisWithEmptyGraphData(t *testing.T) {
	s, ctx := openTestStore(t)

	hash, err := s.Commit(ctx, "", Author{Name: "alice", Email: "alice@example.org"}, "Initial commit", map[string][]Quad{}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hash, "a genesis commit must be written even with no graph data")

	c, err := s.ReadCommit(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "Initial commit", c.Message)
	assert.Empty(t, c.Parents)
}

func TestCommitWritesGraphData(t *testing.T) {
	s, ctx := openTestStore(t)

	graphData := map[string][]Quad{
		"http://ex.org/g1": {
			{Subject: "http://ex.org/s", Predicate: "http://ex.org/p", Object: "http://ex.org/o", Graph: "http://ex.org/g1"},
		},
	}
	hash, err := s.Commit(ctx, "", Author{Name: "alice", Email: "alice@example.org"}, "add a quad", graphData, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	ch, err := s.Diff(ctx, "", hash)
	require.NoError(t, err)
	changes := drainChanges(ch)
	require.Len(t, changes, 1)
	assert.Equal(t, Addition, changes[0].Type)
	assert.Equal(t, "http://ex.org/s", changes[0].Quad.Subject)
}

func TestCommitSecondCommitInheritsPriorGraphs(t *testing.T) {
	s, ctx := openTestStore(t)

	first, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "first", map[string][]Quad{
		"http://ex.org/g1": {{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"}},
	}, nil)
	require.NoError(t, err)

	second, err := s.Commit(ctx, first, Author{Name: "a", Email: "a@example.org"}, "second", map[string][]Quad{
		"http://ex.org/g2": {{Subject: "http://ex.org/s2", Predicate: "http://ex.org/p", Object: "http://ex.org/o2", Graph: "http://ex.org/g2"}},
	}, nil)
	require.NoError(t, err)

	ch, err := s.Diff(ctx, "", second)
	require.NoError(t, err)
	changes := drainChanges(ch)
	assert.Len(t, changes, 2, "second commit's instance must still include the first commit's graph")
}

func TestCommitWithSigner(t *testing.T) {
	s, ctx := openTestStore(t)

	signed := false
	sign := func(data []byte) (string, error) {
		signed = true
		return "sig-value", nil
	}
	hash, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "signed commit", map[string][]Quad{}, sign)
	require.NoError(t, err)
	require.True(t, signed)

	c, err := s.ReadCommit(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "sig-value", c.Signature)
}

func TestReferencesRoundTrip(t *testing.T) {
	s, ctx := openTestStore(t)

	hash, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "msg", map[string][]Quad{}, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetReference(ctx, "refs/heads/main", hash))
	got, err := s.GetReference(ctx, "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	resolved, err := s.ResolveRef(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, hash, resolved)

	refs, err := s.ListReferences(ctx, "refs/heads/")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "refs/heads/main", refs[0].Name)

	require.NoError(t, s.DeleteReference(ctx, "refs/heads/main"))
	_, err = s.GetReference(ctx, "refs/heads/main")
	assert.Error(t, err)
}

func TestLogWalksFirstParent(t *testing.T) {
	s, ctx := openTestStore(t)

	first, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "first", map[string][]Quad{}, nil)
	require.NoError(t, err)
	second, err := s.Commit(ctx, first, Author{Name: "a", Email: "a@example.org"}, "second", map[string][]Quad{
		"http://ex.org/g1": {{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"}},
	}, nil)
	require.NoError(t, err)

	log, err := s.Log(ctx, second, 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "second", log[0].Message)
	assert.Equal(t, "first", log[1].Message)
}

func TestLogRespectsLimit(t *testing.T) {
	s, ctx := openTestStore(t)

	first, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "first", map[string][]Quad{}, nil)
	require.NoError(t, err)
	second, err := s.Commit(ctx, first, Author{Name: "a", Email: "a@example.org"}, "second", map[string][]Quad{
		"http://ex.org/g1": {{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"}},
	}, nil)
	require.NoError(t, err)

	log, err := s.Log(ctx, second, 1)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "second", log[0].Message)
}

func TestBlameFindsIntroducingCommit(t *testing.T) {
	s, ctx := openTestStore(t)

	first, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "first", map[string][]Quad{
		"http://ex.org/g1": {{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"}},
	}, nil)
	require.NoError(t, err)

	second, err := s.Commit(ctx, first, Author{Name: "a", Email: "a@example.org"}, "second", map[string][]Quad{
		"http://ex.org/g1": {
			{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"},
			{Subject: "http://ex.org/s2", Predicate: "http://ex.org/p", Object: "http://ex.org/o2", Graph: "http://ex.org/g1"},
		},
	}, nil)
	require.NoError(t, err)

	ch, err := s.Blame(ctx, "http://ex.org/g1", second)
	require.NoError(t, err)
	results := drainBlame(ch)
	require.Len(t, results, 2)

	byObject := map[string]string{}
	for _, r := range results {
		byObject[r.Quad.Object] = r.Commit.Hash
	}
	assert.Equal(t, first, byObject["http://ex.org/o1"], "o1 was introduced in the first commit")
	assert.Equal(t, second, byObject["http://ex.org/o2"], "o2 was introduced in the second commit")
}

func TestMergeCleanUnionsBothBranches(t *testing.T) {
	s, ctx := openTestStore(t)

	base, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "base", map[string][]Quad{
		"http://ex.org/g1": {{Subject: "http://ex.org/s0", Predicate: "http://ex.org/p", Object: "http://ex.org/o0", Graph: "http://ex.org/g1"}},
	}, nil)
	require.NoError(t, err)

	target, err := s.Commit(ctx, base, Author{Name: "a", Email: "a@example.org"}, "target adds s1", map[string][]Quad{
		"http://ex.org/g1": {
			{Subject: "http://ex.org/s0", Predicate: "http://ex.org/p", Object: "http://ex.org/o0", Graph: "http://ex.org/g1"},
			{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"},
		},
	}, nil)
	require.NoError(t, err)

	source, err := s.Commit(ctx, base, Author{Name: "a", Email: "a@example.org"}, "source adds s2", map[string][]Quad{
		"http://ex.org/g1": {
			{Subject: "http://ex.org/s0", Predicate: "http://ex.org/p", Object: "http://ex.org/o0", Graph: "http://ex.org/g1"},
			{Subject: "http://ex.org/s2", Predicate: "http://ex.org/p", Object: "http://ex.org/o2", Graph: "http://ex.org/g1"},
		},
	}, nil)
	require.NoError(t, err)

	conflicts, err := s.Merge(ctx, base, target, source)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestMergeAcrossDifferentGraphsUnionsManifests(t *testing.T) {
	s, ctx := openTestStore(t)

	base, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "base", map[string][]Quad{
		"http://ex.org/g1": {{Subject: "http://ex.org/s0", Predicate: "http://ex.org/p", Object: "http://ex.org/o0", Graph: "http://ex.org/g1"}},
	}, nil)
	require.NoError(t, err)

	target, err := s.Commit(ctx, base, Author{Name: "a", Email: "a@example.org"}, "target adds g2", map[string][]Quad{
		"http://ex.org/g2": {{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g2"}},
	}, nil)
	require.NoError(t, err)

	source, err := s.Commit(ctx, base, Author{Name: "a", Email: "a@example.org"}, "source adds g3", map[string][]Quad{
		"http://ex.org/g3": {{Subject: "http://ex.org/s2", Predicate: "http://ex.org/p", Object: "http://ex.org/o2", Graph: "http://ex.org/g3"}},
	}, nil)
	require.NoError(t, err)

	conflicts, err := s.Merge(ctx, base, target, source)
	require.NoError(t, err)
	assert.Empty(t, conflicts, "disjoint graphs touched by each branch must merge cleanly")
}

func TestRevertInvertsChangesIntroducedByCommit(t *testing.T) {
	s, ctx := openTestStore(t)

	first, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "first", map[string][]Quad{
		"http://ex.org/g1": {{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"}},
	}, nil)
	require.NoError(t, err)

	second, err := s.Commit(ctx, first, Author{Name: "a", Email: "a@example.org"}, "second adds s2", map[string][]Quad{
		"http://ex.org/g1": {
			{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"},
			{Subject: "http://ex.org/s2", Predicate: "http://ex.org/p", Object: "http://ex.org/o2", Graph: "http://ex.org/g1"},
		},
	}, nil)
	require.NoError(t, err)

	revertID, err := s.Revert(ctx, second, second, Author{Name: "a", Email: "a@example.org"})
	require.NoError(t, err)
	require.NotEmpty(t, revertID)

	ch, err := s.Diff(ctx, "", revertID)
	require.NoError(t, err)
	changes := drainChanges(ch)
	require.Len(t, changes, 1, "reverting the second commit must leave only s1 in the graph")
	assert.Equal(t, "http://ex.org/s1", changes[0].Quad.Subject)
}

func TestRevertRootCommitRemovesItsOwnContent(t *testing.T) {
	s, ctx := openTestStore(t)

	first, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "first", map[string][]Quad{
		"http://ex.org/g1": {{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"}},
	}, nil)
	require.NoError(t, err)

	revertID, err := s.Revert(ctx, first, first, Author{Name: "a", Email: "a@example.org"})
	require.NoError(t, err)

	ch, err := s.Diff(ctx, "", revertID)
	require.NoError(t, err)
	changes := drainChanges(ch)
	assert.Empty(t, changes, "reverting the only commit that introduced s1 must leave the graph empty")
}

func TestRevertNothingToRevertReturnsError(t *testing.T) {
	s, ctx := openTestStore(t)

	first, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "first", map[string][]Quad{}, nil)
	require.NoError(t, err)

	_, err = s.Revert(ctx, first, first, Author{Name: "a", Email: "a@example.org"})
	assert.Error(t, err, "reverting a commit that introduced no graph changes must report nothing to revert")
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	s, ctx := openTestStore(t)
	hash, err := s.Commit(ctx, "", Author{Name: "a", Email: "a@example.org"}, "msg", map[string][]Quad{
		"http://ex.org/g1": {{Subject: "http://ex.org/s1", Predicate: "http://ex.org/p", Object: "http://ex.org/o1", Graph: "http://ex.org/g1"}},
	}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	manifest, err := s.Backup(ctx, &buf, 0)
	require.NoError(t, err)
	assert.False(t, manifest.IsIncremental)

	restored, err := Open(ctx, OpenOptions{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = restored.Close() })

	require.NoError(t, restored.Restore(ctx, &buf))

	c, err := restored.ReadCommit(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "msg", c.Message)
}
