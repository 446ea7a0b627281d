package objectstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a commit, blob, tree or reference does
// not exist.
var ErrNotFound = errors.New("objectstore: not found")

const (
	prefixBlob   = "blob:"
	prefixTree   = "tree:"
	prefixCommit = "commit:"
	prefixRef    = "ref:"
)

// Reference is a named, mutable pointer to a commit (a branch or tag).
type Reference struct {
	Name string
	Hash string
}

// Repository is a content-addressed, badger-backed object store: the
// "storage layer" spec §6 describes as consumed. It owns commits,
// trees, blobs and references, and is always bare (there is no
// filesystem working tree distinct from the blobs themselves).
type Repository struct {
	db *badger.DB
}

// Open opens (creating if necessary) a repository rooted at path.
func Open(path string) (*Repository, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open %s: %w", path, err)
	}
	return &Repository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// WriteBlob stores raw N-Quads bytes under their content hash and
// returns the blob id. Writing the same bytes twice is idempotent.
func (r *Repository) WriteBlob(data []byte) (string, error) {
	id := hashBytes(data)
	key := []byte(prefixBlob + id)
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	return id, err
}

// ReadBlob retrieves raw blob bytes by id.
func (r *Repository) ReadBlob(id string) ([]byte, error) {
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixBlob + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	return data, err
}

func (r *Repository) writeTree(t Tree) (string, error) {
	data, err := marshalCanonical(t)
	if err != nil {
		return "", err
	}
	id := hashBytes(data)
	key := []byte(prefixTree + id)
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	return id, err
}

// ReadTree retrieves a tree object by id.
func (r *Repository) ReadTree(id string) (Tree, error) {
	var t Tree
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixTree + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	return t, err
}

// WriteCommit stores a new commit object and returns it with its id
// populated.
func (r *Repository) WriteCommit(parents []string, tree string, author, committer Author, authorTime, commitTime time.Time, message string) (*Commit, error) {
	data := commitData{
		Tree:           tree,
		Parents:        append([]string(nil), parents...),
		AuthorName:     author.Name,
		AuthorEmail:    author.Email,
		AuthorTime:     authorTime.UTC(),
		CommitterName:  committer.Name,
		CommitterEmail: committer.Email,
		CommitTime:     commitTime.UTC(),
		Message:        message,
	}
	raw, err := marshalCanonical(data)
	if err != nil {
		return nil, err
	}
	id := hashBytes(raw)
	key := []byte(prefixCommit + id)
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, raw)
	})
	if err != nil {
		return nil, err
	}
	return &Commit{ID: id, commitData: data}, nil
}

// ReadCommit retrieves a commit object by id.
func (r *Repository) ReadCommit(id string) (*Commit, error) {
	var data commitData
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixCommit + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &data)
		})
	})
	if err != nil {
		return nil, err
	}
	return &Commit{ID: id, commitData: data}, nil
}

// Entries returns the (path, blobID) pairs of a commit's tree, filtered
// to paths whose basename is in allowedFiles, sorted by path. This is
// the Commit View component (C2) folded into the repository read path;
// see internal/commitview for the richer, config-aware wrapper.
func (r *Repository) Entries(commitID string, allowedFiles map[string]struct{}) ([]TreeEntry, error) {
	c, err := r.ReadCommit(commitID)
	if err != nil {
		return nil, err
	}
	tree, err := r.ReadTree(c.Tree)
	if err != nil {
		return nil, err
	}
	var entries []TreeEntry
	for path, blobID := range tree {
		base := path
		if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
			base = path[idx+1:]
		}
		if _, ok := allowedFiles[base]; !ok {
			continue
		}
		entries = append(entries, TreeEntry{Path: path, BlobID: blobID})
	}
	sortEntries(entries)
	return entries, nil
}

// TreeEntry is a single filtered tree entry: a repository-relative path
// and the blob id of its content.
type TreeEntry struct {
	Path   string
	BlobID string
}

func sortEntries(e []TreeEntry) {
	for i := 1; i < len(e); i++ {
		for j := i; j > 0 && e[j-1].Path > e[j].Path; j-- {
			e[j-1], e[j] = e[j], e[j-1]
		}
	}
}

// SetReference points name (a full reference such as "refs/heads/main")
// at hash.
func (r *Repository) SetReference(name, hash string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixRef+name), []byte(hash))
	})
}

// GetReference resolves a full reference name to its raw stored value
// (a commit hash, or "ref:<name>" for a symbolic reference like HEAD).
func (r *Repository) GetReference(name string) (string, error) {
	var val string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixRef + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = string(v)
			return nil
		})
	})
	return val, err
}

// DeleteReference removes a reference.
func (r *Repository) DeleteReference(name string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixRef + name))
	})
}

// ListReferences returns every reference whose name starts with prefix.
func (r *Repository) ListReferences(prefix string) ([]Reference, error) {
	var refs []Reference
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		seek := []byte(prefixRef + prefix)
		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), prefixRef)
			err := item.Value(func(v []byte) error {
				refs = append(refs, Reference{Name: name, Hash: string(v)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return refs, err
}

// TagsOrBranches returns every branch and tag reference name, the root
// set the Hydrator walks from.
func (r *Repository) TagsOrBranches() ([]string, error) {
	var names []string
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		refs, err := r.ListReferences(prefix)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			names = append(names, ref.Name)
		}
	}
	return names, nil
}

// ResolveRef resolves a user-friendly name ("main", "v1.0", "HEAD", or a
// raw commit hash) to a full commit hash.
func (r *Repository) ResolveRef(name string) (string, error) {
	if name == "HEAD" {
		val, err := r.GetReference("HEAD")
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(val, "ref:") {
			return r.ResolveRef(strings.TrimPrefix(val, "ref:"))
		}
		return val, nil
	}
	for _, candidate := range []string{name, "refs/heads/" + name, "refs/tags/" + name} {
		if val, err := r.GetReference(candidate); err == nil {
			return val, nil
		} else if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	if _, err := r.ReadCommit(name); err == nil {
		return name, nil
	}
	return "", fmt.Errorf("objectstore: reference %q not found: %w", name, ErrNotFound)
}

// Revision resolves name and returns the commit it points to.
func (r *Repository) Revision(name string) (*Commit, error) {
	hash, err := r.ResolveRef(name)
	if err != nil {
		return nil, err
	}
	return r.ReadCommit(hash)
}

// DefaultSignature returns the identity used for commits synthesised by
// this process, overridable by GIT_AUTHOR_NAME / GIT_AUTHOR_EMAIL for
// parity with real git tooling.
func (r *Repository) DefaultSignature() Author {
	name := os.Getenv("GIT_AUTHOR_NAME")
	if name == "" {
		name = "go-quadgit"
	}
	email := os.Getenv("GIT_AUTHOR_EMAIL")
	if email == "" {
		email = "quadgit@localhost"
	}
	return Author{Name: name, Email: email}
}

// IsBare always reports true: this repository has no filesystem working
// tree outside of the blobs it stores.
func (r *Repository) IsBare() bool { return true }

// Checkout is a documented no-op: spec §4.5 step 7 only force-checks-out
// a ref "if the repository is not bare", which this one never is.
func (r *Repository) Checkout(ref string) error { return nil }

// NewIndex opens a staging area bound to baseCommitID (the empty string
// stages against an empty tree, i.e. the root commit).
func (r *Repository) NewIndex(baseCommitID string) (*Index, error) {
	baseTree := Tree{}
	if baseCommitID != "" {
		c, err := r.ReadCommit(baseCommitID)
		if err != nil {
			return nil, err
		}
		baseTree, err = r.ReadTree(c.Tree)
		if err != nil {
			return nil, err
		}
	}
	return &Index{
		repo:         r,
		baseCommitID: baseCommitID,
		baseTree:     baseTree,
		stash:        map[string]string{},
	}, nil
}

// Backup streams a full (sinceVersion == 0) or incremental backup of the
// entire database, delegating directly to badger's own versioned
// backup format.
func (r *Repository) Backup(w io.Writer, sinceVersion uint64) (uint64, error) {
	return r.db.Backup(w, sinceVersion)
}

// Restore loads a backup stream produced by Backup into this
// (expected-to-be-empty) repository.
func (r *Repository) Restore(rd io.Reader) error {
	return r.db.Load(rd, 256)
}
