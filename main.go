// main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mannyrivera2010/go-quadgit/internal/nquads"
	"github.com/mannyrivera2010/go-quadgit/internal/termconv"
	"github.com/mannyrivera2010/go-quadgit/pkg/quadstore"
)

const (
	dbPath    = ".quadgit"
	indexPath = ".quadgit-index"
)

var store quadstore.Store

func defaultAuthor() quadstore.Author {
	name := os.Getenv("QUADGIT_AUTHOR_NAME")
	if name == "" {
		name = "quadgit"
	}
	email := os.Getenv("QUADGIT_AUTHOR_EMAIL")
	if email == "" {
		email = "quadgit@localhost"
	}
	return quadstore.Author{Name: name, Email: email}
}

// parseFileQuads parses every line of an N-Quads file into a
// quadstore.Quad grouped by graph IRI, the shape Store.Commit wants:
// a complete per-graph replacement.
func parseFileQuads(path string) (map[string][]quadstore.Quad, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out := map[string][]quadstore.Quad{}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		q, graphIRI, err := nquads.ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out[graphIRI] = append(out[graphIRI], quadstore.Quad{
			Subject:   termconv.FromTerm(q.Subject),
			Predicate: termconv.FromTerm(q.Predicate),
			Object:    termconv.FromTerm(q.Object),
			Graph:     graphIRI,
		})
	}
	return out, nil
}

func readIndex() ([]string, error) {
	data, err := os.ReadFile(indexPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

func appendIndex(path string) error {
	existing, err := readIndex()
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p == path {
			return nil
		}
	}
	f, err := os.OpenFile(indexPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(path + "\n")
	return err
}

func headHash(ctx context.Context) string {
	hash, err := store.ResolveRef(ctx, "HEAD")
	if err != nil {
		return ""
	}
	return hash
}

var rootCmd = &cobra.Command{
	Use:   "quadgit",
	Short: "A version-controlled RDF quad store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("repository not initialized, run 'quadgit init'")
		}
		s, err := quadstore.Open(cmd.Context(), quadstore.OpenOptions{Path: dbPath})
		if err != nil {
			return err
		}
		store = s
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new quadgit repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
			return fmt.Errorf("repository already initialized")
		}
		ctx := cmd.Context()
		s, err := quadstore.Open(ctx, quadstore.OpenOptions{Path: dbPath})
		if err != nil {
			return err
		}
		defer s.Close()

		hash, err := s.Commit(ctx, "", defaultAuthor(), "Initial commit", map[string][]quadstore.Quad{}, nil)
		if err != nil {
			return err
		}
		if err := s.SetReference(ctx, "refs/heads/main", hash); err != nil {
			return err
		}
		if err := s.SetReference(ctx, "HEAD", "ref:refs/heads/main"); err != nil {
			return err
		}
		fmt.Printf("Initialized empty quadgit repository in %s\n", dbPath)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <file.nq>",
	Short: "Stage an N-Quads file for the next commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return err
		}
		if err := appendIndex(args[0]); err != nil {
			return err
		}
		fmt.Printf("Staged %s\n", args[0])
		return nil
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record staged N-Quads files as a new commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		if message == "" {
			return fmt.Errorf("commit message is required, use -m")
		}
		paths, err := readIndex()
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("nothing staged, use 'quadgit add' first")
		}

		graphData := map[string][]quadstore.Quad{}
		for _, path := range paths {
			fileGraphs, err := parseFileQuads(path)
			if err != nil {
				return err
			}
			for g, quads := range fileGraphs {
				graphData[g] = append(graphData[g], quads...)
			}
		}

		ctx := cmd.Context()
		parent := headHash(ctx)
		hash, err := store.Commit(ctx, parent, defaultAuthor(), message, graphData, nil)
		if err != nil {
			return err
		}
		if hash == "" {
			return fmt.Errorf("nothing to commit")
		}
		if err := store.SetReference(ctx, "refs/heads/main", hash); err != nil {
			return err
		}
		os.Truncate(indexPath, 0)
		fmt.Printf("[%s] %s\n", hash[:7], message)
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show commit history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		hash := headHash(ctx)
		if hash == "" {
			return fmt.Errorf("HEAD does not resolve to a commit")
		}
		commits, err := store.Log(ctx, hash, 0)
		if err != nil {
			return err
		}
		for _, c := range commits {
			fmt.Printf("commit %s\n", c.Hash)
			fmt.Printf("Author: %s <%s>\n", c.Author.Name, c.Author.Email)
			fmt.Printf("Date:   %s\n", c.Timestamp.Format("Mon Jan 2 15:04:05 2006 -0700"))
			fmt.Printf("\n\t%s\n\n", c.Message)
		}
		return nil
	},
}

var branchCmd = &cobra.Command{
	Use:   "branch <name> [start-point]",
	Short: "Create a branch pointing at a commit",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := "HEAD"
		if len(args) == 2 {
			start = args[1]
		}
		hash, err := store.ResolveRef(ctx, start)
		if err != nil {
			return err
		}
		return store.SetReference(ctx, "refs/heads/"+args[0], hash)
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag <name> [start-point]",
	Short: "Create a tag pointing at a commit",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := "HEAD"
		if len(args) == 2 {
			start = args[1]
		}
		hash, err := store.ResolveRef(ctx, start)
		if err != nil {
			return err
		}
		return store.SetReference(ctx, "refs/tags/"+args[0], hash)
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <branch>",
	Short: "Point HEAD at a branch (this is a bare repository: no working tree is touched)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := store.GetReference(ctx, "refs/heads/"+args[0]); err == nil {
			return store.SetReference(ctx, "HEAD", "ref:refs/heads/"+args[0])
		}
		hash, err := store.ResolveRef(ctx, args[0])
		if err != nil {
			return err
		}
		return store.SetReference(ctx, "HEAD", hash)
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <from-commit> <to-commit>",
	Short: "Show quad-level additions and deletions between two commits",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		from, err := store.ResolveRef(ctx, args[0])
		if err != nil {
			return err
		}
		to, err := store.ResolveRef(ctx, args[1])
		if err != nil {
			return err
		}
		ch, err := store.Diff(ctx, from, to)
		if err != nil {
			return err
		}
		for change := range ch {
			sign := "+"
			if change.Type == quadstore.Deletion {
				sign = "-"
			}
			fmt.Printf("%s %s %s %s <%s>\n", sign, change.Quad.Subject, change.Quad.Predicate, change.Quad.Object, change.Quad.Graph)
		}
		return nil
	},
}

var blameCmd = &cobra.Command{
	Use:   "blame <graph-iri> <commit>",
	Short: "Annotate each quad in a named graph with the commit that introduced it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		hash, err := store.ResolveRef(ctx, args[1])
		if err != nil {
			return err
		}
		ch, err := store.Blame(ctx, args[0], hash)
		if err != nil {
			return err
		}
		for result := range ch {
			fmt.Printf("%s\t%s %s %s\n", result.Commit.Hash[:7], result.Quad.Subject, result.Quad.Predicate, result.Quad.Object)
		}
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <base> <target> <source>",
	Short: "Three-way merge source into target using base as the common ancestor",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		base, err := store.ResolveRef(ctx, args[0])
		if err != nil {
			return err
		}
		target, err := store.ResolveRef(ctx, args[1])
		if err != nil {
			return err
		}
		source, err := store.ResolveRef(ctx, args[2])
		if err != nil {
			return err
		}
		conflicts, err := store.Merge(ctx, base, target, source)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Description < conflicts[j].Description })
			fmt.Println("Merge conflicts:")
			for _, c := range conflicts {
				fmt.Printf("  %s: %s\n", c.Type, c.Description)
				for _, line := range c.Conflicting {
					fmt.Printf("    %s\n", line)
				}
			}
			return fmt.Errorf("merge failed with %d conflict(s)", len(conflicts))
		}
		fmt.Println("Merge completed")
		return nil
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert <branch-head> <commit-to-revert>",
	Short: "Create a commit that undoes the effects of an earlier commit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		head, err := store.ResolveRef(ctx, args[0])
		if err != nil {
			return err
		}
		toRevert, err := store.ResolveRef(ctx, args[1])
		if err != nil {
			return err
		}
		hash, err := store.Revert(ctx, head, toRevert, defaultAuthor())
		if err != nil {
			return err
		}
		fmt.Printf("[%s] reverted %s\n", hash[:7], toRevert[:7])
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup <output-file>",
	Short: "Write a full backup of the repository to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		w := bufio.NewWriter(f)
		manifest, err := store.Backup(cmd.Context(), w, 0)
		if err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("Backed up database version %d to %s\n", manifest.DatabaseVersion, args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restore a repository from a backup file (repository must be empty)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := store.Restore(cmd.Context(), f); err != nil {
			return err
		}
		fmt.Printf("Restored from %s\n", args[0])
		return nil
	},
}

func main() {
	rootCmd.AddCommand(initCmd, addCmd, logCmd, branchCmd, tagCmd, checkoutCmd,
		diffCmd, blameCmd, mergeCmd, revertCmd, backupCmd, restoreCmd)

	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	rootCmd.AddCommand(commitCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
