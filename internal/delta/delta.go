// Package delta defines the Delta data model (spec §3): a per-graph,
// ordered sequence of addition/removal changesets, and the graphdiff
// operation the Hydrator falls back to when a caller doesn't supply an
// explicit delta (core.py's quit.utils.graphdiff).
package delta

import (
	"fmt"

	"github.com/mannyrivera2010/go-quadgit/internal/provenance"
)

// Operation names an addition or removal changeset, matching the QUIT
// vocabulary predicate names used when serialising a Delta into
// provenance (quit:additions / quit:removals).
type Operation string

const (
	Additions Operation = "additions"
	Removals  Operation = "removals"
)

// Changeset is one (operation, triples) pair within a graph's entry in
// a Delta.
type Changeset struct {
	Op      Operation
	Triples []provenance.Triple
}

// Delta maps a graph URI to its ordered changesets. Iteration order
// over the map is not significant; callers that need a stable index
// (the Hydrator, when minting quit:update-<commit>-<i> URIs) must sort
// the graph URIs themselves.
type Delta map[string][]Changeset

// tripleKey produces a stable, comparable key for a triple so set
// membership can be tested without relying on quad.Value equality
// semantics beyond what Go's built-in comparison already guarantees for
// these concrete, comparable term types.
func tripleKey(t provenance.Triple) string {
	return fmt.Sprintf("%#v|%#v|%#v", t.S, t.P, t.O)
}

// Diff computes the Delta between two snapshots (graph URI -> triples),
// the fallback path used when the caller does not supply an explicit
// delta (core.py's `graphdiff(i2.store if i2 else None, i1.store)`).
// before may be nil, meaning "no prior state" (the root commit case).
func Diff(before, after map[string][]provenance.Triple) Delta {
	out := Delta{}
	graphs := map[string]struct{}{}
	for g := range before {
		graphs[g] = struct{}{}
	}
	for g := range after {
		graphs[g] = struct{}{}
	}

	for g := range graphs {
		beforeSet := indexTriples(before[g])
		afterSet := indexTriples(after[g])

		var added, removed []provenance.Triple
		for key, t := range afterSet {
			if _, ok := beforeSet[key]; !ok {
				added = append(added, t)
			}
		}
		for key, t := range beforeSet {
			if _, ok := afterSet[key]; !ok {
				removed = append(removed, t)
			}
		}

		var changesets []Changeset
		if len(added) > 0 {
			changesets = append(changesets, Changeset{Op: Additions, Triples: added})
		}
		if len(removed) > 0 {
			changesets = append(changesets, Changeset{Op: Removals, Triples: removed})
		}
		if len(changesets) > 0 {
			out[g] = changesets
		}
	}
	return out
}

// Invert swaps additions and removals in every graph of d, the delta
// Revert applies: undoing a commit means re-removing what it added and
// re-adding what it removed.
func Invert(d Delta) Delta {
	out := make(Delta, len(d))
	for g, changesets := range d {
		inverted := make([]Changeset, len(changesets))
		for i, cs := range changesets {
			op := Additions
			if cs.Op == Additions {
				op = Removals
			}
			inverted[i] = Changeset{Op: op, Triples: cs.Triples}
		}
		out[g] = inverted
	}
	return out
}

func indexTriples(ts []provenance.Triple) map[string]provenance.Triple {
	out := make(map[string]provenance.Triple, len(ts))
	for _, t := range ts {
		out[tripleKey(t)] = t
	}
	return out
}

// Equal reports whether two deltas are equal modulo set-equality per
// graph and per operation (spec §8 property 2, the round-trip
// property), ignoring changeset ordering within a graph.
func Equal(a, b Delta) bool {
	if len(a) != len(b) {
		return false
	}
	for g, csA := range a {
		csB, ok := b[g]
		if !ok {
			return false
		}
		if !changesetsEqual(csA, csB) {
			return false
		}
	}
	return true
}

func changesetsEqual(a, b []Changeset) bool {
	byOp := func(cs []Changeset) map[Operation]map[string]struct{} {
		out := map[Operation]map[string]struct{}{}
		for _, c := range cs {
			set := out[c.Op]
			if set == nil {
				set = map[string]struct{}{}
				out[c.Op] = set
			}
			for _, t := range c.Triples {
				set[tripleKey(t)] = struct{}{}
			}
		}
		return out
	}
	ma, mb := byOp(a), byOp(b)
	if len(ma) != len(mb) {
		return false
	}
	for op, setA := range ma {
		setB, ok := mb[op]
		if !ok || len(setA) != len(setB) {
			return false
		}
		for k := range setA {
			if _, ok := setB[k]; !ok {
				return false
			}
		}
	}
	return true
}
