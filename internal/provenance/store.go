package provenance

import "github.com/cayleygraph/quad"

// Triple is a (subject, predicate, object) statement without its
// enclosing context; contexts are tracked by the Store, not the term.
type Triple struct {
	S, P, O quad.Value
}

// Store is the in-memory, multi-context quad store C6 describes: a
// map of context IRI to the triples held in it. It lives for the
// lifetime of the process (spec §9: "inject them ... do not expose
// module-level singletons").
type Store struct {
	contexts map[string][]Triple
}

// NewStore returns an empty provenance store.
func NewStore() *Store {
	return &Store{contexts: map[string][]Triple{}}
}

// Add adds a single statement into context.
func (s *Store) Add(context string, t Triple) {
	s.contexts[context] = append(s.contexts[context], t)
}

// AddN adds every statement in ts into context, the batch form
// core.py's `g.addN(...)` uses when copying a graph's content into a
// private entity context.
func (s *Store) AddN(context string, ts []Triple) {
	s.contexts[context] = append(s.contexts[context], ts...)
}

// Quads returns every triple held in context (empty slice if the
// context doesn't exist).
func (s *Store) Quads(context string) []Triple {
	return append([]Triple(nil), s.contexts[context]...)
}

// Contexts returns every context IRI currently in the store. A context
// that AddN was called on with an empty batch is listed even though it
// holds no triples.
func (s *Store) Contexts() []string {
	out := make([]string, 0, len(s.contexts))
	for c := range s.contexts {
		out = append(out, c)
	}
	return out
}

// RemoveContext wipes every triple in context, used by rebuild() before
// replaying sync_all().
func (s *Store) RemoveContext(context string) {
	delete(s.contexts, context)
}

// RemoveAll wipes every context.
func (s *Store) RemoveAll() {
	s.contexts = map[string][]Triple{}
}

// HasSubject reports whether any triple in context has subject as its
// subject. This backs the Hydrator's already_hydrated predicate
// (invariant 3 of spec §3): presence of any quad about a commit's IRI
// in the default context means the commit was already synced.
func (s *Store) HasSubject(context string, subject quad.Value) bool {
	for _, t := range s.contexts[context] {
		if t.S == subject {
			return true
		}
	}
	return false
}
