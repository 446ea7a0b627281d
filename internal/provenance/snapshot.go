package provenance

// Snapshot returns a copy of every member graph's triples keyed by its
// identifier, a convenient shape for diffing two instances.
func (a *AggregatedGraph) Snapshot() map[string][]Triple {
	out := make(map[string][]Triple, len(a.members))
	for _, m := range a.members {
		out[m.Identifier()] = append([]Triple(nil), m.Triples()...)
	}
	return out
}
