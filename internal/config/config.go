// Package config defines the configuration interface spec §6 describes
// as consumed by the core (graph-to-file mapping, feature flags).
// Loading configuration from disk is explicitly out of scope for the
// core; LoadYAML (yaml.go) is the one loader, and the quadstore facade
// and tests build a Static directly.
package config

// Feature is a configured boolean selecting optional hydration
// behaviour.
type Feature int

const (
	// Persistence mirrors graph content into the in-memory provenance
	// store, and makes Instance reads go through the rewrite graph
	// instead of the raw parsed blob.
	Persistence Feature = iota
	// Provenance emits PROV/QUIT metadata describing each commit.
	Provenance
)

// Config is the interface C1, C2, C4 and C5 consume: the file<->graph
// mapping and feature flags. It never touches disk itself.
type Config interface {
	// GraphURIForFile returns the graph URIs declared for filename in
	// the configuration (graph_uri_for_file).
	GraphURIForFile(filename string) []string

	// GraphURIFileMap returns the complete graph URI -> file path
	// mapping (graph_uri_file_map). A graph URI is served by at most
	// one file.
	GraphURIFileMap() map[string]string

	// HasFeature reports whether f is enabled.
	HasFeature(f Feature) bool
}

// Static is the simplest Config implementation: an in-memory mapping,
// used by tests, by the quadstore facade (which rewrites FileGraphs from
// its commit manifest), and as the result of LoadYAML.
type Static struct {
	FileGraphs map[string][]string // filename -> declared graph URIs
	Features   map[Feature]bool
}

// GraphURIForFile implements Config.
func (s *Static) GraphURIForFile(filename string) []string {
	return append([]string(nil), s.FileGraphs[filename]...)
}

// GraphURIFileMap implements Config.
func (s *Static) GraphURIFileMap() map[string]string {
	out := map[string]string{}
	for file, graphs := range s.FileGraphs {
		for _, g := range graphs {
			out[g] = file
		}
	}
	return out
}

// HasFeature implements Config.
func (s *Static) HasFeature(f Feature) bool {
	return s.Features[f]
}

// ConfiguredGraphSet returns the key set of GraphURIFileMap as a
// membership set, the shape BlobView filtering wants.
func ConfiguredGraphSet(c Config) map[string]struct{} {
	m := c.GraphURIFileMap()
	out := make(map[string]struct{}, len(m))
	for g := range m {
		out[g] = struct{}{}
	}
	return out
}

// ConfiguredFiles returns the basenames of every file referenced by the
// graph URI map, the allow-list the Commit View filters tree entries
// against.
func ConfiguredFiles(c Config) map[string]struct{} {
	m := c.GraphURIFileMap()
	out := make(map[string]struct{}, len(m))
	for _, file := range m {
		out[file] = struct{}{}
	}
	return out
}
