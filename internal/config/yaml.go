package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlDocument is the on-disk shape of a graph-store configuration
// file, e.g.:
//
//	graphs:
//	  http://example.org/g1: graph1.nq
//	  http://example.org/g2: graph2.nq
//	features:
//	  persistence: true
//	  provenance: true
type yamlDocument struct {
	Graphs   map[string]string `yaml:"graphs"`
	Features struct {
		Persistence bool `yaml:"persistence"`
		Provenance  bool `yaml:"provenance"`
	} `yaml:"features"`
}

// LoadYAML reads a graph-store configuration file from path. This is
// the only code that loads configuration from disk; the core never
// imports it, and the CLI in main.go does not call it either.
func LoadYAML(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc yamlDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	fileGraphs := map[string][]string{}
	for graphURI, file := range doc.Graphs {
		fileGraphs[file] = append(fileGraphs[file], graphURI)
	}

	return &Static{
		FileGraphs: fileGraphs,
		Features: map[Feature]bool{
			Persistence: doc.Features.Persistence,
			Provenance:  doc.Features.Provenance,
		},
	}, nil
}
