// Package provenance implements the Provenance Store component (C6):
// an in-memory, multi-context quad store the Hydrator writes PROV/QUIT
// metadata into, plus the RewriteGraph and InMemoryAggregatedGraph
// adapters the Instance Builder composes read views from. Grounded on
// quit/core.py's MemoryStore / RewriteGraph / InMemoryAggregatedGraph.
package provenance

import "github.com/cayleygraph/quad"

const (
	quitNS = "http://quit.aksw.org/"
	provNS = "http://www.w3.org/ns/prov#"
	rdfsNS = "http://www.w3.org/2000/01/rdf-schema#"
	foafNS = "http://xmlns.com/foaf/0.1/"
	xsdNS  = "http://www.w3.org/2001/XMLSchema#"
)

// RDFType is rdf:type, written `a` in Turtle-family syntaxes.
var RDFType = quad.IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")

// QUIT mints a term in the quit vocabulary namespace.
func QUIT(local string) quad.IRI { return quad.IRI(quitNS + local) }

// PROV mints a term in the PROV-O vocabulary namespace.
func PROV(local string) quad.IRI { return quad.IRI(provNS + local) }

// RDFS mints a term in the RDFS vocabulary namespace.
func RDFS(local string) quad.IRI { return quad.IRI(rdfsNS + local) }

// FOAF mints a term in the FOAF vocabulary namespace.
func FOAF(local string) quad.IRI { return quad.IRI(foafNS + local) }

// XSD mints a datatype IRI in the XML Schema namespace.
func XSD(local string) quad.IRI { return quad.IRI(xsdNS + local) }

// DefaultContext is "the default context" spec §3 describes as the
// single graph all PROV/QUIT descriptions are written into, distinct
// from the per-blob private entity contexts (quit:graph-<blobId>-<j>)
// and the per-update operation contexts (quit:additions-<commitId> /
// quit:removals-<commitId>).
const DefaultContext = quitNS + "default"
