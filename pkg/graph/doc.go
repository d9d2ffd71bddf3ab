// Package graph defines the knowledge-graph data model and its ingestion
// boundary.
//
// Nodes and edges arrive from the platform's REST backend (or a local file)
// in a loosely typed wire format. This package decodes that format and
// normalizes it once, so that everything downstream works with a closed set
// of node kinds and never compares type strings.
//
// # Core Types
//
//   - [Graph]: normalized nodes and edges, in input order
//   - [Node]: a root, course, module or concept with an optional position
//   - [Edge]: a typed relation between two existing nodes
//   - [Kind], [Status], [EdgeType]: tagged variants
//   - [Positions]: the output of a layout run, keyed by node ID
//
// # Ingestion
//
// [Normalize] turns [WireNode]/[WireEdge] lists into a [Graph]:
//
//   - lesson nodes are excluded (they are never drawn)
//   - "track" is accepted as an alias of "root"; extra roots become concepts
//   - non-finite or missing coordinates are coerced to 0
//   - duplicate IDs keep their first occurrence
//   - edges whose source or target is missing are dropped
//
// Every adjustment is counted in the returned [Report]; none is fatal.
//
// # Files
//
// Graph files hold the wire format as JSON or YAML:
//
//	{
//	  "nodes": [{"id": "root", "type": "root", "title": "Product"}],
//	  "edges": [{"id": "e1", "source_id": "root", "target_id": "c1", "type": "required"}]
//	}
//
// Use [ReadFile] / [WriteFile] for files and [Decode] for readers.
package graph
