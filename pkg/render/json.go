package render

import (
	"encoding/json"

	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/route"
)

// Document is the JSON form of a rendered map: positioned nodes, the
// edges between them and the curve drawn for each edge.
type Document struct {
	Nodes     []graph.Node `json:"nodes"`
	Edges     []graph.Edge `json:"edges"`
	Paths     []PathJSON   `json:"paths"`
	Exhausted []string     `json:"exhausted,omitempty"`
}

// PathJSON is a routed edge with its SVG path data.
type PathJSON struct {
	route.Path
	D string `json:"d"`
}

// NewDocument assembles a Document.
func NewDocument(g graph.Graph, paths []route.Path, exhausted []string) Document {
	doc := Document{Nodes: g.Nodes, Edges: g.Edges, Paths: make([]PathJSON, len(paths)), Exhausted: exhausted}
	if doc.Nodes == nil {
		doc.Nodes = []graph.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []graph.Edge{}
	}
	for i, p := range paths {
		doc.Paths[i] = PathJSON{Path: p, D: p.D()}
	}
	return doc
}

// RenderJSON encodes the Document for g and paths, indented by two spaces.
func RenderJSON(g graph.Graph, paths []route.Path, exhausted []string) ([]byte, error) {
	return json.MarshalIndent(NewDocument(g, paths, exhausted), "", "  ")
}
