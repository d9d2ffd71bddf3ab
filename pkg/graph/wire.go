package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/matzehuels/knowledgemap/pkg/geom"
)

// =============================================================================
// Wire Format
// =============================================================================

// ID is a wire identifier. The backend emits string IDs, older clients
// numeric ones; both decode to the same string form.
type ID string

// UnmarshalJSON accepts JSON strings and numbers.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar.
func (id *ID) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*id = ""
	case string:
		*id = ID(t)
	case int:
		*id = ID(strconv.Itoa(t))
	case float64:
		*id = ID(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		*id = ID(fmt.Sprint(t))
	}
	return nil
}

// WireNode is a node as served by GET /graph/nodes.
type WireNode struct {
	ID       ID       `json:"id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"`
	EntityID ID       `json:"entity_id,omitempty" yaml:"entity_id,omitempty"`
	Title    string   `json:"title" yaml:"title"`
	Status   string   `json:"status,omitempty" yaml:"status,omitempty"`
	X        *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y        *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Size     *float64 `json:"size,omitempty" yaml:"size,omitempty"`
}

// WireEdge is an edge as served by GET /graph/edges.
type WireEdge struct {
	ID       ID     `json:"id" yaml:"id"`
	SourceID ID     `json:"source_id" yaml:"source_id"`
	TargetID ID     `json:"target_id" yaml:"target_id"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
}

// WireGraph is the file form of a graph: the two backend lists side by side.
type WireGraph struct {
	Nodes []WireNode `json:"nodes" yaml:"nodes"`
	Edges []WireEdge `json:"edges" yaml:"edges"`
}

// WireProgress is the body of GET /modules/{id}/progress.
type WireProgress struct {
	CompletedLessons int     `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	Progress         float64 `json:"progress"`
}

// ToProgress converts the wire body. The percentage is recomputed when the
// backend omits it.
func (w WireProgress) ToProgress() Progress {
	p := Progress{Completed: w.CompletedLessons, Total: w.TotalLessons, Percent: w.Progress}
	if p.Percent == 0 && p.Total > 0 {
		p.Percent = math.Round(float64(p.Completed) / float64(p.Total) * 100)
	}
	return p
}

// =============================================================================
// Normalization
// =============================================================================

// Report counts the adjustments made by [Normalize].
type Report struct {
	Lessons        int `json:"lessons"`         // lesson nodes excluded from the graph
	UnknownKinds   int `json:"unknown_kinds"`   // nodes with an unrecognized type
	MissingIDs     int `json:"missing_ids"`     // nodes or edges without an ID
	DuplicateIDs   int `json:"duplicate_ids"`   // repeated node IDs (first occurrence kept)
	ExtraRoots     int `json:"extra_roots"`     // roots beyond the first, demoted to concepts
	CoercedCoords  int `json:"coerced_coords"`  // nodes whose x or y was missing or non-finite
	DanglingEdges  int `json:"dangling_edges"`  // edges referencing a node that is not in the graph
	DuplicateEdges int `json:"duplicate_edges"` // repeated edge IDs (first occurrence kept)
	GeneratedEdges int `json:"generated_edges"` // edges that received a generated ID
}

// Dropped returns the number of wire items that did not make it into the graph.
func (r Report) Dropped() int {
	return r.Lessons + r.UnknownKinds + r.MissingIDs + r.DuplicateIDs + r.DanglingEdges + r.DuplicateEdges
}

// Normalize validates wire nodes and edges and converts them into a Graph.
// It never fails: invalid items are dropped or coerced and counted.
func Normalize(nodes []WireNode, edges []WireEdge) (Graph, Report) {
	var (
		g       Graph
		r       Report
		seen    = make(map[string]bool, len(nodes))
		hasRoot bool
	)

	for _, wn := range nodes {
		if wn.ID == "" {
			r.MissingIDs++
			continue
		}
		kind, ok := parseKind(wn.Type)
		if !ok {
			if wn.Type == "lesson" {
				r.Lessons++
			} else {
				r.UnknownKinds++
			}
			continue
		}
		id := string(wn.ID)
		if seen[id] {
			r.DuplicateIDs++
			continue
		}
		seen[id] = true

		if kind == KindRoot {
			if hasRoot {
				kind = KindConcept
				r.ExtraRoots++
			}
			hasRoot = true
		}

		x, okX := finite(wn.X)
		y, okY := finite(wn.Y)
		if !okX || !okY {
			r.CoercedCoords++
		}
		size, _ := finite(wn.Size)
		if size < 0 {
			size = 0
		}

		g.Nodes = append(g.Nodes, Node{
			ID:       id,
			Kind:     kind,
			EntityID: string(wn.EntityID),
			Title:    wn.Title,
			Status:   ParseStatus(wn.Status),
			X:        x,
			Y:        y,
			Size:     size,
		})
	}

	// Generated edge IDs must not collide with any ID present on the wire.
	reserved := make(map[string]bool, len(edges))
	for _, we := range edges {
		if we.ID != "" {
			reserved[string(we.ID)] = true
		}
	}
	used := make(map[string]bool, len(edges))

	for i, we := range edges {
		src, dst := string(we.SourceID), string(we.TargetID)
		if !seen[src] || !seen[dst] {
			r.DanglingEdges++
			continue
		}
		id := string(we.ID)
		if id == "" {
			id = fmt.Sprintf("edge-%d", i)
			for n := 1; reserved[id] || used[id]; n++ {
				id = fmt.Sprintf("edge-%d-%d", i, n)
			}
			r.GeneratedEdges++
		} else if used[id] {
			r.DuplicateEdges++
			continue
		}
		used[id] = true
		g.Edges = append(g.Edges, Edge{
			ID:       id,
			SourceID: src,
			TargetID: dst,
			Type:     ParseEdgeType(we.Type),
		})
	}

	return g, r
}

// finite dereferences v, reporting false (and returning 0) for nil or
// non-finite values.
func finite(v *float64) (float64, bool) {
	if v == nil || !geom.IsFinite(*v) {
		return 0, false
	}
	return *v, true
}

// ToWire converts a normalized graph back to the wire format.
func ToWire(g Graph) WireGraph {
	out := WireGraph{
		Nodes: make([]WireNode, len(g.Nodes)),
		Edges: make([]WireEdge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		x, y := n.X, n.Y
		wn := WireNode{
			ID:       ID(n.ID),
			Type:     n.Kind.String(),
			EntityID: ID(n.EntityID),
			Title:    n.Title,
			Status:   string(n.Status),
			X:        &x,
			Y:        &y,
		}
		if n.Size > 0 {
			s := n.Size
			wn.Size = &s
		}
		out.Nodes[i] = wn
	}
	for i, e := range g.Edges {
		out.Edges[i] = WireEdge{
			ID:       ID(e.ID),
			SourceID: ID(e.SourceID),
			TargetID: ID(e.TargetID),
			Type:     string(e.Type),
		}
	}
	return out
}
