package graph

import (
	"strings"

	"github.com/matzehuels/knowledgemap/pkg/geom"
)

// =============================================================================
// Kind - Node Variant
// =============================================================================

// Kind is the tagged variant of a node.
type Kind int

// Node kinds. Lessons are not a kind: they are dropped at ingestion.
const (
	KindRoot Kind = iota
	KindCourse
	KindModule
	KindConcept
)

var kindNames = [...]string{"root", "course", "module", "concept"}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	kind, ok := parseKind(string(b))
	if !ok {
		return &UnknownKindError{Value: string(b)}
	}
	*k = kind
	return nil
}

// UnknownKindError is returned when a kind name is not recognized.
type UnknownKindError struct{ Value string }

func (e *UnknownKindError) Error() string { return "unknown node kind: " + e.Value }

// parseKind maps a wire type to a Kind. Lessons and unknown types report false.
func parseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "root", "track":
		return KindRoot, true
	case "course":
		return KindCourse, true
	case "module":
		return KindModule, true
	case "concept":
		return KindConcept, true
	default:
		return 0, false
	}
}

// =============================================================================
// Status
// =============================================================================

// Status is the learner-facing state of a node.
type Status string

// Node statuses. Open and Closed are used by platform-defined nodes.
const (
	StatusLocked    Status = "locked"
	StatusAvailable Status = "available"
	StatusCurrent   Status = "current"
	StatusCompleted Status = "completed"
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
)

// ParseStatus normalizes a wire status. Unknown or empty values map to
// StatusAvailable.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "locked":
		return StatusLocked
	case "current", "in-progress", "in_progress":
		return StatusCurrent
	case "completed", "done":
		return StatusCompleted
	case "open":
		return StatusOpen
	case "closed":
		return StatusClosed
	default:
		return StatusAvailable
	}
}

// =============================================================================
// EdgeType
// =============================================================================

// EdgeType is the pedagogical relation carried by an edge.
type EdgeType string

// Edge types.
const (
	EdgeRequired    EdgeType = "required"
	EdgeAlternative EdgeType = "alternative"
	EdgeRecommended EdgeType = "recommended"
)

// ParseEdgeType normalizes a wire edge type. Unknown values map to EdgeRequired.
func ParseEdgeType(s string) EdgeType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alternative":
		return EdgeAlternative
	case "recommended":
		return EdgeRecommended
	default:
		return EdgeRequired
	}
}

// =============================================================================
// Node and Edge
// =============================================================================

// Node is a normalized graph node. Node values are treated as immutable:
// layout results are merged into copies with [Positions.Apply].
type Node struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	EntityID string  `json:"entity_id,omitempty"`
	Title    string  `json:"title"`
	Status   Status  `json:"status"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     float64 `json:"size,omitempty"` // 0 means unset
}

// Pos returns the node's coordinates.
func (n Node) Pos() geom.Point { return geom.Pt(n.X, n.Y) }

// IsRoot reports whether the node is the graph root.
func (n Node) IsRoot() bool { return n.Kind == KindRoot }

// Lines splits the title into display lines.
func (n Node) Lines() []string { return strings.Split(n.Title, "\n") }

// ProgressID returns the identifier used to fetch module progress: the
// entity ID when known, otherwise the node ID.
func (n Node) ProgressID() string {
	if n.EntityID != "" {
		return n.EntityID
	}
	return n.ID
}

// Edge is a normalized edge whose endpoints both exist in its graph.
type Edge struct {
	ID       string   `json:"id"`
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Type     EdgeType `json:"type"`
}

// Touches reports whether the edge has id as one of its endpoints.
func (e Edge) Touches(id string) bool { return e.SourceID == id || e.TargetID == id }

// Other returns the endpoint opposite to id.
func (e Edge) Other(id string) string {
	if e.SourceID == id {
		return e.TargetID
	}
	return e.SourceID
}

// =============================================================================
// Graph
// =============================================================================

// Graph is a normalized knowledge graph. Node and edge order follows the
// input order, which the layout engine relies on for determinism.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Index returns a lookup from node ID to node.
func (g Graph) Index() map[string]Node {
	idx := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		idx[n.ID] = n
	}
	return idx
}

// Root returns the root node, if any.
func (g Graph) Root() (Node, bool) {
	for _, n := range g.Nodes {
		if n.IsRoot() {
			return n, true
		}
	}
	return Node{}, false
}

// Node returns the node with the given ID.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// OfKind returns the nodes of kind k in input order.
func (g Graph) OfKind(k Kind) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// Degree returns the number of edges touching each node.
func (g Graph) Degree() map[string]int {
	deg := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		deg[e.SourceID]++
		deg[e.TargetID]++
	}
	return deg
}

// IsEmpty reports whether the graph has no nodes.
func (g Graph) IsEmpty() bool { return len(g.Nodes) == 0 }

// =============================================================================
// Positions
// =============================================================================

// Positions maps node IDs to coordinates. It is the output of a layout run.
type Positions map[string]geom.Point

// Apply returns a copy of nodes with coordinates taken from p. Nodes
// without an entry keep their coordinates.
func (p Positions) Apply(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		if pt, ok := p[n.ID]; ok {
			n.X, n.Y = pt.X, pt.Y
		}
		out[i] = n
	}
	return out
}

// WithPositions returns a copy of g whose nodes carry the positions in p.
func (g Graph) WithPositions(p Positions) Graph {
	return Graph{Nodes: p.Apply(g.Nodes), Edges: append([]Edge(nil), g.Edges...)}
}

// Progress is a module's lesson completion, as shown in the node detail panel.
type Progress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}
