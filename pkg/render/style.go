package render

import "github.com/matzehuels/knowledgemap/pkg/graph"

// Palette colours.
const (
	ColorCompleted = "#10b981"
	ColorCurrent   = "#f59e0b"
	ColorAvailable = "#6366f1"
	ColorLocked    = "#9ca3af"
	ColorRoot      = "#1f2937"
	ColorEdge      = "#94a3b8"
	ColorHighlight = "#4f46e5"
	ColorText      = "#111827"
)

// StatusColor returns the fill colour of a node status. Open nodes share
// the available colour and closed nodes the locked one.
func StatusColor(s graph.Status) string {
	switch s {
	case graph.StatusCompleted:
		return ColorCompleted
	case graph.StatusCurrent:
		return ColorCurrent
	case graph.StatusLocked, graph.StatusClosed:
		return ColorLocked
	default:
		return ColorAvailable
	}
}

// NodeColor returns the fill colour of n.
func NodeColor(n graph.Node) string {
	if n.IsRoot() {
		return ColorRoot
	}
	return StatusColor(n.Status)
}

// EdgeColor returns the stroke colour of an edge.
func EdgeColor(highlighted bool) string {
	if highlighted {
		return ColorHighlight
	}
	return ColorEdge
}
