// Package route computes the curves drawn for knowledge-graph edges.
//
// Every edge becomes one quadratic Bézier curve. Curves start and end on a
// circle around each node (sized by node kind) and bow sideways by an
// amount proportional to their length, capped so long edges do not swing
// wide.
//
// Edges that leave a node at nearly the same angle are hard to tell apart.
// Before building curves the router runs a micro pass over each node's
// departure bearings and spreads any adjacent pair closer than the minimum
// angle. The pass uses current positions only, so it adapts whenever
// nodes move.
package route

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/matzehuels/knowledgemap/pkg/geom"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/layout"
)

// Options configures the router. Zero fields take their default.
type Options struct {
	Clearance  float64 // gap between a node's circle and the curve end
	Bow        float64 // control point offset as a fraction of the chord
	MaxBow     float64 // cap on the control point offset
	MinAngle   float64 // degrees between adjacent departures at a node
	Iterations int     // micro pass budget

	Width            float64
	Opacity          float64
	HighlightScale   float64 // stroke width multiplier for selected edges
	HighlightOpacity float64
}

var defaultOpts = Options{
	Clearance:        6,
	Bow:              0.18,
	MaxBow:           60,
	MinAngle:         15,
	Iterations:       10,
	Width:            1.6,
	Opacity:          0.55,
	HighlightScale:   1.75,
	HighlightOpacity: 0.95,
}

// DefaultOptions returns the default router configuration.
func DefaultOptions() Options { return defaultOpts }

// Router builds edge paths. It holds no per-call state.
type Router struct {
	opts Options
}

// New creates a router. A nil opts uses [DefaultOptions].
func New(opts *Options) *Router {
	if opts == nil {
		return &Router{opts: defaultOpts}
	}
	o := *opts
	d := defaultOpts
	for _, f := range []struct {
		v   *float64
		def float64
	}{
		{&o.Clearance, d.Clearance}, {&o.Bow, d.Bow}, {&o.MaxBow, d.MaxBow},
		{&o.MinAngle, d.MinAngle}, {&o.Width, d.Width}, {&o.Opacity, d.Opacity},
		{&o.HighlightScale, d.HighlightScale}, {&o.HighlightOpacity, d.HighlightOpacity},
	} {
		if *f.v <= 0 || !geom.IsFinite(*f.v) {
			*f.v = f.def
		}
	}
	if o.Iterations <= 0 {
		o.Iterations = d.Iterations
	}
	return &Router{opts: o}
}

// Path is the routed curve of one edge.
type Path struct {
	EdgeID   string         `json:"edge_id"`
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Type     graph.EdgeType `json:"type"`

	Start   geom.Point `json:"start"`
	Control geom.Point `json:"control"`
	End     geom.Point `json:"end"`

	Width       float64 `json:"width"`
	Opacity     float64 `json:"opacity"`
	Dashed      bool    `json:"dashed,omitempty"`
	Highlighted bool    `json:"highlighted,omitempty"`
}

// D returns the path as SVG path data.
func (p Path) D() string {
	return fmt.Sprintf("M %s %s Q %s %s %s %s",
		num(p.Start.X), num(p.Start.Y),
		num(p.Control.X), num(p.Control.Y),
		num(p.End.X), num(p.End.Y))
}

// At evaluates the curve at t in [0, 1].
func (p Path) At(t float64) geom.Point {
	a := geom.Lerp(p.Start, p.Control, t)
	b := geom.Lerp(p.Control, p.End, t)
	return geom.Lerp(a, b, t)
}

// EndAngle returns the direction of travel at the end of the curve, used
// to orient arrowheads.
func (p Path) EndAngle() float64 { return p.Control.BearingTo(p.End) }

func num(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// NodeRadius returns the distance from a node's centre at which its edges
// start.
func NodeRadius(n graph.Node) float64 {
	var r float64
	switch n.Kind {
	case graph.KindRoot:
		return layout.RootRadius(n.Title)
	case graph.KindCourse:
		r = 30
	case graph.KindModule:
		r = 22
	default:
		r = 16
	}
	if n.Size > 0 {
		r *= n.Size / 40
	}
	return r
}

// =============================================================================
// Routing
// =============================================================================

// end identifies one end of a routed edge.
type end struct {
	edge   int
	source bool
}

// Route returns one path per edge whose endpoints are both present in
// nodes, in edge order. Edges touching selectedID are highlighted. Edges
// referencing missing nodes, and self loops, are left out.
func (rt *Router) Route(nodes []graph.Node, edges []graph.Edge, selectedID string) []Path {
	idx := make(map[string]graph.Node, len(nodes))
	for _, n := range nodes {
		idx[n.ID] = n
	}

	var live []graph.Edge
	for _, e := range edges {
		_, okS := idx[e.SourceID]
		_, okT := idx[e.TargetID]
		if okS && okT && e.SourceID != e.TargetID {
			live = append(live, e)
		}
	}

	bearings := rt.bearings(idx, live)

	paths := make([]Path, 0, len(live))
	for i, e := range live {
		src, dst := idx[e.SourceID], idx[e.TargetID]
		start := src.Pos().Add(geom.Polar(NodeRadius(src)+rt.opts.Clearance, bearings[end{i, true}]))
		stop := dst.Pos().Add(geom.Polar(NodeRadius(dst)+rt.opts.Clearance, bearings[end{i, false}]))

		chord := stop.Sub(start)
		bow := math.Min(rt.opts.Bow*chord.Len(), rt.opts.MaxBow)
		control := geom.Lerp(start, stop, 0.5).Add(chord.Unit().Perp().Scale(bow))

		p := Path{
			EdgeID:   e.ID,
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			Type:     e.Type,
			Start:    start,
			Control:  control,
			End:      stop,
			Width:    rt.opts.Width,
			Opacity:  rt.opts.Opacity,
			Dashed:   e.Type == graph.EdgeAlternative,
		}
		if selectedID != "" && e.Touches(selectedID) {
			p.Highlighted = true
			p.Width *= rt.opts.HighlightScale
			p.Opacity = rt.opts.HighlightOpacity
		}
		paths = append(paths, p)
	}
	return paths
}

// bearings computes the corrected departure bearing of every edge end.
func (rt *Router) bearings(idx map[string]graph.Node, edges []graph.Edge) map[end]float64 {
	out := make(map[end]float64, 2*len(edges))
	at := make(map[string][]end)
	var order []string

	for i, e := range edges {
		src, dst := idx[e.SourceID], idx[e.TargetID]
		out[end{i, true}] = geom.NormalizeAngle(src.Pos().BearingTo(dst.Pos()))
		out[end{i, false}] = geom.NormalizeAngle(dst.Pos().BearingTo(src.Pos()))
		for _, x := range []struct {
			id string
			e  end
		}{{e.SourceID, end{i, true}}, {e.TargetID, end{i, false}}} {
			if _, ok := at[x.id]; !ok {
				order = append(order, x.id)
			}
			at[x.id] = append(at[x.id], x.e)
		}
	}

	minGap := geom.Deg(rt.opts.MinAngle)
	for _, id := range order {
		rt.spread(at[id], out, minGap)
	}
	return out
}

// slack pushes repaired gaps strictly past the minimum so the pass settles.
var slack = geom.Deg(0.05)

// spread runs the micro pass for the edge ends meeting at one node. Runs of
// adjacent bearings closer than minGap are laid out again symmetrically
// about the middle of the run; runs that grow into their neighbours merge
// on the next iteration.
func (rt *Router) spread(ends []end, bearings map[end]float64, minGap float64) {
	n := len(ends)
	if n < 2 {
		return
	}
	step := minGap + slack
	if float64(n)*step > 2*math.Pi {
		// more edges than fit: the best possible is an even spread
		step = 2 * math.Pi / float64(n)
		minGap = step - 1e-9
	}

	sorted := slices.Clone(ends)
	for range rt.opts.Iterations {
		slices.SortStableFunc(sorted, func(a, b end) int {
			return cmp.Compare(bearings[a], bearings[b])
		})
		gap := func(i int) float64 {
			return geom.NormalizeAngle(bearings[sorted[(i+1)%n]] - bearings[sorted[i]])
		}

		// Start right after the widest gap so that no run wraps past the
		// starting point.
		widest := 0
		for i := 1; i < n; i++ {
			if gap(i) > gap(widest) {
				widest = i
			}
		}
		first := (widest + 1) % n

		changed := false
		for i := 0; i < n; {
			j := i
			span := 0.0
			for j+1 < n && gap((first+j)%n) < minGap {
				span += gap((first + j) % n)
				j++
			}
			if j > i {
				lo := bearings[sorted[(first+i)%n]]
				mid := lo + span/2
				m := j - i + 1
				for k := 0; k < m; k++ {
					e := sorted[(first+i+k)%n]
					bearings[e] = geom.NormalizeAngle(mid + (float64(k)-float64(m-1)/2)*step)
				}
				changed = true
			}
			i = j + 1
		}
		if !changed {
			return
		}
	}
}
