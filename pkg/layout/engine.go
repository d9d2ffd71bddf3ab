package layout

import (
	"cmp"
	"math"
	"slices"

	"github.com/matzehuels/knowledgemap/pkg/geom"
	"github.com/matzehuels/knowledgemap/pkg/graph"
)

// Engine computes node positions. An Engine is immutable and safe for
// concurrent use; every call to Layout starts its own random source from
// the configured seed.
type Engine struct {
	opts Options
}

// New creates an engine. A nil opts uses [DefaultOptions].
func New(opts *Options) *Engine {
	if opts == nil {
		return &Engine{opts: defaultOpts}
	}
	return &Engine{opts: opts.withDefaults()}
}

// Options returns the effective configuration.
func (e *Engine) Options() Options { return e.opts }

// Result is the outcome of a layout run.
type Result struct {
	// Positions holds a coordinate for every node of the input graph.
	Positions graph.Positions `json:"positions"`
	// Exhausted lists nodes whose collision search ran out of attempts, in
	// the order they were given up on. Only these nodes may overlap.
	Exhausted []string `json:"exhausted,omitempty"`
	// Quadrants maps course and module IDs to their quadrant.
	Quadrants map[string]int `json:"quadrants,omitempty"`
}

// IsExhausted reports whether id is listed in Exhausted.
func (r Result) IsExhausted(id string) bool {
	return slices.Contains(r.Exhausted, id)
}

// Layout places every node of g. The graph is not modified.
func (e *Engine) Layout(g graph.Graph, hints Hints) Result {
	r := newRun(e.opts, g, hints)
	r.placeRoot()
	r.placeCourses()
	r.placeModules()
	r.placeOuter()
	r.relax()
	r.resolveAngles()
	r.project()
	r.separate()
	return r.result()
}

// =============================================================================
// Run State
// =============================================================================

// run holds the mutable state of one layout computation. Node order always
// follows the input so that results do not depend on map iteration.
type run struct {
	opts Options
	rng  *geom.Rand

	nodes []graph.Node
	index map[string]int
	pos   map[string]geom.Point
	size  map[string]geom.Size

	root     string
	courses  []string
	children map[string][]string // course -> modules, input order
	courseOf map[string]string   // module -> course
	outer    []string            // concepts and unattached modules
	quadrant map[string]int

	adj       map[string][]string // distinct neighbours in edge order
	edges     []graph.Edge
	placed    []string
	exhausted []string
	isExh     map[string]bool
}

func newRun(opts Options, g graph.Graph, hints Hints) *run {
	r := &run{
		opts:     opts,
		rng:      geom.NewRand(opts.Seed),
		nodes:    g.Nodes,
		index:    make(map[string]int, len(g.Nodes)),
		pos:      make(map[string]geom.Point, len(g.Nodes)),
		size:     make(map[string]geom.Size, len(g.Nodes)),
		children: make(map[string][]string),
		courseOf: make(map[string]string),
		quadrant: make(map[string]int),
		adj:      make(map[string][]string),
		isExh:    make(map[string]bool),
	}
	for i, n := range g.Nodes {
		r.index[n.ID] = i
		r.size[n.ID] = Footprint(n)
	}
	for _, e := range g.Edges {
		if _, ok := r.index[e.SourceID]; !ok {
			continue
		}
		if _, ok := r.index[e.TargetID]; !ok || e.SourceID == e.TargetID {
			continue
		}
		r.edges = append(r.edges, e)
		r.link(e.SourceID, e.TargetID)
		r.link(e.TargetID, e.SourceID)
	}
	r.partition(hints)
	return r
}

func (r *run) link(a, b string) {
	for _, x := range r.adj[a] {
		if x == b {
			return
		}
	}
	r.adj[a] = append(r.adj[a], b)
}

// partition splits nodes into root, courses and modules and associates
// every module with a course: hint first, then the first edge joining the
// module to a course, then the course with the fewest modules.
func (r *run) partition(hints Hints) {
	var modules []string
	for _, n := range r.nodes {
		switch n.Kind {
		case graph.KindRoot:
			if r.root == "" {
				r.root = n.ID
			} else {
				r.outer = append(r.outer, n.ID)
			}
		case graph.KindCourse:
			r.courses = append(r.courses, n.ID)
		case graph.KindModule:
			modules = append(modules, n.ID)
		default:
			r.outer = append(r.outer, n.ID)
		}
	}

	if len(r.courses) == 0 {
		r.outer = append(r.outer, modules...)
		r.sortByInput(r.outer)
		return
	}

	var orphans []string
	for _, m := range modules {
		if c, ok := hints[m]; ok && r.isCourse(c) {
			r.attach(m, c)
			continue
		}
		if c := r.edgeCourse(m); c != "" {
			r.attach(m, c)
			continue
		}
		orphans = append(orphans, m)
	}
	for _, m := range orphans {
		best := r.courses[0]
		for _, c := range r.courses[1:] {
			if len(r.children[c]) < len(r.children[best]) {
				best = c
			}
		}
		r.attach(m, best)
	}

	// children lists follow input order regardless of how each module was
	// associated.
	for _, c := range r.courses {
		r.sortByInput(r.children[c])
	}
}

func (r *run) sortByInput(ids []string) {
	slices.SortStableFunc(ids, func(a, b string) int { return cmp.Compare(r.index[a], r.index[b]) })
}

func (r *run) isCourse(id string) bool {
	i, ok := r.index[id]
	return ok && r.nodes[i].Kind == graph.KindCourse
}

func (r *run) edgeCourse(module string) string {
	for _, e := range r.edges {
		switch {
		case e.SourceID == module && r.isCourse(e.TargetID):
			return e.TargetID
		case e.TargetID == module && r.isCourse(e.SourceID):
			return e.SourceID
		}
	}
	return ""
}

func (r *run) attach(module, course string) {
	r.courseOf[module] = course
	r.children[course] = append(r.children[course], module)
}

// =============================================================================
// Collision Helpers
// =============================================================================

func (r *run) box(id string) geom.Box { return geom.BoxAt(r.pos[id], r.size[id]) }

// collisions counts placed nodes whose box overlaps id's box at p.
func (r *run) collisions(id string, p geom.Point) int {
	b := geom.BoxAt(p, r.size[id])
	n := 0
	for _, other := range r.placed {
		if other == id {
			continue
		}
		if b.Overlaps(r.box(other), r.opts.Margin) {
			n++
		}
	}
	return n
}

func (r *run) set(id string, p geom.Point) {
	if _, ok := r.pos[id]; !ok {
		r.placed = append(r.placed, id)
	}
	r.pos[id] = p
}

func (r *run) markExhausted(id string) {
	if !r.isExh[id] {
		r.isExh[id] = true
		r.exhausted = append(r.exhausted, id)
	}
}

// spiral searches outward from p for a collision-free point accepted by ok.
// It reports false when the attempt budget runs out.
func (r *run) spiral(id string, p geom.Point, ok func(geom.Point) bool) (geom.Point, bool) {
	phase := r.rng.Range(0, 2*math.Pi)
	for i := 1; i <= r.opts.SpiralAttempts; i++ {
		a := phase + r.opts.SpiralStep*float64(i)
		c := p.Add(geom.Polar(r.opts.SpiralGrowth*float64(i), a))
		if ok(c) && r.collisions(id, c) == 0 {
			return c, true
		}
	}
	return p, false
}

func (r *run) result() Result {
	res := Result{
		Positions: make(graph.Positions, len(r.nodes)),
		Exhausted: r.exhausted,
	}
	for _, n := range r.nodes {
		res.Positions[n.ID] = r.pos[n.ID]
	}
	if len(r.quadrant) > 0 {
		res.Quadrants = make(map[string]int, len(r.quadrant))
		for id, q := range r.quadrant {
			res.Quadrants[id] = q
		}
	}
	return res
}
