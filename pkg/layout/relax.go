package layout

import (
	"cmp"
	"slices"

	"github.com/matzehuels/knowledgemap/pkg/geom"
)

// =============================================================================
// Relaxation
// =============================================================================

// relax runs damped iterations of box repulsion and edge springs. The root
// is a fixed obstacle. Hierarchy constraints are re-projected after every
// iteration.
func (r *run) relax() {
	ids := make([]string, 0, len(r.nodes))
	for _, n := range r.nodes {
		ids = append(ids, n.ID)
	}

	for range r.opts.RelaxIterations {
		disp := make(map[string]geom.Point, len(ids))
		push := func(id string, v geom.Point) {
			if id != r.root {
				disp[id] = disp[id].Add(v)
			}
		}

		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				gap := r.box(a).Gap(r.box(b))
				if gap >= r.opts.Margin {
					continue
				}
				dir := r.pos[a].Sub(r.pos[b]).Unit()
				if dir == (geom.Point{}) {
					dir = r.rng.Direction()
				}
				depth := r.opts.Margin - gap
				switch {
				case a == r.root:
					push(b, dir.Scale(-depth))
				case b == r.root:
					push(a, dir.Scale(depth))
				default:
					push(a, dir.Scale(depth/2))
					push(b, dir.Scale(-depth/2))
				}
			}
		}

		for _, n := range r.nodes {
			a := n.ID
			if a == r.root {
				continue
			}
			for _, b := range r.adj[a] {
				if b == r.root || r.index[b] < r.index[a] {
					continue
				}
				d := r.pos[b].Sub(r.pos[a])
				l := d.Len()
				if l == 0 {
					continue
				}
				u := d.Scale(1 / l)
				delta := (l - r.opts.IdealEdgeLength) / 2
				push(a, u.Scale(delta))
				push(b, u.Scale(-delta))
			}
		}

		for _, id := range ids {
			if v, ok := disp[id]; ok {
				r.pos[id] = r.pos[id].Add(v.Scale(r.opts.Damping))
			}
		}
		r.project()
	}
}

// project restores the hierarchy invariants: courses on the course radius
// inside their quadrant, modules inside their course's quadrant and beyond
// the course.
func (r *run) project() {
	for _, c := range r.courses {
		p, q := r.pos[c], r.quadrant[c]
		a := p.Angle()
		if p.Len() == 0 {
			a = bisector(q)
		}
		r.pos[c] = r.clampQuadrant(geom.Polar(r.opts.CourseRadius, a), q)
	}
	for m, c := range r.courseOf {
		q := r.quadrant[c]
		p := r.clampQuadrant(r.pos[m], q)
		r.pos[m] = r.floorRadius(p, r.pos[c].Len())
	}
}

// =============================================================================
// Overlap Repair
// =============================================================================

// separate checks every pair of boxes once relaxation and projection are
// done and moves one node of each overlapping pair to a free spot that keeps
// the hierarchy invariants. A node that cannot be moved is marked
// exhausted. A moved node collides with nothing, so one pass over the pairs
// is enough.
func (r *run) separate() {
	for i, a := range r.placed {
		for _, b := range r.placed[i+1:] {
			if r.isExh[a] || r.isExh[b] {
				continue
			}
			if !r.box(a).Overlaps(r.box(b), r.opts.Margin) {
				continue
			}
			mover := b
			if r.mobility(a) > r.mobility(b) {
				mover = a
			}
			r.nudge(mover)
		}
	}
}

// mobility ranks how freely id may move: the root never moves and courses
// are bound to their ring.
func (r *run) mobility(id string) int {
	switch {
	case id == r.root:
		return 0
	case r.isCourse(id):
		return 1
	default:
		return 2
	}
}

// nudge moves id to the nearest collision-free position allowed for its
// kind, or marks it exhausted.
func (r *run) nudge(id string) {
	if id == r.root {
		r.markExhausted(id)
		return
	}
	if r.isCourse(id) {
		q := r.quadrant[id]
		a := r.courseAngle(id, q, r.pos[id].Angle())
		r.pos[id] = geom.Polar(r.opts.CourseRadius, a)
		return
	}

	ok := func(c geom.Point) bool { return c.Len() > r.opts.CourseRadius/2 }
	if c, attached := r.courseOf[id]; attached {
		q := r.quadrant[c]
		minR := r.pos[c].Len() + r.opts.ModuleGap/2
		ok = func(p geom.Point) bool { return r.inQuadrant(p, q) && p.Len() >= minR }
	}
	p, found := r.spiral(id, r.pos[id], ok)
	if !found {
		r.markExhausted(id)
		return
	}
	r.pos[id] = p
}

// =============================================================================
// Angular Conflicts
// =============================================================================

// angleSlack is added to every correction so that repaired gaps end
// strictly above the minimum.
var angleSlack = geom.Deg(0.05)

type bearing struct {
	id    string
	angle float64
}

// resolveAngles rotates neighbours about shared nodes until every pair of
// adjacent edges at a node is at least MinEdgeAngle apart, or the sweep
// budget runs out.
func (r *run) resolveAngles() {
	minGap := geom.Deg(r.opts.MinEdgeAngle)
	for range r.opts.AngularSweeps {
		moved := false
		for _, n := range r.nodes {
			if r.spreadAt(n.ID, minGap) {
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}

// spreadAt repeatedly repairs the smallest bearing gap at id. It reports
// whether any neighbour moved.
func (r *run) spreadAt(id string, minGap float64) bool {
	nbrs := r.adj[id]
	if len(nbrs) < 2 {
		return false
	}
	center := r.pos[id]
	moved := false
	for range 4 * len(nbrs) {
		bs := r.bearings(id)
		if len(bs) < 2 {
			return moved
		}
		i, gap := smallestGap(bs)
		if gap >= minGap {
			return moved
		}
		a, b := bs[i], bs[(i+1)%len(bs)]
		deficit := minGap - gap + angleSlack

		var da, db float64
		pa, pb := r.pinned(id, a.id), r.pinned(id, b.id)
		switch {
		case pa && pb:
			return moved
		case pa:
			db = deficit
		case pb:
			da = -deficit
		default:
			da, db = -deficit/2, deficit/2
		}
		r.pos[a.id] = r.pos[a.id].RotateAbout(center, da)
		r.pos[b.id] = r.pos[b.id].RotateAbout(center, db)
		moved = true
	}
	return moved
}

// bearings returns the angles from id to its neighbours, sorted.
// Neighbours sitting on id have no bearing and are skipped.
func (r *run) bearings(id string) []bearing {
	center := r.pos[id]
	bs := make([]bearing, 0, len(r.adj[id]))
	for _, nb := range r.adj[id] {
		d := r.pos[nb].Sub(center)
		if d.Len() < 1e-9 {
			continue
		}
		bs = append(bs, bearing{id: nb, angle: geom.NormalizeAngle(d.Angle())})
	}
	slices.SortStableFunc(bs, func(x, y bearing) int { return cmp.Compare(x.angle, y.angle) })
	return bs
}

// smallestGap returns the index i whose gap to bs[i+1] (wrapping around) is
// the smallest, and that gap.
func smallestGap(bs []bearing) (int, float64) {
	best, bestGap := 0, 7.0
	for i := range bs {
		next := bs[(i+1)%len(bs)]
		g := geom.NormalizeAngle(next.angle - bs[i].angle)
		if g < bestGap {
			best, bestGap = i, g
		}
	}
	return best, bestGap
}

// pinned reports whether nb must not rotate about center. The root never
// moves, and a course only rotates about the origin so that it keeps the
// course radius.
func (r *run) pinned(center, nb string) bool {
	if nb == r.root {
		return true
	}
	if r.isCourse(nb) {
		return r.pos[center].Len() > 1e-9
	}
	return false
}
