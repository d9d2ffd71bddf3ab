package layout

import (
	"math"

	"github.com/matzehuels/knowledgemap/pkg/geom"
)

func (r *run) placeRoot() {
	if r.root != "" {
		r.set(r.root, geom.Point{})
	}
}

// =============================================================================
// Courses
// =============================================================================

// placeCourses puts course i in quadrant i mod 4 at the course radius.
func (r *run) placeCourses() {
	n := len(r.courses)
	span := geom.Deg(r.opts.CourseSpan)
	for i, id := range r.courses {
		q := i % 4
		k := (n - q + 3) / 4 // courses sharing quadrant q
		j := i / 4

		want := bisector(q)
		if k > 1 {
			want += -span/2 + span*float64(j)/float64(k-1)
		}
		a := r.courseAngle(id, q, want)
		r.quadrant[id] = q
		r.set(id, geom.Polar(r.opts.CourseRadius, a))
	}
}

// courseAngle returns want if a course at that angle collides with nothing.
// Otherwise it scans the quadrant for the angle with the fewest collisions,
// preferring angles close to want. A scan that finds no free angle keeps
// want and marks the course exhausted.
func (r *run) courseAngle(id string, q int, want float64) float64 {
	R := r.opts.CourseRadius
	if r.collisions(id, geom.Polar(R, want)) == 0 {
		return want
	}

	lo := geom.Deg(float64(q)*90 + r.opts.QuadrantMargin)
	hi := geom.Deg(float64(q+1)*90 - r.opts.QuadrantMargin)
	step := geom.Deg(r.opts.CourseScanStep)

	best, bestHits, bestDist := want, math.MaxInt, math.Inf(1)
	for a := lo; a <= hi+1e-9; a += step {
		hits := r.collisions(id, geom.Polar(R, a))
		d := math.Abs(geom.AngleDiff(want, a))
		if hits < bestHits || (hits == bestHits && d < bestDist) {
			best, bestHits, bestDist = a, hits, d
		}
	}
	if bestHits > 0 {
		r.markExhausted(id)
		return want
	}
	return best
}

// =============================================================================
// Modules
// =============================================================================

// ringCapacity is the number of modules that fit on one ring.
func (r *run) ringCapacity() int {
	return int(math.Floor(r.opts.ModuleSpan/r.opts.MinSiblingAngle)) + 1
}

// placeModules fans each course's modules around the course angle on rings
// beyond the course radius.
func (r *run) placeModules() {
	capacity := r.ringCapacity()
	step := geom.Deg(r.opts.MinSiblingAngle)

	for _, c := range r.courses {
		kids := r.children[c]
		q := r.quadrant[c]
		cp := r.pos[c]
		ca := cp.Angle()
		rc := cp.Len()

		for j, m := range kids {
			ring := j / capacity
			idx := j % capacity
			count := min(capacity, len(kids)-ring*capacity)

			offsets := fan(count, step)
			offsets = r.fitQuadrant(ca, q, offsets)
			want := geom.Polar(rc+r.opts.ModuleGap*float64(ring+1), ca+offsets[idx])

			p := want
			if r.collisions(m, want) > 0 {
				var ok bool
				p, ok = r.spiral(m, want, func(c geom.Point) bool { return c.Len() > rc })
				if !ok {
					r.markExhausted(m)
				}
			}
			p = r.pullBack(p, q)
			r.quadrant[m] = q
			r.set(m, r.floorRadius(p, rc))
		}
	}
}

// fan returns count angular offsets spaced step apart and centred on zero.
func fan(count int, step float64) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = (float64(i) - float64(count-1)/2) * step
	}
	return out
}

// fitQuadrant shifts offsets around base so that every angle stays inside
// quadrant q. Offsets wider than the quadrant are compressed.
func (r *run) fitQuadrant(base float64, q int, offsets []float64) []float64 {
	if len(offsets) == 0 {
		return offsets
	}
	half := geom.Deg(45 - r.opts.QuadrantMargin)
	rel := geom.AngleDiff(bisector(q), base) // base relative to the bisector

	first, last := rel+offsets[0], rel+offsets[len(offsets)-1]
	if last-first > 2*half {
		k := 2 * half / (last - first)
		for i := range offsets {
			offsets[i] *= k
		}
		first, last = rel+offsets[0], rel+offsets[len(offsets)-1]
	}
	shift := 0.0
	switch {
	case first < -half:
		shift = -half - first
	case last > half:
		shift = half - last
	}
	for i := range offsets {
		offsets[i] += shift
	}
	return offsets
}

// pullBack moves a point that left quadrant q toward the quadrant bisector
// by a vector of bounded length, then clamps it into the quadrant.
func (r *run) pullBack(p geom.Point, q int) geom.Point {
	if r.inQuadrant(p, q) {
		return p
	}
	target := geom.Polar(p.Len(), bisector(q))
	v := target.Sub(p)
	if l := v.Len(); l > r.opts.MaxCorrection {
		v = v.Scale(r.opts.MaxCorrection / l)
	}
	return r.clampQuadrant(p.Add(v), q)
}

// inQuadrant reports whether p lies inside quadrant q, margins included.
func (r *run) inQuadrant(p geom.Point, q int) bool {
	half := geom.Deg(45 - r.opts.QuadrantMargin)
	return math.Abs(geom.AngleDiff(bisector(q), p.Angle())) <= half+1e-12
}

// clampQuadrant rotates p about the origin to the nearest angle inside
// quadrant q, keeping its radius.
func (r *run) clampQuadrant(p geom.Point, q int) geom.Point {
	half := geom.Deg(45 - r.opts.QuadrantMargin)
	d := geom.AngleDiff(bisector(q), p.Angle())
	if math.Abs(d) <= half {
		return p
	}
	d = math.Copysign(half, d)
	return geom.Polar(p.Len(), bisector(q)+d)
}

// floorRadius keeps a module beyond its course: at least half a ring gap
// farther from the origin than rc.
func (r *run) floorRadius(p geom.Point, rc float64) geom.Point {
	minR := rc + r.opts.ModuleGap/2
	if l := p.Len(); l < minR {
		if l == 0 {
			return geom.Polar(minR, 0)
		}
		return p.Scale(minR / l)
	}
	return p
}

// =============================================================================
// Outer Ring
// =============================================================================

// placeOuter spreads concepts (and modules without a course) evenly on a
// ring beyond the outermost module ring.
func (r *run) placeOuter() {
	if len(r.outer) == 0 {
		return
	}
	rings := 0
	capacity := r.ringCapacity()
	for _, c := range r.courses {
		rings = max(rings, (len(r.children[c])+capacity-1)/capacity)
	}
	radius := r.opts.CourseRadius + r.opts.ModuleGap*float64(rings+1)
	if len(r.courses) == 0 {
		radius = r.opts.CourseRadius
	}

	n := len(r.outer)
	for i, id := range r.outer {
		want := geom.Polar(radius, 2*math.Pi*(float64(i)+0.5)/float64(n))
		p := want
		if r.collisions(id, want) > 0 {
			var ok bool
			p, ok = r.spiral(id, want, func(c geom.Point) bool { return c.Len() > radius/2 })
			if !ok {
				r.markExhausted(id)
			}
		}
		r.set(id, p)
	}
}
