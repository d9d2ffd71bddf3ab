// Package geom provides the small geometric toolkit shared by the layout
// engine, the edge router and the viewport: points, angles, axis-aligned
// boxes and a seeded random source.
//
// All functions are pure. Angles are in radians unless a name says
// otherwise.
package geom

import (
	"math"
	"math/rand/v2"
)

// =============================================================================
// Point
// =============================================================================

// Point is a 2D coordinate or vector.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Polar returns the point at radius r and angle a around the origin.
func Polar(r, a float64) Point { return Point{X: r * math.Cos(a), Y: r * math.Sin(a)} }

func (p Point) Add(q Point) Point         { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point         { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Scale(k float64) Point     { return Point{p.X * k, p.Y * k} }
func (p Point) Len() float64              { return math.Hypot(p.X, p.Y) }
func (p Point) Dist(q Point) float64      { return p.Sub(q).Len() }
func (p Point) Angle() float64            { return math.Atan2(p.Y, p.X) }
func (p Point) BearingTo(q Point) float64 { return q.Sub(p).Angle() }

// Perp returns p rotated by +90°.
func (p Point) Perp() Point { return Point{-p.Y, p.X} }

// Unit returns p scaled to length 1, or the zero point if p is zero.
func (p Point) Unit() Point {
	l := p.Len()
	if l == 0 {
		return Point{}
	}
	return p.Scale(1 / l)
}

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool { return IsFinite(p.X) && IsFinite(p.Y) }

// RotateAbout rotates p by a around center, preserving its distance to center.
func (p Point) RotateAbout(center Point, a float64) Point {
	s, c := math.Sincos(a)
	d := p.Sub(center)
	return center.Add(Point{d.X*c - d.Y*s, d.X*s + d.Y*c})
}

// Lerp interpolates between p and q.
func Lerp(p, q Point, t float64) Point { return p.Add(q.Sub(p).Scale(t)) }

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// =============================================================================
// Angles
// =============================================================================

// Deg converts degrees to radians.
func Deg(d float64) float64 { return d * math.Pi / 180 }

// ToDeg converts radians to degrees.
func ToDeg(r float64) float64 { return r * 180 / math.Pi }

// NormalizeAngle maps a into [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// AngleDiff returns the signed smallest rotation from a to b, in (-π, π].
func AngleDiff(a, b float64) float64 {
	d := NormalizeAngle(b - a)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	return d
}

// =============================================================================
// Boxes
// =============================================================================

// Size is the width and height of a node footprint.
type Size struct {
	W, H float64
}

// Box is an axis-aligned rectangle described by its center and size.
type Box struct {
	Center Point
	Size   Size
}

// BoxAt returns the box of size s centered at p.
func BoxAt(p Point, s Size) Box { return Box{Center: p, Size: s} }

// Overlaps reports whether a and b, each grown by margin/2 on every side,
// intersect. Touching edges do not count as an overlap.
func (a Box) Overlaps(b Box, margin float64) bool {
	dx := math.Abs(a.Center.X - b.Center.X)
	dy := math.Abs(a.Center.Y - b.Center.Y)
	return dx < (a.Size.W+b.Size.W)/2+margin && dy < (a.Size.H+b.Size.H)/2+margin
}

// Gap returns the distance between the borders of a and b along the axis
// where they are closest to separating. Negative values mean overlap depth.
func (a Box) Gap(b Box) float64 {
	gx := math.Abs(a.Center.X-b.Center.X) - (a.Size.W+b.Size.W)/2
	gy := math.Abs(a.Center.Y-b.Center.Y) - (a.Size.H+b.Size.H)/2
	return math.Max(gx, gy)
}

// =============================================================================
// Random
// =============================================================================

// Rand is a deterministic random source. Two Rands created with the same
// seed produce the same sequence.
type Rand struct {
	r *rand.Rand
}

// NewRand creates a PCG-backed random source from seed.
func NewRand(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0xdeadbeef))}
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 { return r.r.Float64() }

// Range returns a value in [lo, hi).
func (r *Rand) Range(lo, hi float64) float64 { return lo + r.r.Float64()*(hi-lo) }

// Direction returns a random unit vector.
func (r *Rand) Direction() Point { return Polar(1, r.Range(0, 2*math.Pi)) }
