package layout

import (
	"math"

	"github.com/matzehuels/knowledgemap/pkg/geom"
	"github.com/matzehuels/knowledgemap/pkg/graph"
)

// Options configures the layout engine. Zero fields take their default.
// Angles are in degrees.
type Options struct {
	Seed uint64

	CourseRadius   float64 // distance of every course from the root
	CourseSpan     float64 // angular span shared by courses in one quadrant
	CourseScanStep float64 // step of the alternative-angle scan
	QuadrantMargin float64 // keep-out band at each quadrant edge

	ModuleGap       float64 // radial distance between module rings
	ModuleSpan      float64 // angular span of one module ring
	MinSiblingAngle float64 // spacing between sibling modules

	SpiralStep     float64 // radians per spiral attempt
	SpiralGrowth   float64 // radius added per spiral attempt
	SpiralAttempts int
	MaxCorrection  float64 // longest quadrant pull-back vector

	Margin          float64 // minimum gap between node boxes
	RelaxIterations int
	Damping         float64
	IdealEdgeLength float64

	MinEdgeAngle  float64 // minimum angle between edges sharing a node
	AngularSweeps int
}

var defaultOpts = Options{
	Seed:            42,
	CourseRadius:    320,
	CourseSpan:      60,
	CourseScanStep:  2,
	QuadrantMargin:  5,
	ModuleGap:       200,
	ModuleSpan:      60,
	MinSiblingAngle: 20,
	SpiralStep:      0.7,
	SpiralGrowth:    8,
	SpiralAttempts:  100,
	MaxCorrection:   120,
	Margin:          12,
	RelaxIterations: 4,
	Damping:         0.5,
	IdealEdgeLength: 200,
	MinEdgeAngle:    15,
	AngularSweeps:   12,
}

// DefaultOptions returns the default engine configuration.
func DefaultOptions() Options { return defaultOpts }

func (o Options) withDefaults() Options {
	d := defaultOpts
	if o.Seed == 0 {
		o.Seed = d.Seed
	}
	fill := func(v *float64, def float64) {
		if *v <= 0 || !geom.IsFinite(*v) {
			*v = def
		}
	}
	fill(&o.CourseRadius, d.CourseRadius)
	fill(&o.CourseSpan, d.CourseSpan)
	fill(&o.CourseScanStep, d.CourseScanStep)
	fill(&o.QuadrantMargin, d.QuadrantMargin)
	fill(&o.ModuleGap, d.ModuleGap)
	fill(&o.ModuleSpan, d.ModuleSpan)
	fill(&o.MinSiblingAngle, d.MinSiblingAngle)
	fill(&o.SpiralStep, d.SpiralStep)
	fill(&o.SpiralGrowth, d.SpiralGrowth)
	fill(&o.MaxCorrection, d.MaxCorrection)
	fill(&o.Margin, d.Margin)
	fill(&o.Damping, d.Damping)
	fill(&o.IdealEdgeLength, d.IdealEdgeLength)
	fill(&o.MinEdgeAngle, d.MinEdgeAngle)
	if o.SpiralAttempts <= 0 {
		o.SpiralAttempts = d.SpiralAttempts
	}
	if o.RelaxIterations <= 0 {
		o.RelaxIterations = d.RelaxIterations
	}
	if o.AngularSweeps <= 0 {
		o.AngularSweeps = d.AngularSweeps
	}
	o.Damping = min(o.Damping, 1)
	o.QuadrantMargin = min(o.QuadrantMargin, 40)
	o.CourseSpan = min(o.CourseSpan, 90-2*o.QuadrantMargin)
	o.ModuleSpan = min(o.ModuleSpan, 90-2*o.QuadrantMargin)
	return o
}

// Hints maps a module ID to the course it belongs to. Hints take priority
// over edges when associating modules with courses.
type Hints map[string]string

// RootRadius returns the effective radius of a root label. Long titles
// enlarge the root so edges start outside the text.
func RootRadius(title string) float64 {
	return max(46, float64(longestLine(title))*4.2)
}

func longestLine(s string) int {
	longest, cur := 0, 0
	for _, r := range s {
		if r == '\n' {
			cur = 0
			continue
		}
		cur++
		longest = max(longest, cur)
	}
	return longest
}

// Footprint returns the collision box size of a node. A size hint scales
// the box relative to the default node size of 40.
func Footprint(n graph.Node) geom.Size {
	var s geom.Size
	switch n.Kind {
	case graph.KindRoot:
		r := RootRadius(n.Title)
		lines := len(n.Lines())
		s = geom.Size{W: 2*r + 16, H: 108 + 16*float64(lines-1)}
	case graph.KindCourse:
		s = geom.Size{W: 100, H: 64}
	case graph.KindModule:
		s = geom.Size{W: 88, H: 52}
	default:
		s = geom.Size{W: 64, H: 40}
	}
	if n.Size > 0 && n.Kind != graph.KindRoot {
		k := n.Size / 40
		s.W *= k
		s.H *= k
	}
	return s
}

// Quadrant returns the quadrant of p around the origin.
func Quadrant(p geom.Point) int {
	return int(geom.NormalizeAngle(p.Angle())/(math.Pi/2)) % 4
}

// bisector returns the angle halfway through quadrant q.
func bisector(q int) float64 { return geom.Deg(float64(q)*90 + 45) }
