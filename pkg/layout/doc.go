// Package layout places the nodes of a knowledge graph.
//
// # Overview
//
// The engine is specialised to the three-tier hierarchy root → course →
// module and to small graphs (tens of nodes). It favours deterministic,
// explainable placement over optimality:
//
//  1. The root sits at the origin.
//  2. Course i goes to quadrant i mod 4. Courses sharing a quadrant spread
//     evenly over a bounded span around the quadrant bisector, all at the
//     same radius. Collisions are resolved by scanning other angles inside
//     the quadrant; the radius never changes.
//  3. Modules fan out around their course's angle on rings beyond the
//     course radius, strictly inside the course's quadrant. Collisions are
//     resolved by a bounded spiral search.
//  4. Concepts (and modules when there are no courses) go on an outer ring.
//  5. A few damped relaxation iterations separate crowded boxes and pull
//     connected pairs toward an ideal edge length.
//  6. An angular pass rotates neighbours about a shared node until edges
//     leaving it are at least 15° apart.
//
// # Usage
//
//	eng := layout.New(nil)
//	res := eng.Layout(g, nil)
//	g = g.WithPositions(res.Positions)
//
// [Engine.Layout] is a pure function of its inputs and the engine's seed:
// the same ordered graph always yields bit-identical coordinates. Layout
// never fails; nodes whose collision search ran out of attempts keep their
// desired position and are listed in [Result.Exhausted].
//
// # Quadrants
//
// Quadrant q spans the angles [q·90°, (q+1)·90°) measured from the positive
// x axis. Screen coordinates grow downward, so quadrant 0 is drawn at the
// lower right.
package layout
