// Package viewport implements the pan/zoom state machine of the graph view.
//
// A [Controller] converts raw input (buttons, wheel, pointer drags, touch)
// into a view transform:
//
//	screen = world·zoom + pan
//
// The controller is an explicit state machine over [Idle], [Dragging],
// [TouchPanning] and [Pinching]. Every transition is synchronous; the
// controller is not safe for concurrent use and callers serialise access.
//
// Zoom always stays within [MinZoom, MaxZoom]. Non-finite input is ignored.
package viewport

import (
	"fmt"
	"math"

	"github.com/matzehuels/knowledgemap/pkg/geom"
)

// State is the gesture state of a controller.
type State int

// Gesture states.
const (
	Idle State = iota
	Dragging
	TouchPanning
	Pinching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case TouchPanning:
		return "touch-panning"
	case Pinching:
		return "pinching"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a controller. Zero fields take their default.
type Options struct {
	MinZoom          float64
	MaxZoom          float64
	ZoomStep         float64 // factor applied by ZoomIn and ZoomOut
	WheelThreshold   float64 // |dy| below this is read as a trackpad zoom
	WheelSensitivity float64 // zoom = exp(-dy·sensitivity)
	DragSpeed        float64 // pan acceleration for pointer drags
}

var defaultOpts = Options{
	MinZoom:          0.3,
	MaxZoom:          3,
	ZoomStep:         1.2,
	WheelThreshold:   40,
	WheelSensitivity: 0.01,
	DragSpeed:        4,
}

// DefaultOptions returns the default controller configuration.
func DefaultOptions() Options { return defaultOpts }

// Transform is the view transform: screen = world·Zoom + Pan.
type Transform struct {
	Zoom float64    `json:"zoom"`
	Pan  geom.Point `json:"pan"`
}

// SVG returns the transform as an SVG transform attribute value.
func (t Transform) SVG() string {
	return fmt.Sprintf("translate(%.2f %.2f) scale(%.4f)", t.Pan.X, t.Pan.Y, t.Zoom)
}

// WheelEvent is a wheel or trackpad scroll at a screen position.
type WheelEvent struct {
	DX, DY   float64
	At       geom.Point
	Modifier bool // ctrl or meta held
}

// Controller owns the zoom and pan of one view.
type Controller struct {
	opts  Options
	size  geom.Size
	zoom  float64
	pan   geom.Point
	state State

	// pointer drag
	origin    geom.Point
	panAtDown geom.Point

	// touch tracking, re-baselined whenever the touch count changes
	lastTouch geom.Point
	lastMid   geom.Point
	lastDist  float64

	// OnTransition, if set, is called after every state change.
	OnTransition func(from, to State)
}

// New creates a controller for a viewport of the given size. A nil opts
// uses [DefaultOptions].
func New(width, height float64, opts *Options) *Controller {
	o := defaultOpts
	if opts != nil {
		o = *opts
		d := defaultOpts
		for _, f := range []struct {
			v   *float64
			def float64
		}{
			{&o.MinZoom, d.MinZoom}, {&o.MaxZoom, d.MaxZoom}, {&o.ZoomStep, d.ZoomStep},
			{&o.WheelThreshold, d.WheelThreshold}, {&o.WheelSensitivity, d.WheelSensitivity},
			{&o.DragSpeed, d.DragSpeed},
		} {
			if *f.v <= 0 || !geom.IsFinite(*f.v) {
				*f.v = f.def
			}
		}
		if o.MaxZoom < o.MinZoom {
			o.MinZoom, o.MaxZoom = o.MaxZoom, o.MinZoom
		}
	}
	c := &Controller{opts: o, zoom: 1}
	c.Resize(width, height)
	return c
}

// Zoom returns the current zoom factor.
func (c *Controller) Zoom() float64 { return c.zoom }

// Pan returns the current pan offset in screen units.
func (c *Controller) Pan() geom.Point { return c.pan }

// State returns the current gesture state.
func (c *Controller) State() State { return c.state }

// Size returns the viewport size.
func (c *Controller) Size() geom.Size { return c.size }

// Transform returns the current view transform.
func (c *Controller) Transform() Transform { return Transform{Zoom: c.zoom, Pan: c.pan} }

// SetTransform restores a transform, clamping the zoom.
func (c *Controller) SetTransform(t Transform) {
	if !geom.IsFinite(t.Zoom) || !t.Pan.Finite() || t.Zoom <= 0 {
		return
	}
	c.zoom = c.clamp(t.Zoom)
	c.pan = t.Pan
}

// Resize sets the viewport size. Non-positive sizes are ignored.
func (c *Controller) Resize(width, height float64) {
	if width > 0 && height > 0 && geom.IsFinite(width) && geom.IsFinite(height) {
		c.size = geom.Size{W: width, H: height}
	}
}

// ToScreen maps a world point to screen coordinates.
func (c *Controller) ToScreen(w geom.Point) geom.Point { return w.Scale(c.zoom).Add(c.pan) }

// ToWorld maps a screen point to world coordinates.
func (c *Controller) ToWorld(s geom.Point) geom.Point { return s.Sub(c.pan).Scale(1 / c.zoom) }

func (c *Controller) center() geom.Point { return geom.Pt(c.size.W/2, c.size.H/2) }

func (c *Controller) to(s State) {
	if s == c.state {
		return
	}
	from := c.state
	c.state = s
	if c.OnTransition != nil {
		c.OnTransition(from, s)
	}
}

func (c *Controller) clamp(z float64) float64 {
	return math.Max(c.opts.MinZoom, math.Min(c.opts.MaxZoom, z))
}

// zoomAbout multiplies the zoom by factor, keeping the world point under
// the screen point p fixed.
func (c *Controller) zoomAbout(factor float64, p geom.Point) {
	if !geom.IsFinite(factor) || factor <= 0 || !p.Finite() {
		return
	}
	z := c.clamp(c.zoom * factor)
	if z == c.zoom {
		return
	}
	w := c.ToWorld(p)
	c.zoom = z
	c.pan = p.Sub(w.Scale(z))
}

// =============================================================================
// Buttons and Wheel
// =============================================================================

// ZoomIn zooms in by one step about the viewport centre.
func (c *Controller) ZoomIn() { c.zoomAbout(c.opts.ZoomStep, c.center()) }

// ZoomOut zooms out by one step about the viewport centre.
func (c *Controller) ZoomOut() { c.zoomAbout(1/c.opts.ZoomStep, c.center()) }

// Reset restores zoom 1 and pan (0, 0) and abandons any gesture.
func (c *Controller) Reset() {
	c.zoom = 1
	c.pan = geom.Point{}
	c.to(Idle)
}

// IsZoomGesture reports whether a wheel event should zoom rather than pan.
// Trackpad pinches arrive as small vertical deltas or with a modifier;
// horizontal motion is treated as a zoom as well.
func (c *Controller) IsZoomGesture(ev WheelEvent) bool {
	return ev.Modifier || ev.DX != 0 || math.Abs(ev.DY) < c.opts.WheelThreshold
}

// Wheel applies a wheel event: a zoom about the pointer or a pan by the
// negated delta.
func (c *Controller) Wheel(ev WheelEvent) {
	if !geom.IsFinite(ev.DX) || !geom.IsFinite(ev.DY) || !ev.At.Finite() {
		return
	}
	if c.IsZoomGesture(ev) {
		c.zoomAbout(math.Exp(-ev.DY*c.opts.WheelSensitivity), ev.At)
		return
	}
	c.pan = c.pan.Sub(geom.Pt(ev.DX, ev.DY))
}

// PanBy translates the view by d screen units.
func (c *Controller) PanBy(d geom.Point) {
	if d.Finite() {
		c.pan = c.pan.Add(d)
	}
}

// =============================================================================
// Pointer
// =============================================================================

// PointerDown starts a drag at p unless the pointer is over a node, in
// which case the press belongs to the node. It reports whether a drag
// started.
func (c *Controller) PointerDown(p geom.Point, overNode bool) bool {
	if overNode || !p.Finite() || c.state != Idle {
		return false
	}
	c.origin = p
	c.panAtDown = c.pan
	c.to(Dragging)
	return true
}

// PointerMove updates an active drag. The pan moves DragSpeed times as far
// as the pointer.
func (c *Controller) PointerMove(p geom.Point) {
	if c.state != Dragging || !p.Finite() {
		return
	}
	c.pan = c.panAtDown.Add(p.Sub(c.origin).Scale(c.opts.DragSpeed))
}

// PointerUp ends a drag.
func (c *Controller) PointerUp() {
	if c.state == Dragging {
		c.to(Idle)
	}
}

// =============================================================================
// Touch
// =============================================================================

// TouchStart handles a change to the set of active touches when a finger
// lands. A touch while dragging abandons the drag.
func (c *Controller) TouchStart(touches []geom.Point) { c.baseline(touches) }

// TouchEnd handles a finger lifting; touches holds the remaining ones.
func (c *Controller) TouchEnd(touches []geom.Point) { c.baseline(touches) }

// TouchMove updates the active touch gesture. A different number of
// touches than the gesture started with re-baselines instead of moving.
func (c *Controller) TouchMove(touches []geom.Point) {
	if !allFinite(touches) {
		return
	}
	switch {
	case c.state == TouchPanning && len(touches) == 1:
		c.pan = c.pan.Add(touches[0].Sub(c.lastTouch))
		c.lastTouch = touches[0]
	case c.state == Pinching && len(touches) >= 2:
		mid, dist := pinch(touches[0], touches[1])
		if c.lastDist > 0 && dist > 0 {
			c.zoomAbout(dist/c.lastDist, mid)
		}
		c.pan = c.pan.Add(mid.Sub(c.lastMid))
		c.lastMid, c.lastDist = mid, dist
	default:
		c.baseline(touches)
	}
}

func (c *Controller) baseline(touches []geom.Point) {
	if !allFinite(touches) {
		return
	}
	switch len(touches) {
	case 0:
		if c.state == TouchPanning || c.state == Pinching {
			c.to(Idle)
		}
	case 1:
		c.lastTouch = touches[0]
		c.to(TouchPanning)
	default:
		c.lastMid, c.lastDist = pinch(touches[0], touches[1])
		c.to(Pinching)
	}
}

func pinch(a, b geom.Point) (mid geom.Point, dist float64) {
	return geom.Lerp(a, b, 0.5), a.Dist(b)
}

func allFinite(ps []geom.Point) bool {
	for _, p := range ps {
		if !p.Finite() {
			return false
		}
	}
	return true
}

// =============================================================================
// Framing
// =============================================================================

// Fit frames the given world points with padding screen units on every
// side, within the zoom bounds.
func (c *Controller) Fit(points []geom.Point, padding float64) {
	if len(points) == 0 {
		return
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = geom.Pt(math.Min(lo.X, p.X), math.Min(lo.Y, p.Y))
		hi = geom.Pt(math.Max(hi.X, p.X), math.Max(hi.Y, p.Y))
	}
	gw, gh := math.Max(hi.X-lo.X, 1), math.Max(hi.Y-lo.Y, 1)
	z := math.Min((c.size.W-2*padding)/gw, (c.size.H-2*padding)/gh)
	if z <= 0 || !geom.IsFinite(z) {
		z = 1
	}
	c.zoom = c.clamp(z)
	mid := geom.Lerp(lo, hi, 0.5)
	c.pan = c.center().Sub(mid.Scale(c.zoom))
}

// Focus centres the view on a world point, keeping the zoom.
func (c *Controller) Focus(w geom.Point) {
	if w.Finite() {
		c.pan = c.center().Sub(w.Scale(c.zoom))
	}
}
