package viewport

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/matzehuels/knowledgemap/pkg/geom"
)

const eps = 1e-9

func near(a, b geom.Point) bool { return a.Dist(b) < 1e-6 }

func TestZoomStaysInBounds(t *testing.T) {
	c := New(800, 600, nil)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 2000 {
		switch rng.IntN(4) {
		case 0:
			c.ZoomIn()
		case 1:
			c.ZoomOut()
		case 2:
			c.Wheel(WheelEvent{DY: rng.Float64()*400 - 200, At: geom.Pt(rng.Float64()*800, rng.Float64()*600), Modifier: true})
		case 3:
			c.Wheel(WheelEvent{DX: 1, DY: rng.Float64()*2000 - 1000, At: geom.Pt(400, 300)})
		}
		if z := c.Zoom(); z < 0.3-eps || z > 3+eps {
			t.Fatalf("step %d: zoom = %v", i, z)
		}
	}
}

func TestZoomInKeepsCentreFixed(t *testing.T) {
	c := New(800, 600, nil)
	c.PanBy(geom.Pt(37, -12))
	centre := geom.Pt(400, 300)
	before := c.ToWorld(centre)

	c.ZoomIn()
	if math.Abs(c.Zoom()-1.2) > eps {
		t.Errorf("zoom = %v, want 1.2", c.Zoom())
	}
	if after := c.ToWorld(centre); !near(before, after) {
		t.Errorf("centre moved from %v to %v", before, after)
	}

	c.ZoomOut()
	if math.Abs(c.Zoom()-1) > eps {
		t.Errorf("zoom = %v, want 1", c.Zoom())
	}
}

func TestWheel(t *testing.T) {
	tests := []struct {
		name     string
		ev       WheelEvent
		wantZoom float64
		wantPan  geom.Point
	}{
		{"mouse wheel pans", WheelEvent{DY: 100, At: geom.Pt(10, 10)}, 1, geom.Pt(0, -100)},
		{"small delta zooms", WheelEvent{DY: -20, At: geom.Pt(0, 0)}, math.Exp(0.2), geom.Pt(0, 0)},
		{"modifier zooms", WheelEvent{DY: 100, At: geom.Pt(0, 0), Modifier: true}, math.Exp(-1), geom.Pt(0, 0)},
		{"horizontal motion zooms", WheelEvent{DX: 3, DY: 50, At: geom.Pt(0, 0)}, math.Exp(-0.5), geom.Pt(0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(800, 600, nil)
			c.Wheel(tt.ev)
			if math.Abs(c.Zoom()-tt.wantZoom) > eps {
				t.Errorf("zoom = %v, want %v", c.Zoom(), tt.wantZoom)
			}
			if !near(c.Pan(), tt.wantPan) {
				t.Errorf("pan = %v, want %v", c.Pan(), tt.wantPan)
			}
		})
	}
}

func TestWheelZoomKeepsPointerFixed(t *testing.T) {
	c := New(800, 600, nil)
	at := geom.Pt(120, 480)
	before := c.ToWorld(at)
	c.Wheel(WheelEvent{DY: -30, At: at})
	if after := c.ToWorld(at); !near(before, after) {
		t.Errorf("pointer world point moved from %v to %v", before, after)
	}
}

func TestDrag(t *testing.T) {
	c := New(800, 600, nil)
	var transitions []string
	c.OnTransition = func(from, to State) { transitions = append(transitions, from.String()+">"+to.String()) }

	if c.PointerDown(geom.Pt(100, 100), true) {
		t.Fatal("press over a node must not start a drag")
	}
	if !c.PointerDown(geom.Pt(100, 100), false) {
		t.Fatal("drag did not start")
	}
	c.PointerMove(geom.Pt(110, 95))
	if want := geom.Pt(40, -20); !near(c.Pan(), want) {
		t.Errorf("pan = %v, want %v", c.Pan(), want)
	}
	c.PointerMove(geom.Pt(100, 100))
	if !near(c.Pan(), geom.Point{}) {
		t.Errorf("pan = %v, want origin", c.Pan())
	}
	c.PointerUp()
	c.PointerMove(geom.Pt(500, 500))
	if !near(c.Pan(), geom.Point{}) {
		t.Error("move after release changed the pan")
	}

	want := []string{"idle>dragging", "dragging>idle"}
	if len(transitions) != len(want) || transitions[0] != want[0] || transitions[1] != want[1] {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestTouchPanAndPinch(t *testing.T) {
	c := New(800, 600, nil)

	c.TouchStart([]geom.Point{geom.Pt(100, 100)})
	if c.State() != TouchPanning {
		t.Fatalf("state = %v", c.State())
	}
	c.TouchMove([]geom.Point{geom.Pt(130, 90)})
	if !near(c.Pan(), geom.Pt(30, -10)) {
		t.Errorf("one-finger pan = %v, want (30,-10)", c.Pan())
	}

	// A second finger re-baselines into a pinch without moving the view.
	c.TouchStart([]geom.Point{geom.Pt(100, 100), geom.Pt(200, 100)})
	if c.State() != Pinching {
		t.Fatalf("state = %v", c.State())
	}
	mid := geom.Pt(150, 100)
	under := c.ToWorld(mid)
	c.TouchMove([]geom.Point{geom.Pt(50, 100), geom.Pt(250, 100)})
	if math.Abs(c.Zoom()-2) > eps {
		t.Errorf("zoom = %v, want 2", c.Zoom())
	}
	if got := c.ToWorld(mid); !near(got, under) {
		t.Errorf("world point under the midpoint moved from %v to %v", under, got)
	}

	// Moving both fingers together translates the view.
	c.TouchMove([]geom.Point{geom.Pt(60, 120), geom.Pt(260, 120)})
	if got := c.ToWorld(geom.Pt(160, 120)); !near(got, under) {
		t.Errorf("pinch translation lost: %v, want %v", got, under)
	}

	// Lifting one finger goes back to panning from the remaining touch.
	c.TouchEnd([]geom.Point{geom.Pt(260, 120)})
	if c.State() != TouchPanning {
		t.Fatalf("state = %v", c.State())
	}
	before := c.Pan()
	c.TouchMove([]geom.Point{geom.Pt(270, 120)})
	if !near(c.Pan(), before.Add(geom.Pt(10, 0))) {
		t.Errorf("pan after re-baseline = %v", c.Pan())
	}

	c.TouchEnd(nil)
	if c.State() != Idle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestTouchAbandonsDrag(t *testing.T) {
	c := New(800, 600, nil)
	c.PointerDown(geom.Pt(0, 0), false)
	c.TouchStart([]geom.Point{geom.Pt(5, 5)})
	if c.State() != TouchPanning {
		t.Fatalf("state = %v, want touch-panning", c.State())
	}
	c.PointerMove(geom.Pt(100, 100))
	if !near(c.Pan(), geom.Point{}) {
		t.Error("abandoned drag still pans")
	}
}

func TestIgnoresNonFiniteInput(t *testing.T) {
	c := New(800, 600, nil)
	nan := math.NaN()
	c.Wheel(WheelEvent{DY: nan, At: geom.Pt(0, 0)})
	c.Wheel(WheelEvent{DY: 10, At: geom.Pt(nan, 0)})
	c.PointerDown(geom.Pt(math.Inf(1), 0), false)
	c.TouchStart([]geom.Point{geom.Pt(nan, nan)})
	c.PanBy(geom.Pt(nan, 1))
	if c.Zoom() != 1 || c.Pan() != (geom.Point{}) || c.State() != Idle {
		t.Errorf("state changed: zoom=%v pan=%v state=%v", c.Zoom(), c.Pan(), c.State())
	}
}

func TestReset(t *testing.T) {
	c := New(800, 600, nil)
	c.ZoomIn()
	c.PanBy(geom.Pt(10, 10))
	c.PointerDown(geom.Pt(1, 1), false)
	c.Reset()
	if c.Zoom() != 1 || c.Pan() != (geom.Point{}) || c.State() != Idle {
		t.Errorf("after reset: zoom=%v pan=%v state=%v", c.Zoom(), c.Pan(), c.State())
	}
}

func TestFitAndFocus(t *testing.T) {
	c := New(800, 600, nil)
	c.Fit([]geom.Point{geom.Pt(-500, -500), geom.Pt(500, 500)}, 50)
	if math.Abs(c.Zoom()-0.5) > eps {
		t.Errorf("zoom = %v, want 0.5", c.Zoom())
	}
	if got := c.ToScreen(geom.Point{}); !near(got, geom.Pt(400, 300)) {
		t.Errorf("origin drawn at %v, want centre", got)
	}

	c.Focus(geom.Pt(100, 0))
	if got := c.ToScreen(geom.Pt(100, 0)); !near(got, geom.Pt(400, 300)) {
		t.Errorf("focused point drawn at %v", got)
	}
}

func TestTransformSVG(t *testing.T) {
	tr := Transform{Zoom: 1.5, Pan: geom.Pt(10, -4.25)}
	if got, want := tr.SVG(), "translate(10.00 -4.25) scale(1.5000)"; got != want {
		t.Errorf("SVG() = %q, want %q", got, want)
	}
}
