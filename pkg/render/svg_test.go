package render

import (
	"strings"
	"testing"

	"github.com/matzehuels/knowledgemap/pkg/geom"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/route"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

func sampleGraph() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{
			{ID: "root", Kind: graph.KindRoot, Title: "Physics", X: 0, Y: 0},
			{ID: "c1", Kind: graph.KindCourse, Title: "Mechanics", Status: graph.StatusCompleted, X: 300, Y: 0},
			{ID: "m1", Kind: graph.KindModule, Title: "Forces", Status: graph.StatusLocked, X: 300, Y: 200},
		},
		Edges: []graph.Edge{
			{ID: "e1", SourceID: "root", TargetID: "c1", Type: graph.EdgeRequired},
			{ID: "e2", SourceID: "c1", TargetID: "m1", Type: graph.EdgeAlternative},
		},
	}
}

func samplePaths() []route.Path {
	return []route.Path{
		{EdgeID: "e1", SourceID: "root", TargetID: "c1", Type: graph.EdgeRequired,
			Start: geom.Pt(60, 0), Control: geom.Pt(150, -20), End: geom.Pt(264, 0), Width: 2, Opacity: 0.6},
		{EdgeID: "e2", SourceID: "c1", TargetID: "m1", Type: graph.EdgeAlternative,
			Start: geom.Pt(300, 36), Control: geom.Pt(320, 100), End: geom.Pt(300, 172), Width: 1.5, Opacity: 0.6, Dashed: true},
	}
}

func TestRenderSVGStatusColors(t *testing.T) {
	out := string(RenderSVG(sampleGraph(), samplePaths()))

	for _, want := range []string{
		`<circle r="30.00" fill="` + ColorCompleted + `"`,
		`<circle r="22.00" fill="` + ColorLocked + `"`,
		`fill="` + ColorRoot + `"`,
		`class="node node-course status-completed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderSVGDashedEdges(t *testing.T) {
	out := string(RenderSVG(sampleGraph(), samplePaths()))

	lines := strings.Split(out, "\n")
	var e1, e2 string
	for _, l := range lines {
		switch {
		case strings.Contains(l, `id="edge-e1"`):
			e1 = l
		case strings.Contains(l, `id="edge-e2"`):
			e2 = l
		}
	}
	if strings.Contains(e1, "stroke-dasharray") {
		t.Errorf("required edge is dashed: %s", e1)
	}
	if !strings.Contains(e2, `stroke-dasharray="5,5"`) {
		t.Errorf("alternative edge not dashed: %s", e2)
	}
	if !strings.Contains(e1, `d="M 60.00 0.00 Q 150.00 -20.00 264.00 0.00"`) {
		t.Errorf("edge path data wrong: %s", e1)
	}
}

func TestRenderSVGHighlightedEdge(t *testing.T) {
	paths := samplePaths()
	paths[0].Highlighted = true
	out := string(RenderSVG(sampleGraph(), paths))

	if !strings.Contains(out, `marker-end="url(#arrow-hl)"`) {
		t.Error("highlighted edge should use the highlight marker")
	}
	if !strings.Contains(out, `stroke="`+ColorHighlight+`"`) {
		t.Error("highlighted edge should use the highlight colour")
	}
}

func TestRenderSVGSelectedProgress(t *testing.T) {
	p := graph.Progress{Completed: 3, Total: 4, Percent: 75}
	out := string(RenderSVG(sampleGraph(), samplePaths(), WithSelected("m1", &p)))

	if !strings.Contains(out, `class="node node-module status-locked selected"`) {
		t.Error("selected node missing selected class")
	}
	if !strings.Contains(out, `class="progress"`) {
		t.Error("progress ring missing")
	}
	if !strings.Contains(out, "3/4 lessons, 75%") {
		t.Error("progress caption missing")
	}
}

func TestRenderSVGSelectedWithoutProgress(t *testing.T) {
	out := string(RenderSVG(sampleGraph(), nil, WithSelected("c1", nil)))
	if strings.Contains(out, `class="progress"`) {
		t.Error("progress ring drawn without progress")
	}
}

func TestRenderSVGViewport(t *testing.T) {
	tr := viewport.Transform{Zoom: 2, Pan: geom.Pt(10, 20)}
	out := string(RenderSVG(sampleGraph(), samplePaths(), WithViewport(tr, 800, 600)))

	if !strings.Contains(out, `viewBox="0 0 800.00 600.00" width="800" height="600"`) {
		t.Error("viewport frame not used")
	}
	if !strings.Contains(out, `<g class="viewport" transform="`+tr.SVG()+`">`) {
		t.Error("view transform not applied")
	}
}

func TestRenderSVGFitsBounds(t *testing.T) {
	out := string(RenderSVG(sampleGraph(), nil, WithPadding(0)))

	lo, hi := Bounds(sampleGraph())
	want := `viewBox="` + num(lo.X) + " " + num(lo.Y) + " " + num(hi.X-lo.X) + " " + num(hi.Y-lo.Y) + `"`
	if !strings.Contains(out, want) {
		t.Errorf("output missing %s", want)
	}
}

func TestRenderSVGEscapesText(t *testing.T) {
	g := graph.Graph{Nodes: []graph.Node{
		{ID: "a&b", Kind: graph.KindConcept, Title: "Sets <& Maps>"},
	}}
	out := string(RenderSVG(g, nil))

	if strings.Contains(out, "Sets <& Maps>") {
		t.Error("title not escaped")
	}
	if !strings.Contains(out, "Sets &lt;&amp; Maps&gt;") {
		t.Error("escaped title missing")
	}
	if !strings.Contains(out, `id="node-a&amp;b"`) {
		t.Error("node id not escaped")
	}
}

func TestRenderSVGWithoutLabels(t *testing.T) {
	out := string(RenderSVG(sampleGraph(), nil, WithoutLabels()))
	if strings.Contains(out, "Mechanics") {
		t.Error("labels rendered")
	}
}

func TestRenderSVGMultilineTitle(t *testing.T) {
	g := graph.Graph{Nodes: []graph.Node{
		{ID: "c", Kind: graph.KindCourse, Title: "Linear\nAlgebra"},
	}}
	out := string(RenderSVG(g, nil))
	if strings.Count(out, "<tspan") != 2 {
		t.Errorf("want two tspans:\n%s", out)
	}
}

func TestBounds(t *testing.T) {
	lo, hi := Bounds(graph.Graph{})
	if lo != (geom.Point{}) || hi != (geom.Point{}) {
		t.Errorf("empty bounds = %v %v", lo, hi)
	}

	g := graph.Graph{Nodes: []graph.Node{
		{ID: "a", Kind: graph.KindCourse, X: -100, Y: 0},
		{ID: "b", Kind: graph.KindModule, X: 100, Y: 50},
	}}
	lo, hi = Bounds(g)
	if lo != geom.Pt(-130, -30) || hi != geom.Pt(122, 72) {
		t.Errorf("bounds = %v %v", lo, hi)
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status graph.Status
		want   string
	}{
		{graph.StatusCompleted, ColorCompleted},
		{graph.StatusCurrent, ColorCurrent},
		{graph.StatusAvailable, ColorAvailable},
		{graph.StatusOpen, ColorAvailable},
		{graph.StatusLocked, ColorLocked},
		{graph.StatusClosed, ColorLocked},
		{"", ColorAvailable},
	}
	for _, tt := range tests {
		if got := StatusColor(tt.status); got != tt.want {
			t.Errorf("StatusColor(%q) = %s, want %s", tt.status, got, tt.want)
		}
	}
}
