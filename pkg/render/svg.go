package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"

	"github.com/matzehuels/knowledgemap/pkg/geom"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/route"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

const interactionCSS = `
    .node { cursor: pointer; }
    .node:hover circle { stroke-width: 3; }
    .node.selected circle { stroke: #4f46e5; stroke-width: 4; }
    .node text { font-family: ui-sans-serif, system-ui, sans-serif; pointer-events: none; }
    .edge { transition: stroke-opacity 0.2s ease; }`

// SVGOption configures [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	padding  float64
	selected string
	progress *graph.Progress
	view     *viewport.Transform
	width    float64
	height   float64
	labels   bool
}

// WithPadding sets the margin around the graph bounds (default 40).
func WithPadding(p float64) SVGOption { return func(r *svgRenderer) { r.padding = p } }

// WithSelected marks a node as selected. A non-nil progress is drawn as a
// completion ring and caption on that node.
func WithSelected(id string, progress *graph.Progress) SVGOption {
	return func(r *svgRenderer) { r.selected, r.progress = id, progress }
}

// WithViewport renders a fixed width×height frame and applies the view
// transform to the content instead of fitting the graph bounds.
func WithViewport(t viewport.Transform, width, height float64) SVGOption {
	return func(r *svgRenderer) { r.view, r.width, r.height = &t, width, height }
}

// WithoutLabels omits node titles.
func WithoutLabels() SVGOption { return func(r *svgRenderer) { r.labels = false } }

// RenderSVG renders a positioned graph with its routed edges.
func RenderSVG(g graph.Graph, paths []route.Path, opts ...SVGOption) []byte {
	r := svgRenderer{padding: 40, labels: true}
	for _, opt := range opts {
		opt(&r)
	}

	var buf bytes.Buffer
	if r.view != nil {
		fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%.0f" height="%.0f">`+"\n",
			num(r.width), num(r.height), r.width, r.height)
	} else {
		lo, hi := Bounds(g)
		lo = lo.Sub(geom.Pt(r.padding, r.padding))
		hi = hi.Add(geom.Pt(r.padding, r.padding))
		w, h := hi.X-lo.X, hi.Y-lo.Y
		fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s %s %s %s" width="%.0f" height="%.0f">`+"\n",
			num(lo.X), num(lo.Y), num(w), num(h), w, h)
	}

	renderDefs(&buf)
	if r.view != nil {
		fmt.Fprintf(&buf, `  <g class="viewport" transform="%s">`+"\n", r.view.SVG())
	} else {
		buf.WriteString(`  <g class="viewport">` + "\n")
	}
	renderEdges(&buf, paths)
	renderNodes(&buf, g, &r)
	buf.WriteString("  </g>\n")
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// Bounds returns the bounding box of every node's circle. An empty graph
// yields a zero box at the origin.
func Bounds(g graph.Graph) (lo, hi geom.Point) {
	if len(g.Nodes) == 0 {
		return geom.Point{}, geom.Point{}
	}
	lo = geom.Pt(math.Inf(1), math.Inf(1))
	hi = geom.Pt(math.Inf(-1), math.Inf(-1))
	for _, n := range g.Nodes {
		r := route.NodeRadius(n)
		lo = geom.Pt(math.Min(lo.X, n.X-r), math.Min(lo.Y, n.Y-r))
		hi = geom.Pt(math.Max(hi.X, n.X+r), math.Max(hi.Y, n.Y+r))
	}
	return lo, hi
}

func renderDefs(buf *bytes.Buffer) {
	buf.WriteString("  <defs>\n")
	for _, m := range []struct{ id, color string }{{"arrow", ColorEdge}, {"arrow-hl", ColorHighlight}} {
		fmt.Fprintf(buf, `    <marker id="%s" viewBox="0 0 10 10" refX="9" refY="5" markerWidth="6" markerHeight="6" orient="auto-start-reverse">`+
			`<path d="M 0 0 L 10 5 L 0 10 z" fill="%s"/></marker>`+"\n", m.id, m.color)
	}
	buf.WriteString("  </defs>\n")
	fmt.Fprintf(buf, "  <style>%s\n  </style>\n", interactionCSS)
}

func renderEdges(buf *bytes.Buffer, paths []route.Path) {
	buf.WriteString(`    <g class="edges">` + "\n")
	for _, p := range paths {
		marker := "arrow"
		if p.Highlighted {
			marker = "arrow-hl"
		}
		fmt.Fprintf(buf, `      <path id="edge-%s" class="edge edge-%s" d="%s" fill="none" stroke="%s" stroke-width="%s" stroke-opacity="%s"`,
			escape(p.EdgeID), p.Type, p.D(), EdgeColor(p.Highlighted), num(p.Width), num(p.Opacity))
		if p.Dashed {
			buf.WriteString(` stroke-dasharray="5,5"`)
		}
		fmt.Fprintf(buf, ` marker-end="url(#%s)"/>`+"\n", marker)
	}
	buf.WriteString("    </g>\n")
}

func renderNodes(buf *bytes.Buffer, g graph.Graph, r *svgRenderer) {
	buf.WriteString(`    <g class="nodes">` + "\n")
	for _, n := range g.Nodes {
		class := "node node-" + n.Kind.String() + " status-" + string(n.Status)
		if n.ID == r.selected {
			class += " selected"
		}
		rad := route.NodeRadius(n)
		fmt.Fprintf(buf, `      <g id="node-%s" class="%s" data-kind="%s" transform="translate(%s %s)">`+"\n",
			escape(n.ID), class, n.Kind, num(n.X), num(n.Y))
		fmt.Fprintf(buf, `        <circle r="%s" fill="%s" stroke="#ffffff" stroke-width="2"/>`+"\n", num(rad), NodeColor(n))

		if n.ID == r.selected && r.progress != nil {
			renderProgress(buf, rad, *r.progress)
		}
		if r.labels {
			renderLabel(buf, n, rad)
		}
		buf.WriteString("      </g>\n")
	}
	buf.WriteString("    </g>\n")
}

// renderProgress draws a completion arc just outside the node circle and a
// caption above it.
func renderProgress(buf *bytes.Buffer, rad float64, p graph.Progress) {
	ring := rad + 5
	frac := math.Max(0, math.Min(1, p.Percent/100))
	circ := 2 * math.Pi * ring
	fmt.Fprintf(buf, `        <circle class="progress" r="%s" fill="none" stroke="%s" stroke-width="3" stroke-dasharray="%s %s" transform="rotate(-90)"/>`+"\n",
		num(ring), ColorCompleted, num(circ*frac), num(circ))
	fmt.Fprintf(buf, `        <text class="progress-caption" y="%s" text-anchor="middle" font-size="10" fill="%s">%d/%d lessons, %s%%</text>`+"\n",
		num(-ring-8), ColorText, p.Completed, p.Total, strconv.FormatFloat(p.Percent, 'f', -1, 64))
}

func renderLabel(buf *bytes.Buffer, n graph.Node, rad float64) {
	lines := n.Lines()
	const lineHeight = 13.0
	if n.IsRoot() {
		// Root labels sit inside the circle.
		y0 := -lineHeight * float64(len(lines)-1) / 2
		buf.WriteString(`        <text text-anchor="middle" dominant-baseline="middle" font-size="12" font-weight="bold" fill="#ffffff">`)
		for i, l := range lines {
			fmt.Fprintf(buf, `<tspan x="0" y="%s">%s</tspan>`, num(y0+float64(i)*lineHeight), escape(l))
		}
		buf.WriteString("</text>\n")
		return
	}
	buf.WriteString(`        <text text-anchor="middle" font-size="11" fill="` + ColorText + `">`)
	for i, l := range lines {
		fmt.Fprintf(buf, `<tspan x="0" y="%s">%s</tspan>`, num(rad+14+float64(i)*lineHeight), escape(l))
	}
	buf.WriteString("</text>\n")
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
