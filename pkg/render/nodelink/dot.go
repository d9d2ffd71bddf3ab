package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/render"
	"github.com/matzehuels/knowledgemap/pkg/route"
)

// Options configures DOT generation.
type Options struct {
	// Selected highlights the node with this ID and its incident edges.
	Selected string

	// Unpinned lets Graphviz place nodes itself instead of keeping the
	// positions computed by the layout engine.
	Unpinned bool
}

// ToDOT converts a positioned graph to Graphviz DOT source. Node positions
// are written in points with y negated, since Graphviz's y axis points up.
func ToDOT(g graph.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  inputscale=72;\n")
	buf.WriteString("  overlap=true;\n")
	buf.WriteString("  splines=true;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fixedsize=true, fontname=\"Helvetica\", fontsize=10, color=\"#ffffff\", penwidth=2];\n")
	fmt.Fprintf(&buf, "  edge [color=%q, arrowsize=0.6];\n", render.ColorEdge)
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		fmt.Fprintf(&buf, "  %q -> %q", e.SourceID, e.TargetID)
		if attrs := edgeAttrs(e, opts.Selected); len(attrs) > 0 {
			fmt.Fprintf(&buf, " [%s]", strings.Join(attrs, ", "))
		}
		buf.WriteString(";\n")
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n graph.Node, opts Options) []string {
	label := quoteLabel(strings.Join(n.Lines(), `\n`))
	attrs := []string{
		fmt.Sprintf("width=%s", fnum(2*route.NodeRadius(n)/72)),
		fmt.Sprintf("fillcolor=%q", render.NodeColor(n)),
	}
	if n.IsRoot() {
		// Root titles fit inside the circle; everything else is labelled outside.
		attrs = append(attrs, `fontcolor="#ffffff"`, fmt.Sprintf(`label="%s"`, label))
	} else {
		attrs = append(attrs, fmt.Sprintf("fontcolor=%q", render.ColorText), `label=""`, fmt.Sprintf(`xlabel="%s"`, label))
	}
	if !opts.Unpinned {
		attrs = append(attrs, fmt.Sprintf(`pos="%s,%s!"`, fnum(n.X), fnum(0-n.Y)))
	}
	if n.ID == opts.Selected {
		attrs = append(attrs, fmt.Sprintf("color=%q", render.ColorHighlight), "penwidth=4")
	}
	return attrs
}

func edgeAttrs(e graph.Edge, selected string) []string {
	var attrs []string
	if e.Type == graph.EdgeAlternative {
		attrs = append(attrs, "style=dashed")
	}
	if selected != "" && e.Touches(selected) {
		attrs = append(attrs, fmt.Sprintf("color=%q", render.ColorHighlight), "penwidth=2")
	}
	return attrs
}

// quoteLabel escapes double quotes but keeps the \n line separators.
func quoteLabel(s string) string { return strings.ReplaceAll(s, `"`, `\"`) }

func fnum(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// RenderSVG renders DOT source to SVG with the neato engine.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	out, err := renderDOT(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(out), nil
}

// RenderPNG renders DOT source to a PNG image with the neato engine.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return renderDOT(ctx, dot, graphviz.PNG)
}

func renderDOT(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="(-?[0-9.]+)\s+(-?[0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's svg tag, which carries pt units and
// XML namespaces we don't need, with a plain one sized by its viewBox.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
