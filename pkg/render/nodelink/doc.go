// Package nodelink renders knowledge maps through Graphviz.
//
// [ToDOT] writes a positioned graph as DOT source with every node pinned
// at its layout position, so the neato engine only draws the edges and
// labels. The result can be rendered in process:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Selected: "module-3"})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot)
//
// or saved and processed with external Graphviz tools (neato -n2).
//
// Rendering uses [github.com/goccy/go-graphviz], which embeds Graphviz as
// WebAssembly and needs no system installation.
package nodelink
