// Package render draws positioned knowledge graphs.
//
// # Overview
//
// Renderers take a graph whose nodes carry coordinates (see the layout
// package) and the edge paths produced by the router:
//
//   - [RenderSVG]: standalone SVG with status colours, dashed alternative
//     edges and arrowheads; optionally framed by a viewport transform
//   - [RenderJSON]: positioned nodes plus SVG path data per edge
//   - [Canvas]: a character-cell rasterisation for terminal viewers
//   - [nodelink]: Graphviz DOT with pinned positions, rendered to SVG or
//     PNG by neato
//
// # Usage
//
//	g = g.WithPositions(layout.New(nil).Layout(g, nil).Positions)
//	paths := route.New(nil).Route(g.Nodes, g.Edges, selectedID)
//	svg := render.RenderSVG(g, paths, render.WithSelected(selectedID, progress))
//
// [nodelink]: github.com/matzehuels/knowledgemap/pkg/render/nodelink
package render
