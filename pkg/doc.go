// Package pkg provides the core libraries for Knowledgemap, an interactive
// map of a learning platform's curriculum.
//
// # Overview
//
// The map shows a single root, the courses that hang off it, and the modules
// inside each course. Everything is drawn on a pannable, zoomable canvas, and
// selecting a module loads the learner's progress for it. The pkg directory
// is organized into four main areas:
//
//  1. Domain logic: [graph], [geom], [layout], [route], [viewport], [selection]
//  2. Output: [render] and [render/nodelink]
//  3. Infrastructure: [cache], [config], [session], [observability], [errors]
//  4. Orchestration: [pipeline], fed by [integrations] or [source]
//
// # Architecture
//
// The typical data flow:
//
//	Graph service (REST) or graph.json
//	         ↓
//	    [graph] package (normalize wire nodes and edges)
//	         ↓
//	    [layout] package (radial positions, cached by graph hash)
//	         ↓
//	    [route] package (one curve per edge, selection highlight)
//	         ↓
//	    [render] package (SVG, JSON, DOT, PNG, terminal canvas)
//
// # Quick Start
//
// Load a graph file and render it:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/knowledgemap/pkg/pipeline"
//	    "github.com/matzehuels/knowledgemap/pkg/source"
//	)
//
//	src := source.NewFile("graph.json", nil)
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, _ := runner.Execute(context.Background(), src, pipeline.Options{
//	    Formats: []string{"svg"},
//	})
//	os.WriteFile("map.svg", res.Artifacts["svg"], 0o644)
//
// # Main Packages
//
// [graph] - Node and edge model with the ingestion boundary. Wire input is
// normalized once: lesson nodes are dropped, unknown kinds become concepts
// and dangling edges are removed, each counted in a [graph.Report].
//
// [layout] - Deterministic radial layout. The root sits at the origin,
// courses on a ring, modules fanned out around their course with a bounded
// collision pass.
//
// [route] - Edge curves. Each edge is a quadratic Bézier bent away from the
// straight line; edges touching the selected node are highlighted.
//
// [viewport] - Pan and zoom state with wheel, pointer and pinch gestures,
// clamped to the zoom limits.
//
// [selection] - Selected node and asynchronous progress loading, with stale
// responses discarded by generation.
//
// [pipeline] - Load, layout, route and render behind one [pipeline.Runner],
// with layouts and artifacts cached through [cache].
//
// [session] - Per-viewer viewport and selection state for the HTTP server.
//
// [integrations] - REST client for the graph and progress endpoints.
//
// [render]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/render
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/render/nodelink
// [graph]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/graph
// [geom]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/geom
// [layout]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/layout
// [route]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/route
// [viewport]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/viewport
// [selection]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/selection
// [cache]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/config
// [session]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/session
// [observability]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/errors
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/pipeline
// [integrations]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/integrations
// [source]: https://pkg.go.dev/github.com/matzehuels/knowledgemap/pkg/source
package pkg
