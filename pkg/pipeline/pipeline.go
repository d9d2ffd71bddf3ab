// Package pipeline runs the knowledge map pipeline shared by the CLI and the
// HTTP server.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Load: fetch nodes and edges from the graph service or a file
//  2. Layout: compute positions for root, courses and modules (cached)
//  3. Route: build one curve per edge from the current positions
//  4. Render: produce SVG, DOT, PNG or JSON artifacts (cached)
//
// Each stage can be run on its own or through [Runner.Execute].
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Execute(ctx, client, pipeline.Options{
//	    Source:  "api",
//	    Formats: []string{"svg"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
//
// Run individual stages:
//
//	g, rep, err := runner.Load(ctx, loader, opts)
//	res, err := runner.Layout(ctx, g, opts)
//	paths := runner.Route(g.WithPositions(res.Positions), opts)
//	artifacts, err := runner.Render(ctx, positioned, paths, res.Exhausted, opts)
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knowledgemap/pkg/cache"
	kmerrors "github.com/matzehuels/knowledgemap/pkg/errors"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/layout"
	"github.com/matzehuels/knowledgemap/pkg/route"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

// =============================================================================
// Default Values
// =============================================================================

// Output formats.
const (
	FormatSVG  = "svg"
	FormatDOT  = "dot"
	FormatPNG  = "png"
	FormatJSON = "json"
)

// SupportedFormats lists every output format in documentation order.
var SupportedFormats = []string{FormatSVG, FormatDOT, FormatPNG, FormatJSON}

const (
	// DefaultWidth is the frame width used for viewport renders.
	DefaultWidth = 800.0

	// DefaultHeight is the frame height used for viewport renders.
	DefaultHeight = 600.0

	// DefaultSource labels loads in logs and metrics when no source is set.
	DefaultSource = "graph"
)

// Loader fetches a normalized graph. The graph service client and the
// file source both implement it.
type Loader interface {
	FetchGraph(ctx context.Context) (graph.Graph, graph.Report, error)
}

// LoaderFunc adapts a function to [Loader].
type LoaderFunc func(ctx context.Context) (graph.Graph, graph.Report, error)

// FetchGraph implements Loader.
func (f LoaderFunc) FetchGraph(ctx context.Context) (graph.Graph, graph.Report, error) {
	return f(ctx)
}

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run.
type Options struct {
	// Source labels the loader in logs and metrics ("api", a file path).
	Source string `json:"source,omitempty"`

	// Layout and routing. Nil means defaults.
	Layout *layout.Options `json:"layout,omitempty"`
	Hints  layout.Hints    `json:"hints,omitempty"`
	Route  *route.Options  `json:"route,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Selected string   `json:"selected,omitempty"`
	Labels   *bool    `json:"labels,omitempty"`

	// Viewport renders a Width×Height frame through the transform instead
	// of fitting the whole graph. Used for per-session views.
	Viewport *viewport.Transform `json:"viewport,omitempty"`
	Width    float64             `json:"width,omitempty"`
	Height   float64             `json:"height,omitempty"`

	// Refresh skips cache reads; results are still written.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Progress *graph.Progress `json:"-"`
	Logger   *log.Logger     `json:"-"`
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.Source == "" {
		o.Source = DefaultSource
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate applies defaults and checks the render formats.
func (o *Options) Validate() error {
	o.SetDefaults()
	return kmerrors.ValidateFormats(o.Formats, SupportedFormats)
}

// ShowLabels reports whether node titles are drawn (default true).
func (o *Options) ShowLabels() bool { return o.Labels == nil || *o.Labels }

// LayoutKeyOpts returns the cache key inputs for a layout.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	eff := layout.New(o.Layout).Options()
	return cache.LayoutKeyOpts{Seed: eff.Seed, Options: eff, Hints: o.Hints}
}

// ArtifactKeyOpts returns the cache key inputs for one rendered format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{Format: format, Selected: o.Selected}
}

// cacheableArtifacts reports whether rendered output depends only on the
// positioned graph, the selection and the format. Viewport frames and
// progress rings change too often to be worth caching.
func (o *Options) cacheableArtifacts() bool {
	return o.Viewport == nil && o.Progress == nil && o.ShowLabels()
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the positioned graph.
	Graph graph.Graph

	// Report counts what normalization dropped or coerced.
	Report graph.Report

	// GraphHash is the content hash of the loaded graph.
	GraphHash string

	// Layout holds the computed positions and exhausted nodes.
	Layout layout.Result

	// Paths holds one routed curve per drawable edge.
	Paths []route.Path

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	FetchTime  time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each cached stage.
type CacheInfo struct {
	LayoutHit bool
	RenderHit bool // all artifacts came from cache
}

// GraphHash returns the content hash used to key layouts of g.
func GraphHash(g graph.Graph) string {
	h, err := cache.HashJSON(g)
	if err != nil {
		return ""
	}
	return h
}
