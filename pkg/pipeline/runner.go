package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knowledgemap/pkg/cache"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/layout"
	"github.com/matzehuels/knowledgemap/pkg/observability"
	"github.com/matzehuels/knowledgemap/pkg/route"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it so that caching behaves the same everywhere.
//
// The Runner is stateless except for the cache and logger; it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs load → layout → route → render.
//
// A load failure returns the error and no partial result.
func (r *Runner) Execute(ctx context.Context, loader Loader, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	result := &Result{}

	// Stage 1: Load
	fetchStart := time.Now()
	g, rep, err := r.Load(ctx, loader, opts)
	if err != nil {
		return nil, err
	}
	result.Report = rep
	result.GraphHash = GraphHash(g)
	result.Stats.FetchTime = time.Since(fetchStart)
	result.Stats.NodeCount = len(g.Nodes)
	result.Stats.EdgeCount = len(g.Edges)

	// Stage 2: Layout
	layoutStart := time.Now()
	res, hit, err := r.layout(ctx, g, result.GraphHash, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = res
	result.Graph = g.WithPositions(res.Positions)
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = hit

	r.Logger.Info("computed layout",
		"nodes", len(g.Nodes),
		"exhausted", len(res.Exhausted),
		"cached", hit,
		"duration", result.Stats.LayoutTime)

	// Stage 3: Route
	result.Paths = r.Route(result.Graph, opts)

	// Stage 4: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, result.Graph, result.Paths, res.Exhausted, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", renderHit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Load fetches and normalizes the graph. On failure it returns an empty
// graph, never a partial one.
func (r *Runner) Load(ctx context.Context, loader Loader, opts Options) (graph.Graph, graph.Report, error) {
	r.applyLogger(&opts)
	opts.SetDefaults()

	hooks := observability.Pipeline()
	hooks.OnFetchStart(ctx, opts.Source)
	start := time.Now()

	g, rep, err := loader.FetchGraph(ctx)
	hooks.OnFetchComplete(ctx, opts.Source, len(g.Nodes), time.Since(start), err)
	if err != nil {
		return graph.Graph{}, graph.Report{}, fmt.Errorf("load %s: %w", opts.Source, err)
	}

	r.Logger.Info("loaded graph",
		"source", opts.Source,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"duration", time.Since(start))
	if n := rep.Dropped(); n > 0 {
		r.Logger.Warn("dropped invalid graph items",
			"total", n,
			"lessons", rep.Lessons,
			"dangling_edges", rep.DanglingEdges,
			"unknown_kinds", rep.UnknownKinds,
			"duplicates", rep.DuplicateIDs)
	}
	if rep.CoercedCoords > 0 {
		r.Logger.Debug("coerced coordinates", "nodes", rep.CoercedCoords)
	}
	return g, rep, nil
}

// LayoutWithCacheInfo computes positions for g with caching and reports
// whether the result came from the cache.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, g graph.Graph, opts Options) (layout.Result, bool, error) {
	r.applyLogger(&opts)
	return r.layout(ctx, g, GraphHash(g), opts)
}

// Layout is a convenience wrapper that calls LayoutWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Layout(ctx context.Context, g graph.Graph, opts Options) (layout.Result, error) {
	res, _, err := r.LayoutWithCacheInfo(ctx, g, opts)
	return res, err
}

func (r *Runner) layout(ctx context.Context, g graph.Graph, graphHash string, opts Options) (layout.Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return layout.Result{}, false, err
	}

	cacheKey := r.Keyer.LayoutKey(graphHash, opts.LayoutKeyOpts())
	cacheHooks := observability.Cache()

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cached layout.Result
			if err := json.Unmarshal(data, &cached); err == nil && covers(cached, g) {
				cacheHooks.OnCacheHit(ctx, "layout")
				return cached, true, nil
			}
			// Undecodable or stale entries fall through to recompute.
		} else if err != nil {
			r.Logger.Warn("layout cache read failed", "error", err)
		}
		cacheHooks.OnCacheMiss(ctx, "layout")
	}

	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, len(g.Nodes))
	start := time.Now()
	res := layout.New(opts.Layout).Layout(g, opts.Hints)
	hooks.OnLayoutComplete(ctx, len(g.Nodes), len(res.Exhausted), time.Since(start), nil)

	for _, id := range res.Exhausted {
		opts.Logger.Debug("collision search exhausted", "node", id)
	}

	if data, err := json.Marshal(res); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLLayout); err != nil {
			r.Logger.Warn("layout cache write failed", "error", err)
		} else {
			cacheHooks.OnCacheSet(ctx, "layout", len(data))
		}
	}

	return res, false, nil
}

// covers reports whether res has a position for every node of g.
func covers(res layout.Result, g graph.Graph) bool {
	if len(res.Positions) != len(g.Nodes) {
		return false
	}
	for _, n := range g.Nodes {
		if _, ok := res.Positions[n.ID]; !ok {
			return false
		}
	}
	return true
}

// Route builds the edge curves of a positioned graph, highlighting the
// edges of the selected node.
func (r *Runner) Route(g graph.Graph, opts Options) []route.Path {
	return route.New(opts.Route).Route(g.Nodes, g.Edges, opts.Selected)
}

// RenderWithCacheInfo generates artifacts with caching and reports whether
// every artifact came from the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, g graph.Graph, paths []route.Path, exhausted []string, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.Validate(); err != nil {
		return nil, false, err
	}

	useCache := opts.cacheableArtifacts()
	layoutHash := GraphHash(g)
	cacheHooks := observability.Cache()

	if useCache && !opts.Refresh {
		artifacts := make(map[string][]byte, len(opts.Formats))
		for _, format := range opts.Formats {
			key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
			data, hit, err := r.Cache.Get(ctx, key)
			if err != nil || !hit {
				cacheHooks.OnCacheMiss(ctx, "artifact")
				break
			}
			cacheHooks.OnCacheHit(ctx, "artifact")
			artifacts[format] = data
		}
		if len(artifacts) == len(opts.Formats) {
			return artifacts, true, nil
		}
	}

	rendered, err := Render(ctx, g, paths, exhausted, opts)
	if err != nil {
		return nil, false, err
	}

	if useCache {
		for format, data := range rendered {
			key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
			if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err == nil {
				cacheHooks.OnCacheSet(ctx, "artifact", len(data))
			}
		}
	}

	return rendered, false, nil
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and
// discards the cache hit info.
func (r *Runner) Render(ctx context.Context, g graph.Graph, paths []route.Path, exhausted []string, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, g, paths, exhausted, opts)
	return artifacts, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
