package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/observability"
	"github.com/matzehuels/knowledgemap/pkg/render"
	"github.com/matzehuels/knowledgemap/pkg/render/nodelink"
	"github.com/matzehuels/knowledgemap/pkg/route"
)

// Render generates output artifacts for a positioned graph in the
// requested formats, without caching.
func Render(ctx context.Context, g graph.Graph, paths []route.Path, exhausted []string, opts Options) (map[string][]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()

	artifacts, err := renderFormats(ctx, g, paths, exhausted, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func renderFormats(ctx context.Context, g graph.Graph, paths []route.Path, exhausted []string, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))
	var dot string
	for _, format := range opts.Formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case FormatSVG:
			data = render.RenderSVG(g, paths, svgOptions(opts)...)
		case FormatDOT, FormatPNG:
			if dot == "" {
				dot = nodelink.ToDOT(g, nodelink.Options{Selected: opts.Selected})
			}
			if format == FormatDOT {
				data = []byte(dot)
			} else {
				data, err = nodelink.RenderPNG(ctx, dot)
			}
		case FormatJSON:
			data, err = render.RenderJSON(g, paths, exhausted)
		default:
			err = fmt.Errorf("unsupported format %q", format)
		}
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

func svgOptions(opts Options) []render.SVGOption {
	var out []render.SVGOption
	if opts.Selected != "" {
		out = append(out, render.WithSelected(opts.Selected, opts.Progress))
	}
	if opts.Viewport != nil {
		out = append(out, render.WithViewport(*opts.Viewport, opts.Width, opts.Height))
	}
	if !opts.ShowLabels() {
		out = append(out, render.WithoutLabels())
	}
	return out
}
