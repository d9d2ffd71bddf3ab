package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knowledgemap/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string   // output file (single format) or base path
	formats  []string // svg, dot, png, json
	api      bool     // read the graph from the graph service
	selected string   // node to highlight
	noLabels bool     // omit node titles
	noCache  bool
	refresh  bool
	seed     uint64
}

// renderCommand creates the render command for generating map images.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		opts       renderOpts
		formatsStr string
	)

	cmd := &cobra.Command{
		Use:   "render [graph.json]",
		Short: "Render a knowledge map to SVG, DOT, PNG or JSON",
		Long: `Render a knowledge map to SVG, DOT, PNG or JSON.

Node positions already present in the input are kept; missing ones are
computed. SVG and JSON are drawn natively, DOT pins every node at its map
position and PNG is rasterised from that DOT by Graphviz.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			return c.runRender(cmd.Context(), args, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, png, json (comma-separated)")
	cmd.Flags().BoolVar(&opts.api, "api", false, "read the graph from the graph service")
	cmd.Flags().StringVar(&opts.selected, "selected", "", "highlight a node and its edges")
	cmd.Flags().BoolVar(&opts.noLabels, "no-labels", false, "omit node titles")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached layouts and renders")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed (default from config)")

	return cmd
}

// runRender loads, lays out and renders the graph, then writes one file per
// format.
func (c *CLI) runRender(ctx context.Context, args []string, ro *renderOpts) error {
	src, err := c.newSource(args, ro.api)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, ro.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := c.pipelineOptions(src.Label)
	opts.Formats = ro.formats
	opts.Selected = ro.selected
	opts.Refresh = ro.refresh
	if ro.noLabels {
		labels := false
		opts.Labels = &labels
	}
	if ro.seed != 0 {
		opts.Layout.Seed = ro.seed
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	out := c.out()
	spinner := c.spin(ctx, "Rendering map...")
	res, err := runner.Execute(ctx, src.Loader, opts)
	if err != nil {
		spinner.Fail(out, "Render failed")
		return err
	}
	spinner.Stop()

	base := basePath(ro.output, args)
	var written []string
	for _, format := range ro.formats {
		path := base + "." + format
		if len(ro.formats) == 1 && ro.output != "" {
			path = ro.output
		}
		if err := writeOutput(path, res.Artifacts[format]); err != nil {
			return err
		}
		c.Logger.Debug("artifact written", "format", format, "bytes", len(res.Artifacts[format]))
		written = append(written, path)
	}

	out.success("Rendered %d nodes", res.Stats.NodeCount)
	for _, p := range written {
		out.file(p)
	}
	out.stats(res.Stats.NodeCount, res.Stats.EdgeCount, res.CacheInfo.LayoutHit)
	out.report(res.Report)
	return nil
}

// basePath derives the base output path. A known format extension on
// output is stripped; without output the input name is used.
func basePath(output string, args []string) string {
	if output == "" {
		if len(args) == 0 {
			return "knowledgemap"
		}
		return strings.TrimSuffix(args[0], filepath.Ext(args[0]))
	}
	ext := filepath.Ext(output)
	if slices.Contains(pipeline.SupportedFormats, strings.TrimPrefix(ext, ".")) {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// writeOutput writes data to path, or to stdout for "-".
func writeOutput(path string, data []byte) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
