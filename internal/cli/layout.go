package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knowledgemap/pkg/graph"
)

type layoutFlags struct {
	output  string
	api     bool
	noCache bool
	refresh bool
	seed    uint64
	hints   map[string]string
}

// layoutCommand creates the layout command for computing node positions.
func (c *CLI) layoutCommand() *cobra.Command {
	var f layoutFlags

	cmd := &cobra.Command{
		Use:   "layout [graph.json]",
		Short: "Compute node positions for a knowledge graph",
		Long: `Compute node positions for a knowledge graph.

The layout command reads a graph file (JSON or YAML) or, with --api, the
graph service, places every node on the radial map, and writes the graph
with its positions to a file that 'render' and 'explore' accept.

Results are cached per graph, seed and hints.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args, f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (default: <input>.layout.json, or layout.json with --api)")
	cmd.Flags().BoolVar(&f.api, "api", false, "read the graph from the graph service")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute even if a cached layout exists")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "random seed (default from config)")
	cmd.Flags().StringToStringVar(&f.hints, "hint", nil, "place a module next to a course: module=course (repeatable)")

	return cmd
}

// runLayout loads the graph, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, args []string, f layoutFlags) error {
	src, err := c.newSource(args, f.api)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, f.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := c.pipelineOptions(src.Label)
	opts.Hints = f.hints
	opts.Refresh = f.refresh
	if f.seed != 0 {
		opts.Layout.Seed = f.seed
	}

	prog := newProgress(c.Logger)
	out := c.out()
	spinner := c.spin(ctx, "Loading graph...")
	g, rep, err := runner.Load(ctx, src.Loader, opts)
	if err != nil {
		spinner.Fail(out, "Load failed")
		return err
	}
	spinner.Stop()

	spinner = c.spin(ctx, "Computing layout...")
	res, cacheHit, err := runner.LayoutWithCacheInfo(ctx, g, opts)
	if err != nil {
		spinner.Fail(out, "Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()
	prog.done("Layout computed")

	if ctx.Err() != nil {
		return ctx.Err()
	}

	outputPath := f.output
	if outputPath == "" {
		outputPath = defaultOutput(args, ".layout.json")
	}
	if err := graph.WriteFile(outputPath, g.WithPositions(res.Positions)); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	out.success("Layout complete")
	out.file(outputPath)
	out.stats(len(g.Nodes), len(g.Edges), cacheHit)
	out.report(rep)
	if len(res.Exhausted) > 0 {
		out.warn("%d nodes placed without a collision-free spot: %s", len(res.Exhausted), strings.Join(res.Exhausted, ", "))
	}
	out.nextStep("Render", appName+" render "+outputPath)

	return nil
}

// defaultOutput derives an output path from the input file, or from the
// suffix alone when the graph came from the API.
func defaultOutput(args []string, suffix string) string {
	if len(args) == 0 {
		return strings.TrimPrefix(suffix, ".")
	}
	input := args[0]
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix
}
