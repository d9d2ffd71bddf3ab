package integrations

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/knowledgemap/pkg/graph"
)

// Nodes fetches the raw node list (GET /graph/nodes).
func (c *Client) Nodes(ctx context.Context) ([]graph.WireNode, error) {
	var nodes []graph.WireNode
	if err := c.Get(ctx, "graph/nodes", &nodes); err != nil {
		return nil, fmt.Errorf("fetch nodes: %w", err)
	}
	return nodes, nil
}

// Edges fetches the raw edge list (GET /graph/edges).
func (c *Client) Edges(ctx context.Context) ([]graph.WireEdge, error) {
	var edges []graph.WireEdge
	if err := c.Get(ctx, "graph/edges", &edges); err != nil {
		return nil, fmt.Errorf("fetch edges: %w", err)
	}
	return edges, nil
}

// FetchGraph fetches nodes and edges concurrently and normalizes them.
// If either request fails the result is an empty graph, never a partial one.
func (c *Client) FetchGraph(ctx context.Context) (graph.Graph, graph.Report, error) {
	var (
		nodes []graph.WireNode
		edges []graph.WireEdge
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nodes, err = c.Nodes(gctx)
		return err
	})
	g.Go(func() (err error) {
		edges, err = c.Edges(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return graph.Graph{}, graph.Report{}, err
	}

	gr, report := graph.Normalize(nodes, edges)
	c.logger.Debug("graph fetched",
		"nodes", len(gr.Nodes), "edges", len(gr.Edges),
		"lessons", report.Lessons, "dangling", report.DanglingEdges, "dropped", report.Dropped())
	return gr, report, nil
}

// ModuleProgress fetches a module's lesson completion
// (GET /modules/{id}/progress).
func (c *Client) ModuleProgress(ctx context.Context, moduleID string) (graph.Progress, error) {
	var w graph.WireProgress
	if err := c.Get(ctx, "modules/"+url.PathEscape(moduleID)+"/progress", &w); err != nil {
		return graph.Progress{}, fmt.Errorf("fetch progress of module %s: %w", moduleID, err)
	}
	return w.ToProgress(), nil
}
