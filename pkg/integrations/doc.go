// Package integrations provides the HTTP client for the graph service that
// owns courses, modules and learner progress.
//
// # Overview
//
// The service exposes three reads, all relative to the base URL
// (default http://localhost:8000/api/v1):
//
//   - GET /graph/nodes: the node list
//   - GET /graph/edges: the edge list
//   - GET /modules/{id}/progress: lesson completion of one module
//
// # Client Pattern
//
//	client, err := integrations.NewClient(baseURL, integrations.WithToken(token))
//	g, report, err := client.FetchGraph(ctx)
//	p, err := client.ModuleProgress(ctx, "101")
//
// The client handles:
//   - Bearer authentication
//   - A 10 second request timeout
//   - Retry with exponential backoff on network errors and 5xx responses
//   - Normalization of the wire lists into a [graph.Graph]
//
// [Client] satisfies the progress fetcher interface of the selection
// package.
//
// [graph.Graph]: github.com/matzehuels/knowledgemap/pkg/graph.Graph
package integrations
