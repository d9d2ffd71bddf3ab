package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/knowledgemap/internal/api"
	"github.com/matzehuels/knowledgemap/pkg/graph"
	"github.com/matzehuels/knowledgemap/pkg/observability"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Minute
)

// serveCommand creates the serve command for the HTTP viewer API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve [graph.json]",
		Short: "Serve knowledge maps over HTTP",
		Long: `Serve knowledge maps over HTTP.

Without a graph file the graph is read from the graph service configured in
[api], and module progress is loaded from it for selected modules. A graph
file is watched and reloaded when it changes.

Layouts are cached in the backend configured in [cache] (file, redis or
mongo). Metrics are exposed at /metrics.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args, addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the layout cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, args []string, addr string, noCache bool) error {
	cfg := c.config()
	if addr == "" {
		addr = cfg.Server.Addr
	}

	src, err := c.newSource(args, len(args) == 0)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.SetAll(observability.NewPrometheusHooks(reg))
	defer observability.Reset()

	opts := c.pipelineOptions(src.Label)
	srv := api.New(runner, src.Loader, src.Progress, api.Options{
		Pipeline:        opts,
		Viewport:        cfg.ViewportOptions(),
		Width:           cfg.Viewport.Width,
		Height:          cfg.Viewport.Height,
		GraphTTL:        cfg.Server.GraphTTL.Duration,
		SessionTTL:      cfg.Server.SessionTTL.Duration,
		ProgressTimeout: cfg.Server.ProgressTimeout.Duration,
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:          c.Logger,
	})
	defer srv.Close()

	if src.File != nil {
		src.File.OnChange(func(g graph.Graph, _ graph.Report) {
			c.Logger.Info("graph file changed", "nodes", len(g.Nodes))
			srv.Invalidate()
		})
		stop, err := src.File.Watch()
		if err != nil {
			c.Logger.Warn("file watch unavailable", "err", err)
		} else {
			defer stop()
		}
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go srv.Sessions().Run(janitorCtx, janitorInterval)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()

	out := c.out()
	out.success("Serving %s", StyleLink.Render("http://"+displayAddr(addr)))
	out.keyValue("Source", src.Label)
	out.keyValue("Cache", cfg.Cache.Backend)
	out.keyValue("Sessions", cfg.Server.SessionTTL.String()+" idle timeout")

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		c.Logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		c.Logger.Error("graceful shutdown failed", "err", err)
		return httpSrv.Close()
	}
	return nil
}

// displayAddr turns a listen address like ":8080" into a clickable host.
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
