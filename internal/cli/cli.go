// Package cli implements the knowledgemap command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/knowledgemap/pkg/buildinfo"
	"github.com/matzehuels/knowledgemap/pkg/cache"
	"github.com/matzehuels/knowledgemap/pkg/config"
	"github.com/matzehuels/knowledgemap/pkg/integrations"
	"github.com/matzehuels/knowledgemap/pkg/pipeline"
	"github.com/matzehuels/knowledgemap/pkg/selection"
	"github.com/matzehuels/knowledgemap/pkg/source"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "knowledgemap"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config

	stdout io.Writer
	stderr io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "knowledgemap lays out and explores course knowledge maps",
		Long:         `knowledgemap places the courses, modules and concepts of a learning platform on a radial map, routes the edges between them, and renders or serves the result.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.stdout, c.stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: "+config.DefaultPath()+")")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.Logger.Debug("config loaded", "path", c.configPath, "cache", cfg.Cache.Backend, "api", cfg.API.URL)
	return nil
}

// config returns the loaded config, or the defaults when a command runs
// without the root pre-run (tests).
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// out returns the console for command results.
func (c *CLI) out() console {
	if c.stdout == nil {
		return console{w: os.Stdout}
	}
	return console{w: c.stdout}
}

// spin starts a spinner on stderr.
func (c *CLI) spin(ctx context.Context, message string) *Spinner {
	w := c.stderr
	if w == nil {
		w = os.Stderr
	}
	return startSpinner(ctx, w, message)
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(ch, nil, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := c.config()
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		return cache.DialRedis(ctx, cfg.RedisOptions())
	case config.BackendMongo:
		return cache.DialMongo(ctx, cfg.MongoOptions())
	default:
		dir := cfg.Cache.Dir
		if dir == "" {
			d, err := cacheDir()
			if err != nil {
				return cache.NewNullCache(), nil
			}
			dir = d
		}
		return cache.NewFileCache(dir)
	}
}

// =============================================================================
// Graph Sources
// =============================================================================

// graphSource is where a command reads its graph from.
type graphSource struct {
	Loader   pipeline.Loader
	Label    string
	Progress selection.ProgressFetcher // nil for files
	File     *source.File              // nil for the API
}

// newSource returns the graph file named by args, or the graph service when
// useAPI is set.
func (c *CLI) newSource(args []string, useAPI bool) (*graphSource, error) {
	if useAPI {
		if len(args) > 0 {
			return nil, fmt.Errorf("--api and a graph file are mutually exclusive")
		}
		client, err := c.apiClient()
		if err != nil {
			return nil, err
		}
		return &graphSource{Loader: client, Label: client.BaseURL(), Progress: client}, nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("a graph file or --api is required")
	}
	f := source.NewFile(args[0], c.Logger)
	return &graphSource{Loader: f, Label: args[0], File: f}, nil
}

func (c *CLI) apiClient() (*integrations.Client, error) {
	cfg := c.config()
	return integrations.NewClient(cfg.API.URL,
		integrations.WithToken(cfg.API.Token),
		integrations.WithTimeout(cfg.API.Timeout.Duration),
		integrations.WithRetry(cfg.RetryPolicy()),
		integrations.WithLogger(c.Logger),
	)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/knowledgemap/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// pipelineOptions builds pipeline options from the config.
func (c *CLI) pipelineOptions(label string) pipeline.Options {
	cfg := c.config()
	return pipeline.Options{
		Source: label,
		Layout: cfg.LayoutOptions(),
		Route:  cfg.RouteOptions(),
		Width:  cfg.Viewport.Width,
		Height: cfg.Viewport.Height,
		Logger: c.Logger,
	}
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
