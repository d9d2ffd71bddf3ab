package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knowledgemap/pkg/cache"
	"github.com/matzehuels/knowledgemap/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the layout cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached layout and render",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := c.out()
			backend := c.config().Cache.Backend
			if backend == config.BackendNone {
				out.info("Cache is disabled")
				return nil
			}

			ch, err := c.newCache(cmd.Context(), false)
			if err != nil {
				return fmt.Errorf("open %s cache: %w", backend, err)
			}
			defer ch.Close()

			ok, err := cache.Clear(cmd.Context(), ch)
			if err != nil {
				return fmt.Errorf("clear %s cache: %w", backend, err)
			}
			if !ok {
				out.warn("The %s cache cannot be cleared", backend)
				return nil
			}

			out.success("Cleared the %s cache", backend)
			if fc, ok := ch.(*cache.FileCache); ok {
				out.detail("Directory: %s", fc.Dir())
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			if cfg.Cache.Backend != config.BackendFile {
				return fmt.Errorf("cache backend is %q; only the file backend has a path", cfg.Cache.Backend)
			}
			dir := cfg.Cache.Dir
			if dir == "" {
				d, err := cacheDir()
				if err != nil {
					return fmt.Errorf("get cache dir: %w", err)
				}
				dir = d
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}
