package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mpnp/pkg/cache"
	"github.com/matzehuels/mpnp/pkg/config"
	"github.com/matzehuels/mpnp/pkg/store"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the download and metadata caches",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var (
		o            overrides
		metadataOnly bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove downloaded archives and cached registry metadata",
		Long: `Remove downloaded archives and cached registry metadata.

Extracted packages in the store are kept: projects link into them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(".", &o)
			if err != nil {
				return err
			}
			e, err := c.openEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			archives := 0
			if !metadataOnly {
				if archives, err = e.store.ClearDownloads(); err != nil {
					return fmt.Errorf("clear downloads: %w", err)
				}
			}
			entries, err := clearMetadata(cmd.Context(), e.meta)
			if err != nil {
				return fmt.Errorf("clear metadata: %w", err)
			}

			if archives+entries == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d archives and %d metadata entries", archives, entries)
			printDetail("Directory: %s", e.store.CacheDir())
			return nil
		},
	}
	o.bind(cmd)
	cmd.Flags().BoolVar(&metadataOnly, "metadata", false, "only clear cached registry metadata")
	return cmd
}

// clearMetadata empties the metadata cache backend.
// The null cache has nothing to clear.
func clearMetadata(ctx context.Context, c cache.Cache) (int, error) {
	switch mc := c.(type) {
	case *cache.FileCache:
		return mc.Clear()
	case *cache.RedisCache:
		return mc.Clear(ctx)
	}
	return 0, nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the download and metadata cache paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(".", &o)
			if err != nil {
				return err
			}
			fmt.Println(store.DownloadDir(cfg.Home))
			if cfg.MetadataCache == config.CacheFile {
				fmt.Println(cfg.MetadataDir())
			}
			return nil
		},
	}
	o.bind(cmd)
	return cmd
}
