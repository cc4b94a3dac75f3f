package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mpnp/pkg/buildinfo"
	"github.com/matzehuels/mpnp/pkg/cache"
	"github.com/matzehuels/mpnp/pkg/config"
	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/registry"
	"github.com/matzehuels/mpnp/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "mpnp"

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

	// getenv is os.Getenv outside tests.
	getenv func(string) string
	// globalConfig overrides config.GlobalPath when set.
	globalConfig string
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
		Short:        "mpnp installs npm packages into a shared, symlinked store",
		Long:         `mpnp resolves a project's dependencies against an npm registry, extracts every package version once into a shared store and links each package's node_modules to exactly what it declared.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.installCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.storeCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// overrides holds the flags that take precedence over every config source.
type overrides struct {
	registry      string
	home          string
	concurrency   int
	ignoreScripts bool
}

func (o *overrides) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.registry, "registry", "", "registry base URL")
	cmd.Flags().StringVar(&o.home, "home", "", "store home directory")
}

func (o *overrides) apply(cfg *config.Config) {
	if o.registry != "" {
		cfg.Registry = o.registry
	}
	if o.home != "" {
		cfg.Home = config.ExpandHome(o.home)
	}
	if o.concurrency > 0 {
		cfg.Concurrency = o.concurrency
	}
	if o.ignoreScripts {
		cfg.IgnoreScripts = true
	}
}

// loadConfig merges the configuration for projectDir with the flag overrides.
func (c *CLI) loadConfig(projectDir string, o *overrides) (config.Config, error) {
	global, getenv := config.GlobalPath(), c.getenv
	if c.globalConfig != "" {
		global = c.globalConfig
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg, err := config.LoadFrom(global, projectDir, getenv)
	if err != nil {
		return cfg, err
	}
	if o != nil {
		o.apply(&cfg)
	}
	return cfg, cfg.Validate()
}

// =============================================================================
// Environment Factory
// =============================================================================

// env is the set of collaborators a command works with.
type env struct {
	cfg    config.Config
	meta   cache.Cache
	client *registry.Client
	store  *store.Store
}

// openEnv builds the metadata cache, registry client and content store for cfg.
func (c *CLI) openEnv(ctx context.Context, cfg config.Config) (*env, error) {
	ttl, err := cfg.TTL()
	if err != nil {
		return nil, err
	}
	meta, err := newMetadataCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := registry.NewClient(cfg.Registry, meta, ttl)
	if cfg.Token != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.Token)
	}

	st, err := store.Open(cfg.Home, client, store.Options{Logger: c.Logger})
	if err != nil {
		meta.Close()
		return nil, err
	}
	return &env{cfg: cfg, meta: meta, client: client, store: st}, nil
}

// Close releases the store index and the metadata cache.
func (e *env) Close() error {
	err := e.store.Close()
	if cerr := e.meta.Close(); err == nil {
		err = cerr
	}
	return err
}

// newMetadataCache opens the backend named by cfg.MetadataCache.
func newMetadataCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	switch cfg.MetadataCache {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheFile, "":
		fc, err := cache.NewFileCache(cfg.MetadataDir())
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "open metadata cache %s", cfg.MetadataDir())
		}
		return fc, nil
	default:
		rc, err := cache.NewRedisCache(ctx, cfg.MetadataCache)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect metadata cache")
		}
		return rc, nil
	}
}
