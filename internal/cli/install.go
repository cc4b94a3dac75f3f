package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/install"
	"github.com/matzehuels/mpnp/pkg/observability"
	"github.com/matzehuels/mpnp/pkg/render/nodelink"
)

// installFlags holds flags for the install command.
type installFlags struct {
	overrides
	refresh  bool
	graph    string
	detailed bool
}

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	var flags installFlags

	cmd := &cobra.Command{
		Use:     "install [dir]",
		Aliases: []string{"i"},
		Short:   "Install a project's dependencies",
		Long: `Install the project in dir (default: the current directory), every
workspace package under its workspace directory, and all of their
dependencies.

Each package version is extracted once into the shared store and linked into
the node_modules of every package that depends on it. Resolved versions are
pinned in the lockfile, which is only written when the whole install succeeds.`,
		Example: `  mpnp install
  mpnp install ./app --refresh
  mpnp install --graph deps.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return c.runInstall(cmd.Context(), dir, flags)
		},
	}

	flags.overrides.bind(cmd)
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "j", 0, "parallel resolutions and downloads per package")
	cmd.Flags().BoolVar(&flags.ignoreScripts, "ignore-scripts", false, "skip install, postinstall and prepare hooks")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "bypass the registry metadata cache")
	cmd.Flags().StringVarP(&flags.graph, "graph", "g", "", "write the dependency graph to a .dot or .svg file")
	cmd.Flags().BoolVar(&flags.detailed, "graph-detailed", false, "label graph edges with their kind")

	return cmd
}

// runInstall executes the install for dir.
func (c *CLI) runInstall(ctx context.Context, dir string, flags installFlags) error {
	logger := loggerFromContext(ctx)

	if flags.graph != "" {
		if err := checkGraphPath(flags.graph); err != nil {
			return err
		}
	}

	cfg, err := c.loadConfig(dir, &flags.overrides)
	if err != nil {
		return err
	}
	e, err := c.openEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	stats := &observability.Stats{}
	observability.SetInstallHooks(stats)
	observability.SetCacheHooks(stats)
	observability.SetHTTPHooks(stats)
	defer observability.Reset()

	opts := cfg.InstallOptions()
	opts.Refresh = flags.refresh
	opts.Logger = logger

	prog := newProgress(logger)
	report, err := install.New(e.client, e.store, opts).Run(ctx, dir)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Installed %d packages", len(report.Packages())))

	printSuccess("Installed %s", report.Project)
	printInstallStats(installStats{
		packages:  len(report.Packages()),
		extracted: len(report.Fresh),
		reused:    report.Reused(),
		hooks:     report.Hooks,
		shims:     report.Shims,
		cached:    stats.MetadataHits.Load(),
		fetched:   stats.MetadataMiss.Load(),
	})
	logger.Debug("registry traffic", "requests", stats.Requests.Load(), "errors", stats.HTTPErrors.Load())
	if cfg.IgnoreScripts {
		printWarning("Lifecycle scripts were skipped")
	}
	if report.Locked {
		printFile(filepath.Join(report.Project, cfg.Lockfile))
	}

	if flags.graph != "" {
		if err := writeGraph(ctx, flags.graph, report, nodelink.Options{Detailed: flags.detailed}); err != nil {
			return err
		}
		printFile(flags.graph)
	}
	return nil
}

// checkGraphPath rejects graph outputs whose format is not supported.
func checkGraphPath(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".svg":
		return nil
	}
	return errors.New(errors.ErrCodeInvalidConfig, "graph output %s: expected a .dot or .svg file", path)
}

// writeGraph renders report to path in the format named by its extension.
func writeGraph(ctx context.Context, path string, report *install.Report, opts nodelink.Options) error {
	data := []byte(nodelink.ToDOT(report, opts))
	if strings.ToLower(filepath.Ext(path)) == ".svg" {
		svg, err := nodelink.RenderSVG(ctx, string(data))
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "render graph")
		}
		data = svg
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write graph %s", path)
	}
	return nil
}
