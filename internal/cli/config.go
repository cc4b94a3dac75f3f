package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mpnp/pkg/config"
)

// configCommand creates the command that prints the effective configuration.
func (c *CLI) configCommand() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "config [dir]",
		Short: "Print the effective configuration",
		Long: fmt.Sprintf(`Print the configuration an install in dir would use, after merging
defaults, the user file, %s and MPNP_* environment variables.`, config.ProjectFile),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			cfg, err := c.loadConfig(dir, &o)
			if err != nil {
				return err
			}
			printConfig(cfg)
			return nil
		},
	}
	o.bind(cmd)
	return cmd
}

func printConfig(cfg config.Config) {
	token := "(unset)"
	if cfg.Token != "" {
		token = "(set)"
	}
	printKeyValue("registry", cfg.Registry)
	printKeyValue("token", token)
	printKeyValue("home", cfg.Home)
	printKeyValue("lockfile", cfg.Lockfile)
	printKeyValue("workspace_dir", cfg.WorkspaceDir)
	printKeyValue("concurrency", strconv.Itoa(cfg.Concurrency))
	printKeyValue("max_depth", strconv.Itoa(cfg.MaxDepth))
	printKeyValue("metadata_ttl", cfg.MetadataTTL)
	printKeyValue("metadata_cache", cfg.MetadataCache)
	printKeyValue("ignore_scripts", strconv.FormatBool(cfg.IgnoreScripts))
	printKeyValue("shell", cfg.Shell)
}
