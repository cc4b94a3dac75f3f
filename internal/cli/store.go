package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mpnp/pkg/store"
)

// storeCommand creates the store inspection command.
func (c *CLI) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the shared package store",
	}

	cmd.AddCommand(c.storeListCommand())
	cmd.AddCommand(c.storePathCommand())

	return cmd
}

// storeListCommand creates the "store ls" subcommand.
func (c *CLI) storeListCommand() *cobra.Command {
	var (
		o     overrides
		paths bool
	)
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List extracted packages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(".", &o)
			if err != nil {
				return err
			}
			// Listing never downloads, so no fetcher is needed.
			st, err := store.Open(cfg.Home, nil, store.Options{Logger: c.Logger})
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				printInfo("Store is empty")
				printNextStep("Install a project", "mpnp install")
				return nil
			}
			for _, e := range entries {
				fmt.Println(e.Key())
				if paths {
					printFile(e.Path)
				}
			}
			printDetail("%d packages in %s", len(entries), st.StoreDir())
			return nil
		},
	}
	o.bind(cmd)
	cmd.Flags().BoolVarP(&paths, "paths", "p", false, "print the directory of each package")
	return cmd
}

// storePathCommand creates the "store path" subcommand.
func (c *CLI) storePathCommand() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the store directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(".", &o)
			if err != nil {
				return err
			}
			fmt.Println(store.InstallDir(cfg.Home))
			return nil
		},
	}
	o.bind(cmd)
	return cmd
}
