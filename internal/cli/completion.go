package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for mpnp and print it to stdout.

Load it for the current session:

  bash:        source <(mpnp completion bash)
  zsh:         source <(mpnp completion zsh)
  fish:        mpnp completion fish | source
  powershell:  mpnp completion powershell | Out-String | Invoke-Expression

To load it in every session, write the script to your shell's completion
directory, e.g. "mpnp completion zsh > \"${fpath[1]}/_mpnp\"" or
"mpnp completion fish > ~/.config/fish/completions/mpnp.fish".`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(os.Stdout, true)
			case "zsh":
				return root.GenZshCompletion(os.Stdout)
			case "fish":
				return root.GenFishCompletion(os.Stdout, true)
			default:
				return root.GenPowerShellCompletionWithDesc(os.Stdout)
			}
		},
	}
}
