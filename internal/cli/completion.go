package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for dreamaudio.

Bash:
  source <(dreamaudio completion bash)

Zsh:
  dreamaudio completion zsh > "${fpath[1]}/_dreamaudio"

Fish:
  dreamaudio completion fish > ~/.config/fish/completions/dreamaudio.fish

PowerShell:
  dreamaudio completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)

	// config keys complete for get/set/unset
	keys := append(append([]string{}, serverKeys...), clientKeys...)
	completeKeys := func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return keys, cobra.ShellCompDirectiveNoFileComp
	}
	configGetCmd.ValidArgsFunction = completeKeys
	configSetCmd.ValidArgsFunction = completeKeys
	configUnsetCmd.ValidArgsFunction = completeKeys
}
