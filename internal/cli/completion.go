package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/snapshot"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate a shell completion script for docseal.

Besides subcommands and flags, the script completes snapshot ids and tags
for "docseal restore" and "docseal snapshot verify", read from the
project found at --project or the current directory.

Bash:
  source <(docseal completion bash)

Zsh:
  docseal completion zsh > "${fpath[1]}/_docseal"

Fish:
  docseal completion fish > ~/.config/fish/completions/docseal.fish

PowerShell:
  docseal completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := args[0]

		var err error
		switch shell {
		case "bash":
			err = cmd.Root().GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			err = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			err = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			err = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		default:
			err = fmt.Errorf("unsupported shell type: %s", shell)
		}

		if err != nil {
			return fmt.Errorf("generate completion for %s: %w", shell, err)
		}
		return nil
	},
}

// completeSnapshots offers snapshot ids, described by their note, and tag
// names. Outside a project it offers nothing.
func completeSnapshots(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	p, err := requireProject()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	manifests, err := snapshot.NewCatalog(p).List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var out []string
	tags := make(map[string]bool)
	for _, m := range manifests {
		if id := string(m.ID); strings.HasPrefix(id, toComplete) {
			if m.Note != "" {
				id += "\t" + m.Note
			}
			out = append(out, id)
		}
		for _, t := range m.Tags {
			if strings.HasPrefix(t, toComplete) {
				tags[t] = true
			}
		}
	}
	names := make([]string, 0, len(tags))
	for t := range tags {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, t := range names {
		out = append(out, t+"\ttag")
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	restoreCmd.ValidArgsFunction = completeSnapshots
	snapshotVerifyCmd.ValidArgsFunction = completeSnapshots
	rootCmd.AddCommand(completionCmd)
}
