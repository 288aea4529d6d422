package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/OpenMined/proxylint/internal/output"
)

// completionHints is the line each shell needs to load the generated script.
var completionHints = map[string]string{
	"bash": `eval "$(proxylint completion bash)"  # ~/.bashrc`,
	"zsh":  `eval "$(proxylint completion zsh)"   # ~/.zshrc`,
	"fish": `proxylint completion fish > ~/.config/fish/completions/proxylint.fish`,
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion scripts",
	Long: `Print the completion script for the given shell.

Without an argument, print the setup line for the shell in $SHELL.
Rule arguments of run and watch complete to rule:variant pairs.`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"bash", "zsh", "fish"},
	RunE:      runCompletion,
}

func init() {
	runCmd.ValidArgsFunction = completeRuleArgs
	watchCmd.ValidArgsFunction = completeRuleArgs
}

func completeRuleArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return ruleArgChoices(toComplete), cobra.ShellCompDirectiveNoFileComp
}

func runCompletion(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return writeCompletion(os.Stdout, args[0])
	}

	shell := filepath.Base(os.Getenv("SHELL"))
	hint, ok := completionHints[shell]
	if !ok {
		output.Warning("Unrecognized shell %q; pass one of bash, zsh, fish", shell)
		return nil
	}
	fmt.Printf("Enable %s completion with:\n", shell)
	output.Dim.Printf("  %s\n", hint)
	return nil
}

func writeCompletion(w io.Writer, shell string) error {
	switch shell {
	case "bash":
		return rootCmd.GenBashCompletionV2(w, true)
	case "zsh":
		return rootCmd.GenZshCompletion(w)
	case "fish":
		return rootCmd.GenFishCompletion(w, true)
	}
	return fmt.Errorf("unsupported shell %q", shell)
}
