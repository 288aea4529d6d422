package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenMined/proxylint/internal/output"
	"github.com/OpenMined/proxylint/internal/rules"
)

var rulesJSONOutput bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List available rules and variants",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

func init() {
	rulesCmd.Flags().BoolVar(&rulesJSONOutput, "json", false, "Output result as JSON")
}

func runRules(cmd *cobra.Command, args []string) error {
	if rulesJSONOutput {
		result := make([]map[string]interface{}, 0, len(rules.Available))
		for _, name := range rules.Names() {
			result = append(result, map[string]interface{}{
				"rule":        name,
				"variants":    rules.Available[name],
				"description": rules.Descriptions[name],
			})
		}
		output.JSON(map[string]interface{}{
			"status": "success",
			"rules":  result,
		})
		return nil
	}

	table := output.TableWithTitle("Rules", []string{"Rule", "Variants", "Description"})
	for _, name := range rules.Names() {
		table.Append([]string{name, strings.Join(rules.Available[name], ", "), rules.Descriptions[name]})
	}
	table.Render()
	return nil
}

// ruleArgChoices lists the rule:variant pairs starting with prefix.
func ruleArgChoices(prefix string) []string {
	var out []string
	for _, name := range rules.Names() {
		for _, variant := range rules.Available[name] {
			if arg := name + ":" + variant; strings.HasPrefix(arg, prefix) {
				out = append(out, arg)
			}
		}
	}
	return out
}
