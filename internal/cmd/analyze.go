package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/OpenMined/proxylint/internal/archive"
	"github.com/OpenMined/proxylint/internal/bundle"
	"github.com/OpenMined/proxylint/internal/output"
	"github.com/OpenMined/proxylint/internal/runner"
)

var (
	analyzeLongFormat bool
	analyzeJSONOutput bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <bundle-dir>",
	Short: "Analyze one extracted bundle",
	Long: `Analyze one extracted bundle directory without touching archives or the output directory.

The directory is either the apiproxy root itself or its parent.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVarP(&analyzeLongFormat, "long", "l", false, "Use detailed table format")
	analyzeCmd.Flags().BoolVar(&analyzeJSONOutput, "json", false, "Output result as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newRunner().AnalyzeDir(bundleRoot(args[0]))
	if err != nil {
		if analyzeJSONOutput {
			output.JSON(map[string]interface{}{
				"status":  "error",
				"message": err.Error(),
			})
		} else if runner.IsStructural(err) {
			output.Error("%v (expected a policies/ directory)", err)
		} else {
			output.Error("Failed to analyze: %v", err)
		}
		return err
	}

	if analyzeJSONOutput {
		output.JSON(map[string]interface{}{
			"status":   "success",
			"analysis": a,
		})
		return nil
	}

	output.Cyan.Printf("%s\n", a.Name)
	fmt.Printf("%d declared, %d referenced, %d unattached\n\n",
		len(a.Graph.Declared), len(a.Graph.Referenced), len(a.Graph.Unattached))

	if len(a.Graph.Unattached) == 0 {
		output.Dim.Println("No unattached policies.")
	} else if analyzeLongFormat {
		printUnattachedTable(a)
	} else {
		output.PrintGrid(a.Graph.Unattached, func(name string) *color.Color { return output.KindColor(a.Kinds[name]) })
	}

	fmt.Println()
	printSequences(a.Sequences)
	return nil
}

func printUnattachedTable(a *runner.Analysis) {
	table := output.TableWithTitle("Unattached Policies", []string{"Policy", "Kind", "Resource"})
	for _, name := range a.Graph.Unattached {
		table.Append([]string{name, a.Kinds[name], a.Graph.Resources[name]})
	}
	table.Render()
}

func printSequences(seqs []bundle.Sequence) {
	if len(seqs) == 0 {
		output.Dim.Println("No sequential, condition-less JavaScript steps.")
		return
	}
	table := output.TableWithTitle("Sequential Script Steps", []string{"File", "Location", "Sequence"})
	for _, s := range seqs {
		table.Append([]string{s.File, s.Location, strings.Join(s.Units, ", ")})
	}
	table.Render()
}

// bundleRoot accepts either a bundle's apiproxy directory or its parent.
func bundleRoot(dir string) string {
	candidate := filepath.Join(dir, archive.BundleRoot)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	return dir
}
