package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenMined/proxylint/internal/output"
)

var (
	cleanOutDir     string
	cleanZip        bool
	cleanJSONOutput bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <bundle-dir>",
	Short: "Write a cleaned copy of one extracted bundle",
	Long: `Write a cleaned copy of one extracted bundle to <out>/<name>/apiproxy.

Unattached policies and the resource files they own are removed, Steps that
name removed policies are stripped, and the manifest Policies and Resources
sections are rewritten. The source directory is never modified.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanOutDir, "out", "o", "", "Output directory (required)")
	cleanCmd.Flags().BoolVar(&cleanZip, "zip", false, "Also pack <out>/<name>.zip")
	cleanCmd.Flags().BoolVar(&cleanJSONOutput, "json", false, "Output result as JSON")
	cleanCmd.MarkFlagRequired("out")
}

func runClean(cmd *cobra.Command, args []string) error {
	res, size, err := newRunner().CleanDir(bundleRoot(args[0]), cleanOutDir, cleanZip)
	if err != nil {
		if cleanJSONOutput {
			output.JSON(map[string]interface{}{
				"status":  "error",
				"message": err.Error(),
			})
		} else {
			output.Error("Failed to clean: %v", err)
		}
		return err
	}

	if cleanJSONOutput {
		data := map[string]interface{}{
			"status": "success",
			"result": res,
		}
		if cleanZip {
			data["archive_size"] = size
		}
		output.JSON(data)
		return nil
	}

	fmt.Printf("Removed %d policies, %d resources, %d steps\n",
		len(res.RemovedUnits), len(res.RemovedResources), res.StrippedSteps)
	for _, name := range res.RemovedUnits {
		output.Dim.Printf("  - %s.xml\n", name)
	}
	for _, path := range res.SkippedFiles {
		output.Warning("Skipped %s (unreadable or unwritable)", path)
	}
	output.Success("Cleaned bundle written to %s", res.Dir)
	if cleanZip {
		output.Info("Archive size %s", output.Bytes(size))
	}
	return nil
}
