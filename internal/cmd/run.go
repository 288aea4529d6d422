package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenMined/proxylint/internal/output"
	"github.com/OpenMined/proxylint/internal/report"
	"github.com/OpenMined/proxylint/internal/rules"
	"github.com/OpenMined/proxylint/internal/runner"
)

var (
	runProxiesDir string
	runOutputDir  string
	runJobs       int
	runJSONOutput bool
	runRender     bool
)

var runCmd = &cobra.Command{
	Use:   "run <rule:variant>...",
	Short: "Run rules over every bundle archive",
	Long: `Run one or more rules over every *.zip bundle in the proxies directory.

Example:
  proxylint run unattached-policy:apply-and-report sequential-js:report-only

Available rules and variants:
  - unattached-policy: [report-only, apply-and-report]
  - sequential-js:     [report-only]`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runProxiesDir, "proxies-dir", "", "Directory of bundle archives (overrides config)")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "Output directory, cleared on each run (overrides config)")
	runCmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "Bundles processed concurrently (overrides config)")
	runCmd.Flags().BoolVar(&runJSONOutput, "json", false, "Output result as JSON")
	runCmd.Flags().BoolVar(&runRender, "render", false, "Render the size report in the terminal")
}

// applyRunFlags copies run flags over the resolved config.
func applyRunFlags() error {
	if runProxiesDir != "" {
		cfg.ProxiesDir = runProxiesDir
	}
	if runOutputDir != "" {
		cfg.OutputDir = runOutputDir
	}
	if runJobs < 0 {
		return fmt.Errorf("--jobs must be positive")
	}
	if runJobs > 0 {
		cfg.Jobs = runJobs
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	sel, err := rules.Parse(args)
	if err != nil {
		return reportSelectionError(err, runJSONOutput)
	}
	if err := applyRunFlags(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := newRunner().Run(ctx, sel)
	if err != nil {
		if runJSONOutput {
			output.JSON(map[string]interface{}{
				"status":  "error",
				"message": err.Error(),
			})
		} else {
			output.Error("Run failed: %v", err)
		}
		return err
	}

	if runJSONOutput {
		output.JSON(map[string]interface{}{
			"status":  "success",
			"summary": summary,
		})
		return nil
	}

	printSummary(summary, runRender)
	return nil
}

func reportSelectionError(err error, jsonOutput bool) error {
	var selErr *rules.SelectionError
	if !errors.As(err, &selErr) {
		return err
	}
	if jsonOutput {
		output.JSON(map[string]interface{}{
			"status":  "error",
			"message": selErr.Message,
			"rules":   rules.Available,
		})
	} else {
		output.Error("%s", selErr.Message)
	}
	return err
}

func printSummary(summary *runner.Summary, render bool) {
	if len(summary.Bundles) == 0 {
		output.Warning("No proxy bundles found in %s", cfg.ProxiesDir)
		return
	}

	for _, b := range summary.Bundles {
		output.PrintCard(bundleCard(b))
	}

	fmt.Println()
	for _, path := range summary.Reports {
		output.Info("Report saved to %s", path)
	}
	output.Success("Processed %d bundle(s) in %s (run %s)", len(summary.Bundles), summary.Duration.Round(time.Millisecond), summary.ID[:8])

	if render {
		for _, path := range summary.Reports {
			if strings.HasSuffix(path, report.SizeFile) {
				if data, err := os.ReadFile(path); err == nil {
					output.RenderMarkdown(string(data))
				}
			}
		}
	}
}

func bundleCard(b *runner.BundleResult) output.BundleCard {
	card := output.BundleCard{
		Name:     b.Name,
		Subtitle: "archive " + output.Bytes(b.Original),
	}
	if !b.Loaded() {
		card.Status = "failed"
		card.ErrorLines = []string{b.Error}
		return card
	}

	card.Status = "ok"
	if len(b.Unattached) > 0 || len(b.Sequences) > 0 {
		card.Status = "findings"
	}
	if len(b.RuleErrors) > 0 {
		card.Status = "failed"
		for rule, msg := range b.RuleErrors {
			card.ErrorLines = append(card.ErrorLines, rule+": "+msg)
		}
		sort.Strings(card.ErrorLines)
	}

	if b.Unattached != nil {
		card.Lines = append(card.Lines, fmt.Sprintf("Unattached policies: %d", len(b.Unattached)))
		for _, u := range b.Unattached {
			card.Lines = append(card.Lines, "  "+output.Dim.Sprint("- "+u))
		}
	}
	if len(b.Sequences) > 0 {
		card.Lines = append(card.Lines, fmt.Sprintf("Sequential script runs: %d", len(b.Sequences)))
	}
	if b.Cleaned != nil {
		card.Lines = append(card.Lines, fmt.Sprintf("Cleaned archive: %s (was %s)", output.Bytes(*b.Cleaned), output.Bytes(b.Original)))
	}
	if b.Clean != nil && len(b.Clean.SkippedFiles) > 0 {
		card.Lines = append(card.Lines, output.Yellow.Sprintf("Skipped files: %s", strings.Join(b.Clean.SkippedFiles, ", ")))
	}
	return card
}
