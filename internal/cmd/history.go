package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenMined/proxylint/internal/output"
	"github.com/OpenMined/proxylint/internal/runlog"
)

var (
	historyLimit      int
	historyJSONOutput bool
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs",
	Long: `Show recent runs, most recent first.

With a run ID (or an ID prefix of at least 4 characters), show that run's bundles.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSONOutput, "json", false, "Output result as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store := runlog.NewStore(cfg.HistoryFile)

	if len(args) == 1 {
		return showRun(store, args[0])
	}

	records, err := store.Recent(historyLimit)
	if err != nil {
		if historyJSONOutput {
			output.JSON(map[string]interface{}{
				"status":  "error",
				"message": err.Error(),
			})
		} else {
			output.Error("Failed to read history: %v", err)
		}
		return err
	}

	if historyJSONOutput {
		output.JSON(map[string]interface{}{
			"status": "success",
			"runs":   records,
		})
		return nil
	}

	if len(records) == 0 {
		output.Dim.Println("No runs recorded.")
		return nil
	}

	table := output.TableWithTitle("Recent Runs", []string{"ID", "Started", "Duration", "Rules", "Bundles", "Failed"})
	for _, rec := range records {
		table.Append([]string{
			rec.ID[:8],
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			(time.Duration(rec.DurationMs) * time.Millisecond).String(),
			strings.Join(rec.Rules, " "),
			fmt.Sprintf("%d", len(rec.Bundles)),
			fmt.Sprintf("%d", rec.Failed()),
		})
	}
	table.Render()
	return nil
}

func showRun(store *runlog.Store, id string) error {
	rec, err := store.Get(id)
	if err != nil {
		if historyJSONOutput {
			output.JSON(map[string]interface{}{
				"status":  "error",
				"message": err.Error(),
			})
		} else {
			output.Error("%v", err)
		}
		return err
	}

	if historyJSONOutput {
		output.JSON(map[string]interface{}{
			"status": "success",
			"run":    rec,
		})
		return nil
	}

	title := fmt.Sprintf("Run %s (%s)", rec.ID, strings.Join(rec.Rules, " "))
	table := output.TableWithTitle(title, []string{"Bundle", "Unattached", "Sequences", "Original", "Cleaned", "Error"})
	for _, b := range rec.Bundles {
		cleaned := ""
		if b.Cleaned != nil {
			cleaned = output.Bytes(*b.Cleaned)
		}
		table.Append([]string{
			b.Name,
			fmt.Sprintf("%d", b.Unattached),
			fmt.Sprintf("%d", b.Sequences),
			output.Bytes(b.Original),
			cleaned,
			output.Truncate(b.Error, 40),
		})
	}
	table.Render()
	return nil
}
