package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenMined/proxylint/internal/output"
	"github.com/OpenMined/proxylint/internal/rules"
	"github.com/OpenMined/proxylint/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <rule:variant>...",
	Short: "Re-run rules whenever bundle archives change",
	Long: `Run the rules once, then watch the proxies directory and run them again
whenever a *.zip archive is added, replaced or removed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&runProxiesDir, "proxies-dir", "", "Directory of bundle archives (overrides config)")
	watchCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "Output directory, cleared on each run (overrides config)")
	watchCmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "Bundles processed concurrently (overrides config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	sel, err := rules.Parse(args)
	if err != nil {
		return reportSelectionError(err, false)
	}
	if err := applyRunFlags(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := newRunner()
	runOnce := func(ctx context.Context) {
		summary, err := r.Run(ctx, sel)
		if err != nil {
			if ctx.Err() == nil {
				output.Error("Run failed: %v", err)
			}
			return
		}
		printSummary(summary, false)
	}

	runOnce(ctx)

	w, err := watch.New(&watch.Config{
		Dir:           cfg.ProxiesDir,
		DebounceDelay: time.Duration(cfg.WatchDebounce) * time.Second,
		Logger:        logger,
		Callback: func(ctx context.Context, changed []string) {
			output.Info("%d archive(s) changed, re-running", len(changed))
			runOnce(ctx)
		},
	})
	if err != nil {
		return err
	}

	output.Info("Watching %s (Ctrl+C to stop)", cfg.ProxiesDir)
	return w.Start(ctx)
}
