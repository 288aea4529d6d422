// Package cmd implements all CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenMined/proxylint/internal/config"
	"github.com/OpenMined/proxylint/internal/runlog"
	"github.com/OpenMined/proxylint/internal/runner"
	"github.com/OpenMined/proxylint/internal/version"
)

var (
	// Global flags
	configPath string
	logLevel   string

	// Resolved before every command runs.
	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "proxylint",
	Short: "proxylint - Analyze and clean API proxy bundles",
	Long: `proxylint - Static analysis and cleanup for API gateway proxy bundles.

Finds policies no flow invokes, reports runs of back-to-back script steps,
and writes cleaned copies of bundles with dead policies removed.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Version flag
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate("proxylint version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.proxylint/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(completionCmd)
}

// setup resolves configuration from the config file, .env, PROXYLINT_*
// variables and flags, in increasing precedence, and installs the logger.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFile(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg = config.LoadFrom(activeConfigFile())
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func activeConfigFile() string {
	if configPath != "" {
		return configPath
	}
	return config.ConfigFile
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: use debug, info, warn or error", s)
	}
	return level, nil
}

// newRunner builds a Runner from the resolved configuration.
func newRunner() *runner.Runner {
	return runner.New(runner.Options{
		ProxiesDir: cfg.ProxiesDir,
		OutputDir:  cfg.OutputDir,
		TempDir:    cfg.TempDir,
		Jobs:       cfg.Jobs,
		Bundle:     cfg.BundleOptions(),
		History:    runlog.NewStore(cfg.HistoryFile),
		Logger:     logger,
	})
}
