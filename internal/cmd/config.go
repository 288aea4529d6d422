package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenMined/proxylint/internal/config"
	"github.com/OpenMined/proxylint/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `Manage CLI configuration settings.`,
}

// Config set subcommand
var configSetJSONOutput bool

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf("Set a configuration value. List values are comma-separated.\n\nAllowed keys: %s",
		strings.Join(config.Keys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

// Config show subcommand
var configShowJSONOutput bool

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the effective configuration: the config file merged with .env,
PROXYLINT_* environment variables and flags.`,
	RunE: runConfigShow,
}

// Config path subcommand
var configPathJSONOutput bool

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	RunE:  runConfigPath,
}

// Config init subcommand
var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE:  runConfigInit,
}

func init() {
	configSetCmd.Flags().BoolVar(&configSetJSONOutput, "json", false, "Output result as JSON")
	configShowCmd.Flags().BoolVar(&configShowJSONOutput, "json", false, "Output result as JSON")
	configPathCmd.Flags().BoolVar(&configPathJSONOutput, "json", false, "Output result as JSON")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing config file")

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Only file values are persisted, never env or flag overrides.
	path := activeConfigFile()
	fileCfg := config.LoadFrom(path)

	if err := fileCfg.Set(key, value); err != nil {
		if configSetJSONOutput {
			output.JSON(map[string]interface{}{
				"status":       "error",
				"message":      err.Error(),
				"allowed_keys": config.Keys(),
			})
		} else {
			output.Error("%v", err)
		}
		return err
	}

	if err := fileCfg.SaveTo(path); err != nil {
		if configSetJSONOutput {
			output.JSON(map[string]interface{}{
				"status":  "error",
				"message": err.Error(),
			})
		} else {
			output.Error("Failed to save config: %v", err)
		}
		return err
	}

	stored, _ := fileCfg.Get(key)
	if configSetJSONOutput {
		output.JSON(map[string]interface{}{
			"status": "success",
			"key":    key,
			"value":  stored,
		})
	} else {
		output.Success("Set %s = %s", key, stored)
	}

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if configShowJSONOutput {
		output.JSON(map[string]interface{}{
			"status": "success",
			"config": cfg,
			"path":   activeConfigFile(),
		})
		return nil
	}

	values := make([]output.ConfigValue, 0, len(config.Keys()))
	for _, key := range config.Keys() {
		v, err := cfg.Get(key)
		if err != nil {
			return err
		}
		values = append(values, output.ConfigValue{Key: key, Value: v})
	}
	output.PrintConfigTable(values)

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	if configPathJSONOutput {
		output.JSON(map[string]interface{}{
			"status": "success",
			"path":   activeConfigFile(),
		})
	} else {
		fmt.Println(activeConfigFile())
	}

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := activeConfigFile()
	if _, err := os.Stat(path); err == nil && !configInitForce {
		output.Warning("%s already exists (use --force to overwrite)", path)
		return nil
	}

	if err := config.NewConfig().SaveTo(path); err != nil {
		output.Error("Failed to write config: %v", err)
		return err
	}

	output.Success("Wrote default configuration to %s", path)
	return nil
}
