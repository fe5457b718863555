// Command graphrulesctl is the operator CLI for the rule engine: parsing
// and validating DSL text, uploading it to the store, firing a single
// action, running a batch job, and watching a directory for hot reload.
// Grounded on the teacher's cmd/commands package: one cobra.Command per
// subcommand, wired under a single root command in main.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arxos/graphrules/internal/config"
	"github.com/arxos/graphrules/internal/grlog"
)

func main() {
	root := &cobra.Command{
		Use:   "graphrulesctl",
		Short: "Operate the reactive graph rule engine",
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "graphrules.yaml", "path to config YAML")

	root.AddCommand(
		newParseCmd(),
		newUploadCmd(&configPath),
		newExecCmd(&configPath),
		newBatchCmd(&configPath),
		newWatchCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads path, falling back to defaults (logged at Info level)
// when the file is missing or malformed rather than aborting every
// subcommand on a missing config file.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		bootstrap := grlog.New(grlog.LevelInfo, "graphrulesctl")
		bootstrap.Info("using default configuration", "path", path, "reason", err)
		return config.Default(), nil
	}
	return cfg, nil
}

func newLogger(cfg config.Config, component string) *grlog.Logger {
	return grlog.New(grlog.ParseLevel(cfg.Log.Level), "graphrulesctl").With(component)
}
