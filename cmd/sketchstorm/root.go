package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/sketchstorm/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sketchstorm",
		Short: "Sketchstorm runs drawing scenarios against an undoable canvas",
		Long: `Sketchstorm executes Lua scenario scripts against an in-memory canvas
whose history supports bounded undo and redo.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	root.PersistentFlags().StringP("config", "c", "", "Path to a TOML or YAML configuration file")

	root.AddCommand(newRunCmd(), newConfigCmd(), newVersionCmd())
	return root
}

// loadConfig resolves configuration from the --config flag and the
// environment.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	return cfg, path, err
}
