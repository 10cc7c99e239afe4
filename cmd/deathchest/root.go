package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var (
	configFile string
	logFormat  string
)

const (
	defaultConfigFile = "deathchest.yml"
	defaultLogFormat  = "text"
)

// NewRootCmd creates the root command for the deathchest CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deathchest",
		Short: "Dragonfly server with death chests",
		Long: `deathchest runs a Dragonfly server that stores the items of dying
players in chests which break after a countdown.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", defaultConfigFile, "config file path")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", defaultLogFormat, "log format (json or text)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}
