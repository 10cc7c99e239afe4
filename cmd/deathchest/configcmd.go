package main

import (
	"github.com/spf13/cobra"

	"github.com/oriumgames/deathchest"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the death chest configuration file",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigCheckCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration if the file does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			written, err := deathchest.WriteDefaultConfig(configFile)
			if err != nil {
				return err
			}
			if written {
				cmd.Printf("wrote default configuration to %s\n", configFile)
			} else {
				cmd.Printf("%s already exists\n", configFile)
			}
			return nil
		},
	}
}

func newConfigCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		Long: `Load the configuration file and report every value that is invalid
and would be replaced by its default.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := deathchest.LoadConfig(configFile, nil)
			if err != nil {
				return err
			}
			_, warnings := cfg.Validate()
			for _, w := range warnings {
				cmd.Printf("warning: %s\n", w)
			}
			if len(warnings) == 0 {
				cmd.Printf("%s is valid\n", configFile)
			}
			return nil
		},
	}
}
