package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command group
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or validate the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, warnings, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogger(cmd, appCfg, warnings)
			out, err := appCfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and list any defaults applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, warnings, err := loadConfig(cmd)
			out := cmd.OutOrStdout()
			for _, w := range warnings {
				fmt.Fprintf(out, "WARNING: %s\n", w)
			}
			if err != nil {
				return fmt.Errorf("configuration is invalid: %w", err)
			}
			fmt.Fprintln(out, "Configuration is valid")
			return nil
		},
	})
	return cmd
}
