package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/storefront"
)

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and generate configuration",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(newConfigSampleCommand())
	cmd.AddCommand(newConfigValidateCommand())
	return cmd
}

func newConfigSampleCommand() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print or write a sample configuration with every default filled in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" {
				if err := storefront.SaveSampleConfig(format, output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sample %s config written to %s\n", format, output)
				return nil
			}
			data, err := storefront.GenerateSampleConfig(format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml, json, toml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write instead of stdout")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration from file and environment and validate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := storefront.LoadConfig(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "Configuration file (yaml, json or toml)")
	return cmd
}
