// Package cmd holds the storefront command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// OsExit is replaced in tests.
var OsExit = os.Exit

// NewRootCommand creates the root command for the storefront binary
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "storefront",
		Short:   "Storefront - reactive catalog, basket and checkout service",
		Version: PrintVersion(),
		Long: `Storefront keeps the catalog, the basket and the checkout draft in one
event-driven state layer and serves it over HTTP.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewConfigCommand())

	return cmd
}

// PrintVersion returns the version line
func PrintVersion() string {
	return fmt.Sprintf("%s (commit: %s, built on: %s)", Version, Commit, Date)
}
