package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/nucheck/internal/config"
)

// NewRootCmd creates the root command for nucheck.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nucheck",
		Short: "Validate HTML with the Nu HTML Checker",
		Long: `nucheck validates HTML documents with the Nu HTML Checker (validator.nu).

Pages can be read from URLs, local files or standard input. Messages are
grouped by kind and text, and message kinds or texts you do not care about
can be hidden. Hidden filters and validation history are kept in a local
database so they apply to every later run.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory holding the filter and history database")

	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewFilterCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
