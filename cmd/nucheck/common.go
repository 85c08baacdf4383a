package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/nucheck/internal/config"
	"github.com/nao1215/nucheck/internal/database"
	"github.com/nao1215/nucheck/internal/filter"
	applog "github.com/nao1215/nucheck/internal/log"
	"github.com/nao1215/nucheck/internal/report"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getDBDir retrieves the database directory from the root command,
// falling back to the XDG data directory.
func getDBDir(cmd *cobra.Command) string {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil || dir == "" {
		dir, err = cmd.Root().PersistentFlags().GetString("db-dir")
		if err != nil || dir == "" {
			return config.XDGDataDir()
		}
	}
	return dir
}

// setupLogger creates a structured logger that masks cookies, tokens and
// credentials before they reach w.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return applog.NewSecureLogger(w, verbose)
}

// openFilterStore opens the database in dir and returns the filter store
// backed by it. The caller must close the database.
func openFilterStore(dir string, logger *slog.Logger) (*database.DB, *filter.Store, error) {
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, filter.NewStore(db, filter.WithStoreLogger(logger)), nil
}

// openOutput returns the report destination. An empty path means fallback.
// The returned close function is always safe to call.
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports include the submitted markup, so keep them private to the owner
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter picks the writer for the requested format.
func newReportWriter(w io.Writer, jsonOut, markdownOut bool, opts ...report.Option) report.Writer {
	switch {
	case jsonOut:
		return report.NewJSONWriter(w, opts...)
	case markdownOut:
		return report.NewMarkdownWriter(w, opts...)
	default:
		return report.NewSimpleWriter(w, opts...)
	}
}

// colorDisabled reports whether stdout cannot show colors or NO_COLOR is set.
func colorDisabled() bool {
	return color.NoColor
}
