package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nao1215/nucheck/internal/database"
	"github.com/nao1215/nucheck/internal/markup"
	"github.com/nao1215/nucheck/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// This command lists stored runs and re-renders one with the current filters.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "List past validation runs or show one again",
		Long: `History lists the validation runs recorded by 'nucheck validate', newest first.

Every run keeps the markup that was submitted and the checker's messages, so a
run can be shown again with --id. The report uses the filters that are active
now, not the ones active when the run was recorded.

Examples:
  # List the latest runs of every target
  nucheck history

  # List the runs of one page
  nucheck history https://example.com/

  # Show run 12 with three lines of context
  nucheck history --id 12 -C 3

  # Export run 12 as JSON
  nucheck history --id 12 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("id", "i", 0,
		"Show the run with this ID (use 'nucheck history' to see available IDs)")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs listed (0 lists all)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().IntP("context", "C", 0,
		"Lines of source shown on each side of a message")
	cmd.Flags().BoolP("show-filters", "F", false,
		"Include the active filters in the report")
	cmd.Flags().Bool("no-color", false,
		"Disable colored output")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	id          int64
	limit       int
	jsonOut     bool
	markdownOut bool
	context     int
	showFilters bool
	noColor     bool
}

func parseHistoryOptions(cmd *cobra.Command) (historyOptions, error) {
	var (
		o   historyOptions
		err error
	)
	if o.id, err = cmd.Flags().GetInt64("id"); err != nil {
		return o, err
	}
	if o.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return o, err
	}
	if o.jsonOut, err = cmd.Flags().GetBool("json"); err != nil {
		return o, err
	}
	if o.markdownOut, err = cmd.Flags().GetBool("markdown"); err != nil {
		return o, err
	}
	if o.context, err = cmd.Flags().GetInt("context"); err != nil {
		return o, err
	}
	if o.showFilters, err = cmd.Flags().GetBool("show-filters"); err != nil {
		return o, err
	}
	if o.noColor, err = cmd.Flags().GetBool("no-color"); err != nil {
		return o, err
	}

	switch {
	case o.jsonOut && o.markdownOut:
		return o, errors.New("--json and --markdown cannot be used together")
	case o.context < 0:
		return o, errors.New("--context must be zero or positive")
	case o.limit < 0:
		return o, errors.New("--limit must be zero or positive")
	}
	return o, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd)
	if err != nil {
		return err
	}

	var target string
	if len(args) > 0 {
		target = markup.NormalizeTarget(args[0])
	}

	logger := setupLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	db, store, err := openFilterStore(getDBDir(cmd), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if opts.id == 0 {
		runs, err := db.ListRuns(ctx, target, opts.limit)
		if err != nil {
			return err
		}
		if opts.jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		printRunList(out, target, runs)
		return nil
	}

	run, err := db.GetRun(ctx, opts.id)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("run %d not found (use 'nucheck history' to see available IDs)", opts.id)
	}
	if err != nil {
		return err
	}

	w := newReportWriter(out, opts.jsonOut, opts.markdownOut,
		report.WithShowFilters(opts.showFilters),
		report.WithContext(opts.context),
		report.WithColor(!opts.noColor && !colorDisabled()),
		report.WithPrettyPrint(),
		report.WithVersion(getVersion()),
	)
	_, err = w.Write(report.New(run, store.Load(ctx)))
	return err
}

// maxHistoryTargetWidth bounds the target column of the run list.
const maxHistoryTargetWidth = 50

// printRunList writes one line per run.
func printRunList(w io.Writer, target string, runs []database.RunSummary) {
	if len(runs) == 0 {
		if target != "" {
			fmt.Fprintf(w, "No runs recorded for %s\n", target)
		} else {
			fmt.Fprintln(w, "No runs recorded")
		}
		fmt.Fprintln(w, "\nUse 'nucheck validate <target>' to validate a document.")
		return
	}

	targetWidth := len("Target")
	for _, r := range runs {
		targetWidth = max(targetWidth, runewidth.StringWidth(r.Target))
	}
	targetWidth = min(targetWidth, maxHistoryTargetWidth)

	fmt.Fprintf(w, "  %-6s  %-19s  %s  %6s  %8s  %5s  %s\n",
		"ID", "Date", runewidth.FillRight("Target", targetWidth), "Errors", "Warnings", "Infos", "Status")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 64+targetWidth))

	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "failed: " + r.Error
		}
		name := runewidth.Truncate(r.Target, targetWidth, "...")
		fmt.Fprintf(w, "  %-6d  %-19s  %s  %6d  %8d  %5d  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			runewidth.FillRight(name, targetWidth),
			r.Counts.Errors,
			r.Counts.Warnings,
			r.Counts.Infos,
			status,
		)
	}

	fmt.Fprintln(w, "\nUse 'nucheck history --id <id>' to show a run again.")
}
