package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/nucheck/internal/filter"
)

// NewFilterCmd creates the filter command and its subcommands.
func NewFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show or change which messages are hidden",
		Long: `Filter manages the hidden message kinds and texts.

Filters are saved in the local database and apply to every later
'nucheck validate' and 'nucheck history --id' run. A message is hidden when
its kind is hidden or when its exact text is hidden.

Examples:
  # Show the active filters
  nucheck filter list

  # Hide all info messages
  nucheck filter hide-type info

  # Hide one message text
  nucheck filter hide-message "Trailing slash on void elements has no effect and interacts badly with unquoted attribute values."

  # Show everything again
  nucheck filter clear`,
	}

	cmd.AddCommand(newFilterListCmd())
	cmd.AddCommand(newFilterUpdateCmd("hide-type <kind>", "Hide every message of a kind", filter.State.HideType))
	cmd.AddCommand(newFilterUpdateCmd("hide-message <text>", "Hide every message with this exact text", filter.State.HideMessage))
	cmd.AddCommand(newFilterUpdateCmd("unhide-type <kind>", "Show messages of a kind again", filter.State.UnhideType))
	cmd.AddCommand(newFilterUpdateCmd("unhide-message <text>", "Show messages with this text again", filter.State.UnhideMessage))
	cmd.AddCommand(newFilterClearCmd())

	return cmd
}

func newFilterListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the active filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jsonOut, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}

			logger := setupLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
			db, store, err := openFilterStore(getDBDir(cmd), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			st := store.Load(cmd.Context())
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printFilterState(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output filters as JSON")
	return cmd
}

// newFilterUpdateCmd creates a subcommand that applies update with its
// single argument and saves the result.
func newFilterUpdateCmd(use, short string, update func(filter.State, string) filter.State) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateFilters(cmd, func(st filter.State) filter.State {
				return update(st, args[0])
			})
		},
	}
}

func newFilterClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := setupLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
			db, store, err := openFilterStore(getDBDir(cmd), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			printFilterState(cmd.OutOrStdout(), filter.NewState())
			return nil
		},
	}
}

// updateFilters loads the saved filters, applies fn, saves and prints them.
func updateFilters(cmd *cobra.Command, fn func(filter.State) filter.State) error {
	logger := setupLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	db, store, err := openFilterStore(getDBDir(cmd), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	st := fn(store.Load(ctx))
	if err := store.Save(ctx, st); err != nil {
		return fmt.Errorf("failed to save filters: %w", err)
	}

	printFilterState(cmd.OutOrStdout(), st)
	return nil
}

// printFilterState writes the filters in the same layout as the text report.
func printFilterState(w io.Writer, st filter.State) {
	if st.IsEmpty() {
		fmt.Fprintln(w, "No active filters")
		return
	}
	if len(st.Types) > 0 {
		fmt.Fprintln(w, "Hidden types:")
		for _, t := range st.Types {
			fmt.Fprintf(w, "    - %s\n", t)
		}
	}
	if len(st.Messages) > 0 {
		fmt.Fprintln(w, "Hidden messages:")
		for _, m := range st.Messages {
			fmt.Fprintf(w, "    - %s\n", m)
		}
	}
}
