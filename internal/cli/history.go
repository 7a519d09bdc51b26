package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/calderbay/fieldwork/internal/queryfilter"
	"github.com/calderbay/fieldwork/internal/survey"
)

// HistoryOptions contains options for the history command.
type HistoryOptions struct {
	*RootOptions
	Entity string
	Key    string
	Limit  int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit trail of edits",
		Long: `Show the audit trail of edits, newest first.

Every accepted edit records who changed what and when. Filter by entity
kind, or by entity kind and key to follow one record.

Example:
  fieldwork history
  fieldwork history --entity transect --key 42
  fieldwork history --entity workflow --limit 50 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entity, "entity", "", "Limit to one entity kind (transect, occurrence, workflow, question)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "Limit to one record (requires --entity)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum number of entries to show")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Key != "" && opts.Entity == "" {
		return NewExitError(ExitCommandError, "--key requires --entity")
	}
	if opts.Entity != "" && !slices.Contains(survey.AuditedEntities, opts.Entity) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("unknown entity %q: must be one of %v", opts.Entity, survey.AuditedEntities))
	}

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	f := queryfilter.HistoryFilter{Entity: opts.Entity, EntityKey: opts.Key}
	entries, _, err := st.ListHistory(context.Background(), f, queryfilter.Page{Number: 1, Size: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query history", err)
	}

	if opts.Format == "json" {
		return formatter.Success(entries)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		return nil
	}
	fmt.Fprintf(out, "=== History (%d) ===\n", len(entries))
	writeHistoryLines(out, entries, opts.Verbose)

	return nil
}
