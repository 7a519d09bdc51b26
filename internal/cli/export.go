package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/calderbay/fieldwork/internal/server"
	"github.com/calderbay/fieldwork/internal/store"
	"github.com/calderbay/fieldwork/internal/survey"
)

// ExportOptions holds flags shared by the export subcommands.
type ExportOptions struct {
	*RootOptions
	Transect int64
	Output   string
}

// NewExportCommand creates the export command group.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export survey data as CSV or GPX",
	}

	cmd.AddCommand(newExportResponsesCommand(rootOpts))
	cmd.AddCommand(newExportTrackCommand(rootOpts))

	return cmd
}

func newExportResponsesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "responses",
		Short: "Export a transect's responses as CSV",
		Long: `Export every workflow response recorded on a transect's occurrences
as CSV, one row per response. Writes to stdout unless -o names a file.

Example:
  fieldwork export responses --transect 42 --db ./survey.db
  fieldwork export responses --transect 42 -o transect-42.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd, "responses", func(ctx context.Context, st *store.Store, t survey.Transect, w io.Writer) (int, error) {
				responses, err := st.ResponsesForTransect(ctx, t.UID)
				if err != nil {
					return 0, err
				}
				return len(responses), server.WriteResponsesCSV(w, responses)
			})
		},
	}

	addExportFlags(cmd, opts)
	return cmd
}

func newExportTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Export a transect's GPS track as GPX",
		Long: `Export a transect's GPS track as a GPX 1.1 document. Flagged points
(turns, occurrences, checkpoints) become named waypoints. Writes to
stdout unless -o names a file.

Example:
  fieldwork export track --transect 42 --db ./survey.db
  fieldwork export track --transect 42 -o transect-42.gpx`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd, "track points", func(ctx context.Context, st *store.Store, t survey.Transect, w io.Writer) (int, error) {
				points, err := st.TrackPoints(ctx, t.UID)
				if err != nil {
					return 0, err
				}
				return len(points), server.WriteTrackGPX(w, t, points)
			})
		},
	}

	addExportFlags(cmd, opts)
	return cmd
}

func addExportFlags(cmd *cobra.Command, opts *ExportOptions) {
	cmd.Flags().Int64Var(&opts.Transect, "transect", 0, "transect UID to export (required)")
	_ = cmd.MarkFlagRequired("transect")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
}

// runExport resolves the transect, picks the destination writer, and hands
// both to the format-specific writer. With -o set a summary line goes to
// stdout; without it the payload itself is stdout and nothing else is
// printed.
func runExport(opts *ExportOptions, cmd *cobra.Command, what string, write func(context.Context, *store.Store, survey.Transect, io.Writer) (int, error)) error {
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()
	t, err := st.GetTransect(ctx, opts.Transect)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("transect %d not found", opts.Transect))
		}
		return WrapExitError(ExitCommandError, "failed to load transect", err)
	}

	out := cmd.OutOrStdout()
	var file *os.File
	if opts.Output != "" {
		file, err = os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output file", err)
		}
		out = file
	}

	count, err := write(ctx, st, t, out)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return WrapExitError(ExitCommandError, "export failed", err)
	}
	if file != nil {
		if err := file.Close(); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output file", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d %s for transect %d to %s\n", count, what, t.UID, opts.Output)
	}
	return nil
}
