package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calderbay/fieldwork/internal/store"
	"github.com/calderbay/fieldwork/internal/survey"
)

// reportRecentLimit caps each recent-activity feed in the report.
const reportRecentLimit = 5

// ReportOptions contains options for the report command.
type ReportOptions struct {
	*RootOptions
}

// ReportResult is the payload returned by the report command.
type ReportResult struct {
	Metrics           store.DashboardMetrics `json:"metrics"`
	PendingAudits     *int64                 `json:"pending_audits"`
	RecentTransects   []survey.Transect      `json:"recent_transects"`
	RecentOccurrences []survey.Occurrence    `json:"recent_occurrences"`
	RecentUploads     []survey.DataLogFile   `json:"recent_uploads"`
	RecentChanges     []survey.HistoryEntry  `json:"recent_changes"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize survey progress and recent activity",
		Long: `Summarize survey progress and recent activity.

Prints the completion counts, the number of transects awaiting audit, and
the newest transects, occurrences, uploads, and changes.

Example:
  fieldwork report --db ./survey.db
  fieldwork report --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()

	result := ReportResult{Metrics: st.DashboardMetrics(ctx)}
	if pending, err := st.PendingAuditCount(ctx); err == nil {
		result.PendingAudits = &pending
	}

	result.RecentTransects, err = st.RecentTransects(ctx, reportRecentLimit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query recent transects", err)
	}
	result.RecentOccurrences, err = st.RecentOccurrences(ctx, reportRecentLimit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query recent occurrences", err)
	}
	result.RecentUploads, err = st.RecentUploads(ctx, reportRecentLimit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query recent uploads", err)
	}
	result.RecentChanges, err = st.RecentHistory(ctx, reportRecentLimit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query recent history", err)
	}

	// Log contents can run to megabytes; the report only needs sizes.
	uploadBytes := make([]int, len(result.RecentUploads))
	for i := range result.RecentUploads {
		if c := result.RecentUploads[i].Contents; c != nil {
			uploadBytes[i] = len(*c)
		}
		result.RecentUploads[i].Contents = nil
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Survey Database Report")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "=== Counts ===")
	fmt.Fprintf(out, "  Completed transects:   %s\n", formatCount(result.Metrics.CompletedTransects))
	fmt.Fprintf(out, "  Completed occurrences: %s\n", formatCount(result.Metrics.CompletedOccurrences))
	fmt.Fprintf(out, "  Completed workflows:   %s\n", formatCount(result.Metrics.CompletedWorkflows))
	fmt.Fprintf(out, "  Outstanding tasks:     %s\n", formatCount(result.Metrics.OutstandingTasks))
	fmt.Fprintf(out, "  Pending audits:        %s\n", formatCount(result.PendingAudits))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "=== Recent Transects ===")
	if len(result.RecentTransects) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, t := range result.RecentTransects {
		fmt.Fprintf(out, "  [%d] %s (%s) started %s\n", t.UID, t.Name, t.State, formatReportTime(t.StartTime))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "=== Recent Occurrences ===")
	if len(result.RecentOccurrences) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, o := range result.RecentOccurrences {
		fmt.Fprintf(out, "  [%d] %s #%d started %s\n", o.ID, o.TransectName, o.OccurrenceNumber, formatReportTime(o.RecordingStartTime))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "=== Recent Uploads ===")
	if len(result.RecentUploads) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for i, u := range result.RecentUploads {
		fmt.Fprintf(out, "  [%d] %d bytes uploaded by %s at %s\n",
			u.ID, uploadBytes[i], stringOrUnknown(u.UploadedBy), formatReportTimePtr(u.UploadDate))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "=== Recent Changes ===")
	writeHistoryLines(out, result.RecentChanges, opts.Verbose)

	return nil
}

// writeHistoryLines prints history entries one per line, oldest last.
// Shared with the history command.
func writeHistoryLines(out io.Writer, entries []survey.HistoryEntry, verbose bool) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	for _, h := range entries {
		fmt.Fprintf(out, "  [%d] %s %s %s by %s at %s\n",
			h.ID, h.ChangeType, h.Entity, h.EntityKey, stringOrUnknown(h.ChangedBy), formatReportTime(h.ChangedAt))
		if verbose && len(h.FieldsChanged) > 0 {
			fmt.Fprintf(out, "      fields: %s\n", strings.Join(h.FieldsChanged, ", "))
		}
	}
}

func formatCount(n *int64) string {
	if n == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *n)
}

func formatReportTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatReportTimePtr(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return formatReportTime(*t)
}

func stringOrUnknown(s *string) string {
	if s == nil || *s == "" {
		return "unknown"
	}
	return *s
}
