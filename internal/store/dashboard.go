package store

import (
	"context"
	"fmt"

	"github.com/calderbay/fieldwork/internal/survey"
)

// DashboardMetrics are the dashboard's headline counts. A metric is nil
// when its count query failed; one broken table must not blank the whole
// dashboard.
type DashboardMetrics struct {
	CompletedTransects   *int64 `json:"completed_transects"`
	CompletedOccurrences *int64 `json:"completed_occurrences"`
	CompletedWorkflows   *int64 `json:"completed_workflows"`
	OutstandingTasks     *int64 `json:"outstanding_tasks"`
}

// DashboardMetrics counts the completed survey entities and the open work
// still waiting on operators. Outstanding is open workflows plus open
// occurrences and is nil only when both component counts failed.
func (s *Store) DashboardMetrics(ctx context.Context) DashboardMetrics {
	m := DashboardMetrics{
		CompletedTransects:   s.safeCount(ctx, "SELECT COUNT(*) FROM transects"),
		CompletedOccurrences: s.safeCount(ctx, "SELECT COUNT(*) FROM occurrences"),
		CompletedWorkflows:   s.safeCount(ctx, "SELECT COUNT(*) FROM workflows"),
	}

	openWorkflows := s.safeCount(ctx, "SELECT COUNT(*) FROM workflows WHERE completed_by IS NULL")
	openOccurrences := s.safeCount(ctx, "SELECT COUNT(*) FROM occurrences WHERE recording_end_time IS NULL")
	switch {
	case openWorkflows == nil && openOccurrences == nil:
	case openWorkflows == nil:
		m.OutstandingTasks = openOccurrences
	case openOccurrences == nil:
		m.OutstandingTasks = openWorkflows
	default:
		total := *openWorkflows + *openOccurrences
		m.OutstandingTasks = &total
	}

	return m
}

// safeCount runs one COUNT query and returns nil on failure.
func (s *Store) safeCount(ctx context.Context, query string, args ...any) *int64 {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return nil
	}
	return &n
}

// RecentTransects returns the newest transects for the dashboard feed.
func (s *Store) RecentTransects(ctx context.Context, limit int) ([]survey.Transect, error) {
	rows, err := s.db.QueryContext(ctx, transectSelect+`
		ORDER BY t.start_time DESC, t.uid ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transects: %w", err)
	}
	defer rows.Close()

	return collectTransects(rows)
}

// RecentOccurrences returns the newest occurrences for the dashboard feed.
func (s *Store) RecentOccurrences(ctx context.Context, limit int) ([]survey.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx, occurrenceSelect+`
		ORDER BY o.recording_start_time DESC, o.id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query occurrences: %w", err)
	}
	defer rows.Close()

	return collectOccurrences(rows)
}

// RecentUploads returns the newest data log files for the dashboard feed.
func (s *Store) RecentUploads(ctx context.Context, limit int) ([]survey.DataLogFile, error) {
	rows, err := s.db.QueryContext(ctx, dataLogFileSelect+`
		ORDER BY dlf.upload_date DESC, dlf.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query data log files: %w", err)
	}
	defer rows.Close()

	return collectDataLogFiles(rows)
}

// PendingAuditCount counts transects whose state mentions an audit,
// case-insensitively. The state vocabulary is free-form device text, so a
// substring match is the strongest test available.
func (s *Store) PendingAuditCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transects WHERE LOWER(state) LIKE '%audit%'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending audits: %w", err)
	}
	return n, nil
}
