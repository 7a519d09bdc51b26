package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/calderbay/fieldwork/internal/canonical"
	"github.com/calderbay/fieldwork/internal/queryfilter"
	"github.com/calderbay/fieldwork/internal/survey"
)

// Audit history. Every mutation of an audited entity writes one entry in
// the same transaction as the change itself, so an entry exists exactly
// when its change committed. The snapshot is canonical JSON of the row
// after the change; the checksum is over the snapshot bytes, making later
// edits to the stored text detectable.

// snapshotFloat renders a coordinate or distance as its shortest
// round-tripping decimal string. Canonical JSON carries no float tokens.
func snapshotFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// The put helpers add optional fields to a snapshot. Absent fields are
// omitted rather than stored as null.

func putSnapString(snap map[string]any, key string, p *string) {
	if p != nil {
		snap[key] = *p
	}
}

func putSnapInt(snap map[string]any, key string, p *int64) {
	if p != nil {
		snap[key] = *p
	}
}

func putSnapFloat(snap map[string]any, key string, p *float64) {
	if p != nil {
		snap[key] = snapshotFloat(*p)
	}
}

func putSnapTime(snap map[string]any, key string, p *time.Time) {
	if p != nil {
		snap[key] = formatTime(*p)
	}
}

// transectSnapshot flattens a transect's stored fields for the audit
// trail. List annotations are not part of the record and stay out.
func transectSnapshot(t survey.Transect) map[string]any {
	snap := map[string]any{
		"uid":           t.UID,
		"name":          t.Name,
		"start_time":    formatTime(t.StartTime),
		"end_time":      formatTime(t.EndTime),
		"lat_from":      snapshotFloat(t.LatFrom),
		"long_from":     snapshotFloat(t.LongFrom),
		"lat_to":        snapshotFloat(t.LatTo),
		"long_to":       snapshotFloat(t.LongTo),
		"distance_km":   snapshotFloat(t.DistanceKM),
		"angle_degrees": t.AngleDegrees,
		"state":         t.State,
	}
	putSnapTime(snap, "turn_time", t.TurnTime)
	putSnapFloat(snap, "lat_turn", t.LatTurn)
	putSnapFloat(snap, "long_turn", t.LongTurn)
	putSnapString(snap, "template_id", t.TemplateID)
	putSnapInt(snap, "paused_for_minutes", t.PausedForMinutes)
	return snap
}

func occurrenceSnapshot(o survey.Occurrence) map[string]any {
	snap := map[string]any{
		"id":                   o.ID,
		"transect_uid":         o.TransectUID,
		"occurrence_number":    o.OccurrenceNumber,
		"recording_start_time": formatTime(o.RecordingStartTime),
	}
	putSnapTime(snap, "recording_end_time", o.RecordingEndTime)
	putSnapFloat(snap, "lat", o.Lat)
	putSnapFloat(snap, "long", o.Long)
	putSnapString(snap, "note", o.Note)
	putSnapString(snap, "state", o.State)
	return snap
}

func workflowSnapshot(w survey.Workflow) map[string]any {
	snap := map[string]any{
		"uid":                  w.UID,
		"occurrence_id":        w.OccurrenceID,
		"template_workflow_id": w.TemplateWorkflowID,
		"instance_number":      w.InstanceNumber,
	}
	putSnapString(snap, "completed_by", w.CompletedBy)
	return snap
}

func questionSnapshot(q survey.Question) map[string]any {
	snap := map[string]any{
		"id":             q.ID,
		"data_type_id":   q.DataTypeID,
		"data_type_name": q.DataTypeName,
	}
	putSnapString(snap, "prompt", q.Prompt)
	putSnapString(snap, "workflow_id", q.WorkflowID)
	return snap
}

// diffFields lists the keys whose values differ between two snapshots,
// sorted. A key present on only one side counts as changed.
func diffFields(before, after map[string]any) []string {
	changed := make(map[string]bool)
	for k, v := range before {
		if av, ok := after[k]; !ok || av != v {
			changed[k] = true
		}
	}
	for k := range after {
		if _, ok := before[k]; !ok {
			changed[k] = true
		}
	}

	fields := make([]string, 0, len(changed))
	for k := range changed {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// recordHistory appends one audit entry inside the caller's transaction,
// so the entry commits or rolls back together with the change it
// describes. fields is nil for creates; there is no prior row to diff.
func (s *Store) recordHistory(ctx context.Context, tx *sql.Tx, entity, entityKey, changeType string, changedBy *string, fields []string, snapshot map[string]any) error {
	snapshotBytes, err := canonical.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", entity, err)
	}
	if fields == nil {
		fields = []string{}
	}
	fieldsBytes, err := canonical.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields changed: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history_entries
			(entity, entity_key, change_type, changed_at, changed_by,
			 fields_changed, snapshot, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entity,
		entityKey,
		changeType,
		formatTime(s.now()),
		nullableString(changedBy),
		string(fieldsBytes),
		string(snapshotBytes),
		canonical.Checksum(canonical.DomainHistory, snapshotBytes),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

const historySelect = `
	SELECT h.id, h.entity, h.entity_key, h.change_type, h.changed_at,
	       h.changed_by, h.fields_changed, h.snapshot, h.checksum
	FROM history_entries h`

// ListHistory returns one page of the audit timeline, newest change first.
func (s *Store) ListHistory(ctx context.Context, f queryfilter.HistoryFilter, page queryfilter.Page) ([]survey.HistoryEntry, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "history_entries h", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count history entries: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, historySelect+b.SQL()+`
		ORDER BY h.changed_at DESC, h.id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query history entries: %w", err)
	}
	defer rows.Close()

	entries, err := collectHistoryEntries(rows)
	if err != nil {
		return nil, queryfilter.PageInfo{}, err
	}

	return entries, queryfilter.NewPageInfo(page, total), nil
}

// HistoryForEntity returns the newest audit entries for one record.
// Embedded in detail payloads; limit <= 0 means no limit.
func (s *Store) HistoryForEntity(ctx context.Context, entity, entityKey string, limit int) ([]survey.HistoryEntry, error) {
	query := historySelect + `
		WHERE h.entity = ? AND h.entity_key = ?
		ORDER BY h.changed_at DESC, h.id DESC`
	args := []any{entity, entityKey}
	if limit > 0 {
		query += `
		LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history entries: %w", err)
	}
	defer rows.Close()

	return collectHistoryEntries(rows)
}

// RecentHistory returns the newest audit entries across all entities.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]survey.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, historySelect+`
		ORDER BY h.changed_at DESC, h.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history entries: %w", err)
	}
	defer rows.Close()

	return collectHistoryEntries(rows)
}

func collectHistoryEntries(rows *sql.Rows) ([]survey.HistoryEntry, error) {
	var entries []survey.HistoryEntry
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history entries: %w", err)
	}

	// Return empty slice instead of nil
	if entries == nil {
		entries = []survey.HistoryEntry{}
	}

	return entries, nil
}

func scanHistoryEntry(sc scanner) (survey.HistoryEntry, error) {
	var e survey.HistoryEntry
	var changedAt string
	var changedBy sql.NullString
	var fieldsChanged string

	if err := sc.Scan(
		&e.ID, &e.Entity, &e.EntityKey, &e.ChangeType, &changedAt,
		&changedBy, &fieldsChanged, &e.Snapshot, &e.Checksum,
	); err != nil {
		return survey.HistoryEntry{}, err
	}

	var err error
	if e.ChangedAt, err = parseTime(changedAt); err != nil {
		return survey.HistoryEntry{}, err
	}
	e.ChangedBy = stringPtr(changedBy)
	if err := json.Unmarshal([]byte(fieldsChanged), &e.FieldsChanged); err != nil {
		return survey.HistoryEntry{}, fmt.Errorf("parse fields_changed: %w", err)
	}

	return e, nil
}

// VerifyChecksum recomputes the checksum of an entry's snapshot text and
// compares it to the stored value. A mismatch means the snapshot was
// altered after the entry was written.
func VerifyChecksum(e survey.HistoryEntry) error {
	got := canonical.Checksum(canonical.DomainHistory, []byte(e.Snapshot))
	if got != e.Checksum {
		return fmt.Errorf("history entry %d: checksum mismatch: stored %s, computed %s", e.ID, e.Checksum, got)
	}
	return nil
}
