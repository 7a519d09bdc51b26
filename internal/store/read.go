package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calderbay/fieldwork/internal/queryfilter"
	"github.com/calderbay/fieldwork/internal/survey"
)

// scanner abstracts sql.Row and sql.Rows so each entity needs one scan
// function. Scan errors pass through unwrapped; single-row lookups rely on
// sql.ErrNoRows surviving to the caller.
type scanner interface {
	Scan(dest ...any) error
}

// querier is the single-row read surface shared by *sql.DB and *sql.Tx.
// The pool holds one connection, so any read made while a transaction is
// open must go through that transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// countRows runs the COUNT(*) companion query for a filtered list.
func (s *Store) countRows(ctx context.Context, from string, b *queryfilter.WhereBuilder) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+from+b.SQL(), b.Params()...).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ListTransects returns one page of completed transects, newest first.
// Each row carries its template name and occurrence count.
func (s *Store) ListTransects(ctx context.Context, f queryfilter.TransectFilter, page queryfilter.Page) ([]survey.Transect, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "transects t", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count transects: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, transectSelect+b.SQL()+`
		ORDER BY t.start_time DESC, t.uid ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query transects: %w", err)
	}
	defer rows.Close()

	transects, err := collectTransects(rows)
	if err != nil {
		return nil, queryfilter.PageInfo{}, err
	}

	return transects, queryfilter.NewPageInfo(page, total), nil
}

func collectTransects(rows *sql.Rows) ([]survey.Transect, error) {
	var transects []survey.Transect
	for rows.Next() {
		t, err := scanTransect(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transect: %w", err)
		}
		transects = append(transects, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transects: %w", err)
	}

	// Return empty slice instead of nil
	if transects == nil {
		transects = []survey.Transect{}
	}

	return transects, nil
}

const transectSelect = `
	SELECT t.uid, t.name, t.start_time, t.turn_time, t.end_time,
	       t.lat_from, t.long_from, t.lat_turn, t.long_turn, t.lat_to, t.long_to,
	       t.distance_km, t.angle_degrees, t.state, t.template_id, t.paused_for_minutes,
	       tt.name,
	       (SELECT COUNT(*) FROM occurrences o WHERE o.transect_uid = t.uid)
	FROM transects t
	LEFT JOIN template_transects tt ON t.template_id = tt.id`

// GetTransect retrieves a single transect by device-assigned UID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetTransect(ctx context.Context, uid int64) (survey.Transect, error) {
	return getTransect(ctx, s.db, uid)
}

func getTransect(ctx context.Context, q querier, uid int64) (survey.Transect, error) {
	row := q.QueryRowContext(ctx, transectSelect+`
		WHERE t.uid = ?`, uid)

	return scanTransect(row)
}

// TransectInfos returns the pre/post survey question rows for a transect.
func (s *Store) TransectInfos(ctx context.Context, uid int64) ([]survey.TransectInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transect_uid, pre_or_post, question_text,
		       response_data_type, response_code, response
		FROM transect_info
		WHERE transect_uid = ?
		ORDER BY id ASC`, uid)
	if err != nil {
		return nil, fmt.Errorf("query transect info: %w", err)
	}
	defer rows.Close()

	var infos []survey.TransectInfo
	for rows.Next() {
		var info survey.TransectInfo
		var dataType, code, response sql.NullString
		if err := rows.Scan(
			&info.ID, &info.TransectUID, &info.PreOrPost, &info.QuestionText,
			&dataType, &code, &response,
		); err != nil {
			return nil, fmt.Errorf("scan transect info: %w", err)
		}
		info.ResponseDataType = stringPtr(dataType)
		info.ResponseCode = stringPtr(code)
		info.Response = stringPtr(response)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transect info: %w", err)
	}

	if infos == nil {
		infos = []survey.TransectInfo{}
	}

	return infos, nil
}

// TrackPoints returns a transect's recorded GPS track in time order.
func (s *Store) TrackPoints(ctx context.Context, uid int64) ([]survey.TrackPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user, transect_uid, time, lat, long,
		       is_start, is_checkpoint, is_occurrence, is_turn_point, is_end
		FROM track_points
		WHERE transect_uid = ?
		ORDER BY time ASC, id ASC`, uid)
	if err != nil {
		return nil, fmt.Errorf("query track points: %w", err)
	}
	defer rows.Close()

	var points []survey.TrackPoint
	for rows.Next() {
		var p survey.TrackPoint
		var at string
		if err := rows.Scan(
			&p.ID, &p.User, &p.TransectUID, &at, &p.Lat, &p.Long,
			&p.IsStart, &p.IsCheckpoint, &p.IsOccurrence, &p.IsTurnPoint, &p.IsEnd,
		); err != nil {
			return nil, fmt.Errorf("scan track point: %w", err)
		}
		if p.Time, err = parseTime(at); err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track points: %w", err)
	}

	if points == nil {
		points = []survey.TrackPoint{}
	}

	return points, nil
}

// TransectStates returns the distinct non-empty transect states, sorted.
// Feeds the state filter choices; the vocabulary is free-form device text.
func (s *Store) TransectStates(ctx context.Context) ([]string, error) {
	return s.distinctStates(ctx, "SELECT DISTINCT state FROM transects WHERE state <> '' ORDER BY state ASC")
}

// OccurrenceStates returns the distinct non-empty occurrence states, sorted.
func (s *Store) OccurrenceStates(ctx context.Context) ([]string, error) {
	return s.distinctStates(ctx, "SELECT DISTINCT state FROM occurrences WHERE state IS NOT NULL AND state <> '' ORDER BY state ASC")
}

func (s *Store) distinctStates(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	var states []string
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}

	if states == nil {
		states = []string{}
	}

	return states, nil
}

// ListOccurrences returns one page of occurrences, newest recording first.
// Each row carries its transect name and response count.
func (s *Store) ListOccurrences(ctx context.Context, f queryfilter.OccurrenceFilter, page queryfilter.Page) ([]survey.Occurrence, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "occurrences o", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count occurrences: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, occurrenceSelect+b.SQL()+`
		ORDER BY o.recording_start_time DESC, o.id ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query occurrences: %w", err)
	}
	defer rows.Close()

	occurrences, err := collectOccurrences(rows)
	if err != nil {
		return nil, queryfilter.PageInfo{}, err
	}

	return occurrences, queryfilter.NewPageInfo(page, total), nil
}

// OccurrencesForTransect returns a transect's occurrences in field order.
func (s *Store) OccurrencesForTransect(ctx context.Context, uid int64) ([]survey.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx, occurrenceSelect+`
		WHERE o.transect_uid = ?
		ORDER BY o.occurrence_number ASC, o.id ASC`, uid)
	if err != nil {
		return nil, fmt.Errorf("query occurrences: %w", err)
	}
	defer rows.Close()

	return collectOccurrences(rows)
}

const occurrenceSelect = `
	SELECT o.id, o.transect_uid, o.occurrence_number,
	       o.recording_start_time, o.recording_end_time,
	       o.lat, o.long, o.note, o.state,
	       t.name,
	       (SELECT COUNT(*) FROM responses r WHERE r.occurrence_id = o.id)
	FROM occurrences o
	LEFT JOIN transects t ON o.transect_uid = t.uid`

func collectOccurrences(rows *sql.Rows) ([]survey.Occurrence, error) {
	var occurrences []survey.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occurrences = append(occurrences, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrences: %w", err)
	}

	if occurrences == nil {
		occurrences = []survey.Occurrence{}
	}

	return occurrences, nil
}

// GetOccurrence retrieves a single occurrence by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetOccurrence(ctx context.Context, id int64) (survey.Occurrence, error) {
	return getOccurrence(ctx, s.db, id)
}

func getOccurrence(ctx context.Context, q querier, id int64) (survey.Occurrence, error) {
	row := q.QueryRowContext(ctx, occurrenceSelect+`
		WHERE o.id = ?`, id)

	return scanOccurrence(row)
}

// OccurrenceInfos returns the pre/post question rows for an occurrence.
func (s *Store) OccurrenceInfos(ctx context.Context, id int64) ([]survey.OccurrenceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurrence_id, pre_or_post, question_text,
		       response_data_type, response_code, response
		FROM occurrence_info
		WHERE occurrence_id = ?
		ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query occurrence info: %w", err)
	}
	defer rows.Close()

	var infos []survey.OccurrenceInfo
	for rows.Next() {
		var info survey.OccurrenceInfo
		var dataType, code, response sql.NullString
		if err := rows.Scan(
			&info.ID, &info.OccurrenceID, &info.PreOrPost, &info.QuestionText,
			&dataType, &code, &response,
		); err != nil {
			return nil, fmt.Errorf("scan occurrence info: %w", err)
		}
		info.ResponseDataType = stringPtr(dataType)
		info.ResponseCode = stringPtr(code)
		info.Response = stringPtr(response)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrence info: %w", err)
	}

	if infos == nil {
		infos = []survey.OccurrenceInfo{}
	}

	return infos, nil
}

const responseSelect = `
	SELECT r.id, r.occurrence_id, r.workflow_uid, r.question_number,
	       r.question_text, r.response_code, r.response, r.skipped, r.question_id,
	       tw.name, o.occurrence_number
	FROM responses r
	LEFT JOIN occurrences o ON r.occurrence_id = o.id
	LEFT JOIN workflows w ON r.workflow_uid = w.uid
	LEFT JOIN template_workflows tw ON w.template_workflow_id = tw.id`

// ResponsesForOccurrence returns an occurrence's responses grouped by
// workflow, in question order within each workflow.
func (s *Store) ResponsesForOccurrence(ctx context.Context, id int64) ([]survey.Response, error) {
	rows, err := s.db.QueryContext(ctx, responseSelect+`
		WHERE r.occurrence_id = ?
		ORDER BY r.workflow_uid ASC, r.question_number ASC, r.id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	return collectResponses(rows)
}

// ResponsesForTransect returns every response captured across a transect's
// occurrences, in occurrence then workflow then question order.
// Used by the CSV export.
func (s *Store) ResponsesForTransect(ctx context.Context, uid int64) ([]survey.Response, error) {
	rows, err := s.db.QueryContext(ctx, responseSelect+`
		WHERE o.transect_uid = ?
		ORDER BY o.occurrence_number ASC, r.workflow_uid ASC, r.question_number ASC, r.id ASC`, uid)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	return collectResponses(rows)
}

func collectResponses(rows *sql.Rows) ([]survey.Response, error) {
	var responses []survey.Response
	for rows.Next() {
		var r survey.Response
		var number sql.NullInt64
		var code, text sql.NullString
		var templateName sql.NullString
		var occurrenceNumber sql.NullInt64
		if err := rows.Scan(
			&r.ID, &r.OccurrenceID, &r.WorkflowUID, &number,
			&r.QuestionText, &code, &text, &r.Skipped, &r.QuestionID,
			&templateName, &occurrenceNumber,
		); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.QuestionNumber = int64Ptr(number)
		r.ResponseCode = stringPtr(code)
		r.Response = stringPtr(text)
		if templateName.Valid {
			r.WorkflowTemplateName = templateName.String
		}
		r.OccurrenceNumber = occurrenceNumber.Int64
		responses = append(responses, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}

	if responses == nil {
		responses = []survey.Response{}
	}

	return responses, nil
}

const workflowSelect = `
	SELECT w.uid, w.occurrence_id, w.template_workflow_id, w.instance_number,
	       w.completed_by,
	       tw.name, o.transect_uid, t.name
	FROM workflows w
	LEFT JOIN template_workflows tw ON w.template_workflow_id = tw.id
	LEFT JOIN occurrences o ON w.occurrence_id = o.id
	LEFT JOIN transects t ON o.transect_uid = t.uid`

// ListWorkflows returns one page of completed workflows with their template
// and transect context, highest instance number first.
func (s *Store) ListWorkflows(ctx context.Context, f queryfilter.WorkflowFilter, page queryfilter.Page) ([]survey.Workflow, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "workflows w", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count workflows: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, workflowSelect+b.SQL()+`
		ORDER BY w.instance_number DESC, w.uid ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	workflows, err := collectWorkflows(rows)
	if err != nil {
		return nil, queryfilter.PageInfo{}, err
	}

	return workflows, queryfilter.NewPageInfo(page, total), nil
}

// WorkflowsForOccurrence returns an occurrence's workflows in instance order.
func (s *Store) WorkflowsForOccurrence(ctx context.Context, id int64) ([]survey.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, workflowSelect+`
		WHERE w.occurrence_id = ?
		ORDER BY w.instance_number ASC, w.uid ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}

// GetWorkflow retrieves a single workflow by UID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetWorkflow(ctx context.Context, uid string) (survey.Workflow, error) {
	return getWorkflow(ctx, s.db, uid)
}

func getWorkflow(ctx context.Context, q querier, uid string) (survey.Workflow, error) {
	row := q.QueryRowContext(ctx, workflowSelect+`
		WHERE w.uid = ?`, uid)

	return scanWorkflow(row)
}

func collectWorkflows(rows *sql.Rows) ([]survey.Workflow, error) {
	var workflows []survey.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflows: %w", err)
	}

	if workflows == nil {
		workflows = []survey.Workflow{}
	}

	return workflows, nil
}

func scanTransect(sc scanner) (survey.Transect, error) {
	var t survey.Transect
	var startTime, endTime string
	var turnTime sql.NullString
	var latTurn, longTurn sql.NullFloat64
	var templateID sql.NullString
	var paused sql.NullInt64
	var templateName sql.NullString

	if err := sc.Scan(
		&t.UID, &t.Name, &startTime, &turnTime, &endTime,
		&t.LatFrom, &t.LongFrom, &latTurn, &longTurn, &t.LatTo, &t.LongTo,
		&t.DistanceKM, &t.AngleDegrees, &t.State, &templateID, &paused,
		&templateName, &t.OccurrenceCount,
	); err != nil {
		return survey.Transect{}, err
	}

	var err error
	if t.StartTime, err = parseTime(startTime); err != nil {
		return survey.Transect{}, err
	}
	if t.EndTime, err = parseTime(endTime); err != nil {
		return survey.Transect{}, err
	}
	if t.TurnTime, err = parseTimeNull(turnTime); err != nil {
		return survey.Transect{}, err
	}
	t.LatTurn = float64Ptr(latTurn)
	t.LongTurn = float64Ptr(longTurn)
	t.TemplateID = stringPtr(templateID)
	t.PausedForMinutes = int64Ptr(paused)
	t.TemplateName = stringPtr(templateName)

	return t, nil
}

func scanOccurrence(sc scanner) (survey.Occurrence, error) {
	var o survey.Occurrence
	var startTime string
	var endTime sql.NullString
	var lat, long sql.NullFloat64
	var note, state sql.NullString
	var transectName sql.NullString

	if err := sc.Scan(
		&o.ID, &o.TransectUID, &o.OccurrenceNumber,
		&startTime, &endTime,
		&lat, &long, &note, &state,
		&transectName, &o.ResponseCount,
	); err != nil {
		return survey.Occurrence{}, err
	}

	var err error
	if o.RecordingStartTime, err = parseTime(startTime); err != nil {
		return survey.Occurrence{}, err
	}
	if o.RecordingEndTime, err = parseTimeNull(endTime); err != nil {
		return survey.Occurrence{}, err
	}
	o.Lat = float64Ptr(lat)
	o.Long = float64Ptr(long)
	o.Note = stringPtr(note)
	o.State = stringPtr(state)
	if transectName.Valid {
		o.TransectName = transectName.String
	}

	return o, nil
}

func scanWorkflow(sc scanner) (survey.Workflow, error) {
	var w survey.Workflow
	var completedBy sql.NullString
	var templateName sql.NullString
	var transectUID sql.NullInt64
	var transectName sql.NullString

	if err := sc.Scan(
		&w.UID, &w.OccurrenceID, &w.TemplateWorkflowID, &w.InstanceNumber,
		&completedBy,
		&templateName, &transectUID, &transectName,
	); err != nil {
		return survey.Workflow{}, err
	}

	w.CompletedBy = stringPtr(completedBy)
	if templateName.Valid {
		w.TemplateName = templateName.String
	}
	w.TransectUID = transectUID.Int64
	if transectName.Valid {
		w.TransectName = transectName.String
	}

	return w, nil
}
