package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calderbay/fieldwork/internal/queryfilter"
	"github.com/calderbay/fieldwork/internal/survey"
)

// ListTemplateTransects returns one page of transect plans, most recently
// scheduled first.
func (s *Store) ListTemplateTransects(ctx context.Context, f queryfilter.TemplateTransectFilter, page queryfilter.Page) ([]survey.TemplateTransect, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "template_transects tt", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count template transects: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, templateTransectSelect+b.SQL()+`
		ORDER BY tt.scheduled_time DESC, tt.id ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query template transects: %w", err)
	}
	defer rows.Close()

	var templates []survey.TemplateTransect
	for rows.Next() {
		t, err := scanTemplateTransect(rows)
		if err != nil {
			return nil, queryfilter.PageInfo{}, fmt.Errorf("scan template transect: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("iterate template transects: %w", err)
	}

	if templates == nil {
		templates = []survey.TemplateTransect{}
	}

	return templates, queryfilter.NewPageInfo(page, total), nil
}

const templateTransectSelect = `
	SELECT tt.id, tt.name, tt.scheduled_time, tt.lat_from, tt.long_from,
	       tt.lat_to, tt.long_to, tt.open_ended, tt.distance_km,
	       tt.angle_degrees, tt.note, tt.created_dynamically
	FROM template_transects tt`

// GetTemplateTransect retrieves a single transect plan by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetTemplateTransect(ctx context.Context, id string) (survey.TemplateTransect, error) {
	row := s.db.QueryRowContext(ctx, templateTransectSelect+`
		WHERE tt.id = ?`, id)

	return scanTemplateTransect(row)
}

// UpdateTemplateTransect persists the editable fields of a transect plan.
// Returns sql.ErrNoRows if the row does not exist.
func (s *Store) UpdateTemplateTransect(ctx context.Context, t survey.TemplateTransect) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE template_transects
		SET name = ?, scheduled_time = ?, lat_from = ?, long_from = ?,
		    lat_to = ?, long_to = ?, open_ended = ?, distance_km = ?,
		    angle_degrees = ?, note = ?, created_dynamically = ?
		WHERE id = ?`,
		t.Name,
		formatTime(t.ScheduledTime),
		t.LatFrom,
		t.LongFrom,
		nullableFloat64(t.LatTo),
		nullableFloat64(t.LongTo),
		nullableBool(t.OpenEnded),
		nullableFloat64(t.DistanceKM),
		nullableInt64(t.AngleDegrees),
		nullableString(t.Note),
		nullableBool(t.CreatedDynamically),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update template transect: %w", err)
	}
	return requireRow(result)
}

// ListTemplateWorkflows returns one page of workflow definitions by name.
func (s *Store) ListTemplateWorkflows(ctx context.Context, f queryfilter.TemplateWorkflowFilter, page queryfilter.Page) ([]survey.TemplateWorkflow, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "template_workflows tw", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count template workflows: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT tw.id, tw.name, tw.date_added, tw.added_by
		FROM template_workflows tw`+b.SQL()+`
		ORDER BY tw.name ASC, tw.id ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query template workflows: %w", err)
	}
	defer rows.Close()

	var workflows []survey.TemplateWorkflow
	for rows.Next() {
		w, err := scanTemplateWorkflow(rows)
		if err != nil {
			return nil, queryfilter.PageInfo{}, fmt.Errorf("scan template workflow: %w", err)
		}
		workflows = append(workflows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("iterate template workflows: %w", err)
	}

	if workflows == nil {
		workflows = []survey.TemplateWorkflow{}
	}

	return workflows, queryfilter.NewPageInfo(page, total), nil
}

// GetTemplateWorkflow retrieves a single workflow definition by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetTemplateWorkflow(ctx context.Context, id string) (survey.TemplateWorkflow, error) {
	return getTemplateWorkflow(ctx, s.db, id)
}

func getTemplateWorkflow(ctx context.Context, q querier, id string) (survey.TemplateWorkflow, error) {
	row := q.QueryRowContext(ctx, `
		SELECT tw.id, tw.name, tw.date_added, tw.added_by
		FROM template_workflows tw
		WHERE tw.id = ?`, id)

	return scanTemplateWorkflow(row)
}

// UpdateTemplateWorkflow persists the editable fields of a workflow
// definition. Returns sql.ErrNoRows if the row does not exist.
func (s *Store) UpdateTemplateWorkflow(ctx context.Context, w survey.TemplateWorkflow) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE template_workflows
		SET name = ?, date_added = ?, added_by = ?
		WHERE id = ?`,
		w.Name,
		formatTimePtr(w.DateAdded),
		nullableString(w.AddedBy),
		w.ID,
	)
	if err != nil {
		return fmt.Errorf("update template workflow: %w", err)
	}
	return requireRow(result)
}

const questionSelect = `
	SELECT q.id, q.prompt, q.data_type_id, q.data_type_name, q.workflow_id,
	       tw.name
	FROM questions q
	LEFT JOIN template_workflows tw ON q.workflow_id = tw.id`

// ListQuestions returns one page of question definitions in prompt order,
// each carrying its template workflow name.
func (s *Store) ListQuestions(ctx context.Context, f queryfilter.QuestionFilter, page queryfilter.Page) ([]survey.Question, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "questions q", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count questions: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, questionSelect+b.SQL()+`
		ORDER BY q.prompt ASC, q.id ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []survey.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, queryfilter.PageInfo{}, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("iterate questions: %w", err)
	}

	if questions == nil {
		questions = []survey.Question{}
	}

	return questions, queryfilter.NewPageInfo(page, total), nil
}

// GetQuestion retrieves a single question definition by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetQuestion(ctx context.Context, id string) (survey.Question, error) {
	return getQuestion(ctx, s.db, id)
}

func getQuestion(ctx context.Context, q querier, id string) (survey.Question, error) {
	row := q.QueryRowContext(ctx, questionSelect+`
		WHERE q.id = ?`, id)

	return scanQuestion(row)
}

const dataTypeSelect = `
	SELECT dt.id, dt.name, dt.is_user_data_type, dt.csharp_type,
	       (SELECT COUNT(*) FROM data_type_options dto WHERE dto.data_type_id = dt.id),
	       (SELECT COUNT(*) FROM questions q WHERE q.data_type_id = dt.id)
	FROM data_types dt`

// ListDataTypes returns one page of data types by name, each carrying its
// option and question counts.
func (s *Store) ListDataTypes(ctx context.Context, f queryfilter.DataTypeFilter, page queryfilter.Page) ([]survey.DataType, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "data_types dt", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count data types: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, dataTypeSelect+b.SQL()+`
		ORDER BY dt.name ASC, dt.id ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query data types: %w", err)
	}
	defer rows.Close()

	var dataTypes []survey.DataType
	for rows.Next() {
		dt, err := scanDataType(rows)
		if err != nil {
			return nil, queryfilter.PageInfo{}, fmt.Errorf("scan data type: %w", err)
		}
		dataTypes = append(dataTypes, dt)
	}

	if err := rows.Err(); err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("iterate data types: %w", err)
	}

	if dataTypes == nil {
		dataTypes = []survey.DataType{}
	}

	return dataTypes, queryfilter.NewPageInfo(page, total), nil
}

// GetDataType retrieves a single data type by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetDataType(ctx context.Context, id string) (survey.DataType, error) {
	row := s.db.QueryRowContext(ctx, dataTypeSelect+`
		WHERE dt.id = ?`, id)

	return scanDataType(row)
}

// UpdateDataType persists the editable fields of a data type.
// Returns sql.ErrNoRows if the row does not exist.
func (s *Store) UpdateDataType(ctx context.Context, dt survey.DataType) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE data_types
		SET name = ?, is_user_data_type = ?, csharp_type = ?
		WHERE id = ?`,
		dt.Name,
		dt.IsUserDataType,
		nullableString(dt.CSharpType),
		dt.ID,
	)
	if err != nil {
		return fmt.Errorf("update data type: %w", err)
	}
	return requireRow(result)
}

const dataTypeOptionSelect = `
	SELECT dto.id, dto.data_type_id, dto.code, dto.text, dt.name
	FROM data_type_options dto
	LEFT JOIN data_types dt ON dto.data_type_id = dt.id`

// ListDataTypeOptions returns one page of coded options ordered by their
// data type's name, then code.
func (s *Store) ListDataTypeOptions(ctx context.Context, f queryfilter.DataTypeOptionFilter, page queryfilter.Page) ([]survey.DataTypeOption, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "data_type_options dto", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count data type options: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, dataTypeOptionSelect+b.SQL()+`
		ORDER BY dt.name ASC, dto.code ASC, dto.id ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query data type options: %w", err)
	}
	defer rows.Close()

	options, err := collectDataTypeOptions(rows)
	if err != nil {
		return nil, queryfilter.PageInfo{}, err
	}

	return options, queryfilter.NewPageInfo(page, total), nil
}

// DataTypeOptions returns every option of one data type in code order.
// Embedded in the data-type detail payload.
func (s *Store) DataTypeOptions(ctx context.Context, dataTypeID string) ([]survey.DataTypeOption, error) {
	rows, err := s.db.QueryContext(ctx, dataTypeOptionSelect+`
		WHERE dto.data_type_id = ?
		ORDER BY dto.code ASC, dto.id ASC`, dataTypeID)
	if err != nil {
		return nil, fmt.Errorf("query data type options: %w", err)
	}
	defer rows.Close()

	return collectDataTypeOptions(rows)
}

func collectDataTypeOptions(rows *sql.Rows) ([]survey.DataTypeOption, error) {
	var options []survey.DataTypeOption
	for rows.Next() {
		o, err := scanDataTypeOption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data type option: %w", err)
		}
		options = append(options, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data type options: %w", err)
	}

	if options == nil {
		options = []survey.DataTypeOption{}
	}

	return options, nil
}

// GetDataTypeOption retrieves a single option by row ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetDataTypeOption(ctx context.Context, id int64) (survey.DataTypeOption, error) {
	row := s.db.QueryRowContext(ctx, dataTypeOptionSelect+`
		WHERE dto.id = ?`, id)

	return scanDataTypeOption(row)
}

// UpdateDataTypeOption persists the editable fields of an option.
// Returns sql.ErrNoRows if the row does not exist.
func (s *Store) UpdateDataTypeOption(ctx context.Context, o survey.DataTypeOption) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE data_type_options
		SET data_type_id = ?, code = ?, text = ?
		WHERE id = ?`,
		o.DataTypeID,
		o.Code,
		nullableString(o.Text),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("update data type option: %w", err)
	}
	return requireRow(result)
}

const projectConfigSelect = `
	SELECT pc.id, pc.publish_date, pc.project, pc.config_folder,
	       pc.config_file, pc.image, pc.transects_file
	FROM project_configs pc`

// ListProjectConfigs returns one page of published configuration bundles,
// newest publish first.
func (s *Store) ListProjectConfigs(ctx context.Context, f queryfilter.ProjectConfigFilter, page queryfilter.Page) ([]survey.ProjectConfig, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "project_configs pc", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count project configs: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, projectConfigSelect+b.SQL()+`
		ORDER BY pc.publish_date DESC, pc.id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query project configs: %w", err)
	}
	defer rows.Close()

	var configs []survey.ProjectConfig
	for rows.Next() {
		c, err := scanProjectConfig(rows)
		if err != nil {
			return nil, queryfilter.PageInfo{}, fmt.Errorf("scan project config: %w", err)
		}
		configs = append(configs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("iterate project configs: %w", err)
	}

	if configs == nil {
		configs = []survey.ProjectConfig{}
	}

	return configs, queryfilter.NewPageInfo(page, total), nil
}

// GetProjectConfig retrieves a single published configuration by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetProjectConfig(ctx context.Context, id int64) (survey.ProjectConfig, error) {
	row := s.db.QueryRowContext(ctx, projectConfigSelect+`
		WHERE pc.id = ?`, id)

	return scanProjectConfig(row)
}

// UpdateProjectConfig persists the editable fields of a configuration row.
// Returns sql.ErrNoRows if the row does not exist.
func (s *Store) UpdateProjectConfig(ctx context.Context, c survey.ProjectConfig) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE project_configs
		SET publish_date = ?, project = ?, config_folder = ?,
		    config_file = ?, image = ?, transects_file = ?
		WHERE id = ?`,
		formatTime(c.PublishDate),
		c.Project,
		c.ConfigFolder,
		c.ConfigFile,
		nullableString(c.Image),
		c.TransectsFile,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update project config: %w", err)
	}
	return requireRow(result)
}

// requireRow converts an UPDATE that matched nothing into sql.ErrNoRows.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanTemplateTransect(sc scanner) (survey.TemplateTransect, error) {
	var t survey.TemplateTransect
	var scheduled string
	var latTo, longTo, distance sql.NullFloat64
	var openEnded, dynamic sql.NullInt64
	var angle sql.NullInt64
	var note sql.NullString

	if err := sc.Scan(
		&t.ID, &t.Name, &scheduled, &t.LatFrom, &t.LongFrom,
		&latTo, &longTo, &openEnded, &distance,
		&angle, &note, &dynamic,
	); err != nil {
		return survey.TemplateTransect{}, err
	}

	var err error
	if t.ScheduledTime, err = parseTime(scheduled); err != nil {
		return survey.TemplateTransect{}, err
	}
	t.LatTo = float64Ptr(latTo)
	t.LongTo = float64Ptr(longTo)
	t.OpenEnded = boolPtr(openEnded)
	t.DistanceKM = float64Ptr(distance)
	t.AngleDegrees = int64Ptr(angle)
	t.Note = stringPtr(note)
	t.CreatedDynamically = boolPtr(dynamic)

	return t, nil
}

func scanTemplateWorkflow(sc scanner) (survey.TemplateWorkflow, error) {
	var w survey.TemplateWorkflow
	var dateAdded sql.NullString
	var addedBy sql.NullString

	if err := sc.Scan(&w.ID, &w.Name, &dateAdded, &addedBy); err != nil {
		return survey.TemplateWorkflow{}, err
	}

	var err error
	if w.DateAdded, err = parseTimeNull(dateAdded); err != nil {
		return survey.TemplateWorkflow{}, err
	}
	w.AddedBy = stringPtr(addedBy)

	return w, nil
}

func scanQuestion(sc scanner) (survey.Question, error) {
	var q survey.Question
	var prompt sql.NullString
	var workflowID sql.NullString
	var workflowName sql.NullString

	if err := sc.Scan(
		&q.ID, &prompt, &q.DataTypeID, &q.DataTypeName, &workflowID,
		&workflowName,
	); err != nil {
		return survey.Question{}, err
	}

	q.Prompt = stringPtr(prompt)
	q.WorkflowID = stringPtr(workflowID)
	q.WorkflowName = stringPtr(workflowName)

	return q, nil
}

func scanDataType(sc scanner) (survey.DataType, error) {
	var dt survey.DataType
	var csharp sql.NullString

	if err := sc.Scan(
		&dt.ID, &dt.Name, &dt.IsUserDataType, &csharp,
		&dt.OptionCount, &dt.QuestionCount,
	); err != nil {
		return survey.DataType{}, err
	}

	dt.CSharpType = stringPtr(csharp)

	return dt, nil
}

func scanDataTypeOption(sc scanner) (survey.DataTypeOption, error) {
	var o survey.DataTypeOption
	var text sql.NullString
	var dataTypeName sql.NullString

	if err := sc.Scan(&o.ID, &o.DataTypeID, &o.Code, &text, &dataTypeName); err != nil {
		return survey.DataTypeOption{}, err
	}

	o.Text = stringPtr(text)
	if dataTypeName.Valid {
		o.DataTypeName = dataTypeName.String
	}

	return o, nil
}

func scanProjectConfig(sc scanner) (survey.ProjectConfig, error) {
	var c survey.ProjectConfig
	var published string
	var image sql.NullString

	if err := sc.Scan(
		&c.ID, &published, &c.Project, &c.ConfigFolder,
		&c.ConfigFile, &image, &c.TransectsFile,
	); err != nil {
		return survey.ProjectConfig{}, err
	}

	var err error
	if c.PublishDate, err = parseTime(published); err != nil {
		return survey.ProjectConfig{}, err
	}
	c.Image = stringPtr(image)

	return c, nil
}
