package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/calderbay/fieldwork/internal/survey"
)

// ProjectImport is one project-config publish applied as a unit.
type ProjectImport struct {
	Project       string
	ConfigFolder  string
	ConfigFile    string
	TransectsFile string
	Image         *string
	PublishedBy   *string

	DataTypes         []survey.DataType
	DataTypeOptions   []survey.DataTypeOption
	TemplateWorkflows []survey.TemplateWorkflow
	Questions         []survey.Question
	TemplateTransects []survey.TemplateTransect
}

// ImportCounts reports the rows created and re-applied by one import,
// per entity kind.
type ImportCounts struct {
	DataTypes         ChangeCount `json:"data_types"`
	DataTypeOptions   ChangeCount `json:"data_type_options"`
	TemplateWorkflows ChangeCount `json:"template_workflows"`
	Questions         ChangeCount `json:"questions"`
	TemplateTransects ChangeCount `json:"template_transects"`
}

// ChangeCount splits applied rows into newly created and pre-existing.
// Updated counts rows the import re-applied, changed or not.
type ChangeCount struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

func (c *ChangeCount) note(existing bool) {
	if existing {
		c.Updated++
	} else {
		c.Created++
	}
}

// ImportProjectConfig applies one project publish in a single transaction:
// every reference row is upserted and a project_configs row records the
// publish, dated from the store clock. Question creates and changes record
// history; nothing else in a publish is audited.
//
// Returns the per-entity counts and the ID of the project_configs row.
func (s *Store) ImportProjectConfig(ctx context.Context, imp ProjectImport) (ImportCounts, int64, error) {
	var counts ImportCounts

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, 0, fmt.Errorf("import project config: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, dt := range imp.DataTypes {
		exists, err := rowExists(ctx, tx, "SELECT COUNT(*) FROM data_types WHERE id = ?", dt.ID)
		if err != nil {
			return counts, 0, fmt.Errorf("import data type %s: %w", dt.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO data_types (id, name, is_user_data_type, csharp_type)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				is_user_data_type = excluded.is_user_data_type,
				csharp_type = excluded.csharp_type`,
			dt.ID,
			dt.Name,
			dt.IsUserDataType,
			nullableString(dt.CSharpType),
		)
		if err != nil {
			return counts, 0, fmt.Errorf("import data type %s: %w", dt.ID, err)
		}
		counts.DataTypes.note(exists)
	}

	for _, o := range imp.DataTypeOptions {
		exists, err := rowExists(ctx, tx,
			"SELECT COUNT(*) FROM data_type_options WHERE data_type_id = ? AND code = ?",
			o.DataTypeID, o.Code)
		if err != nil {
			return counts, 0, fmt.Errorf("import option %s/%s: %w", o.DataTypeID, o.Code, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO data_type_options (data_type_id, code, text)
			VALUES (?, ?, ?)
			ON CONFLICT(data_type_id, code) DO UPDATE SET
				text = excluded.text`,
			o.DataTypeID,
			o.Code,
			nullableString(o.Text),
		)
		if err != nil {
			return counts, 0, fmt.Errorf("import option %s/%s: %w", o.DataTypeID, o.Code, err)
		}
		counts.DataTypeOptions.note(exists)
	}

	for _, wf := range imp.TemplateWorkflows {
		existing, err := getTemplateWorkflow(ctx, tx, wf.ID)
		exists := true
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
		} else if err != nil {
			return counts, 0, fmt.Errorf("import template workflow %s: %w", wf.ID, err)
		}

		// A file without date_added keeps the existing date on re-publish
		// and gets the clock date on first publish.
		if wf.DateAdded == nil {
			if exists {
				wf.DateAdded = existing.DateAdded
			} else {
				now := s.now()
				wf.DateAdded = &now
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO template_workflows (id, name, date_added, added_by)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				date_added = excluded.date_added,
				added_by = excluded.added_by`,
			wf.ID,
			wf.Name,
			formatTimePtr(wf.DateAdded),
			nullableString(wf.AddedBy),
		)
		if err != nil {
			return counts, 0, fmt.Errorf("import template workflow %s: %w", wf.ID, err)
		}
		counts.TemplateWorkflows.note(exists)
	}

	for _, q := range imp.Questions {
		before, err := getQuestion(ctx, tx, q.ID)
		exists := true
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
		} else if err != nil {
			return counts, 0, fmt.Errorf("import question %s: %w", q.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO questions (id, prompt, data_type_id, data_type_name, workflow_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				prompt = excluded.prompt,
				data_type_id = excluded.data_type_id,
				data_type_name = excluded.data_type_name,
				workflow_id = excluded.workflow_id`,
			q.ID,
			nullableString(q.Prompt),
			q.DataTypeID,
			q.DataTypeName,
			nullableString(q.WorkflowID),
		)
		if err != nil {
			return counts, 0, fmt.Errorf("import question %s: %w", q.ID, err)
		}

		after := questionSnapshot(q)
		if !exists {
			if err := s.recordHistory(ctx, tx, survey.EntityQuestion, q.ID, survey.ChangeCreate, imp.PublishedBy, nil, after); err != nil {
				return counts, 0, fmt.Errorf("import question %s: %w", q.ID, err)
			}
		} else if fields := diffFields(questionSnapshot(before), after); len(fields) > 0 {
			if err := s.recordHistory(ctx, tx, survey.EntityQuestion, q.ID, survey.ChangeUpdate, imp.PublishedBy, fields, after); err != nil {
				return counts, 0, fmt.Errorf("import question %s: %w", q.ID, err)
			}
		}
		counts.Questions.note(exists)
	}

	for _, t := range imp.TemplateTransects {
		exists, err := rowExists(ctx, tx, "SELECT COUNT(*) FROM template_transects WHERE id = ?", t.ID)
		if err != nil {
			return counts, 0, fmt.Errorf("import template transect %s: %w", t.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO template_transects
				(id, name, scheduled_time, lat_from, long_from, lat_to, long_to,
				 open_ended, distance_km, angle_degrees, note, created_dynamically)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				scheduled_time = excluded.scheduled_time,
				lat_from = excluded.lat_from,
				long_from = excluded.long_from,
				lat_to = excluded.lat_to,
				long_to = excluded.long_to,
				open_ended = excluded.open_ended,
				distance_km = excluded.distance_km,
				angle_degrees = excluded.angle_degrees,
				note = excluded.note,
				created_dynamically = excluded.created_dynamically`,
			t.ID,
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
		)
		if err != nil {
			return counts, 0, fmt.Errorf("import template transect %s: %w", t.ID, err)
		}
		counts.TemplateTransects.note(exists)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO project_configs
			(publish_date, project, config_folder, config_file, image, transects_file)
		VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(s.now()),
		imp.Project,
		imp.ConfigFolder,
		imp.ConfigFile,
		nullableString(imp.Image),
		imp.TransectsFile,
	)
	if err != nil {
		return counts, 0, fmt.Errorf("import project config: record publish: %w", err)
	}

	configID, err := result.LastInsertId()
	if err != nil {
		return counts, 0, fmt.Errorf("import project config: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return counts, 0, fmt.Errorf("import project config: commit: %w", err)
	}

	return counts, configID, nil
}

func rowExists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
