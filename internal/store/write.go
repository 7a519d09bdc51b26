package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/calderbay/fieldwork/internal/survey"
)

// Audited updates. Each update and its audit entry share one transaction,
// so an entry exists exactly when the change it describes committed. An
// update that changes no fields records no entry.

// UpdateTransect persists the editable fields of a transect.
// Returns sql.ErrNoRows if the transect does not exist.
func (s *Store) UpdateTransect(ctx context.Context, t survey.Transect, changedBy *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update transect: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	before, err := getTransect(ctx, tx, t.UID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE transects
		SET name = ?, template_id = ?, start_time = ?, turn_time = ?, end_time = ?,
		    lat_from = ?, long_from = ?, lat_turn = ?, long_turn = ?,
		    lat_to = ?, long_to = ?, distance_km = ?, angle_degrees = ?,
		    state = ?, paused_for_minutes = ?
		WHERE uid = ?`,
		t.Name,
		nullableString(t.TemplateID),
		formatTime(t.StartTime),
		formatTimePtr(t.TurnTime),
		formatTime(t.EndTime),
		t.LatFrom,
		t.LongFrom,
		nullableFloat64(t.LatTurn),
		nullableFloat64(t.LongTurn),
		t.LatTo,
		t.LongTo,
		t.DistanceKM,
		t.AngleDegrees,
		t.State,
		nullableInt64(t.PausedForMinutes),
		t.UID,
	)
	if err != nil {
		return fmt.Errorf("update transect: %w", err)
	}

	after := transectSnapshot(t)
	fields := diffFields(transectSnapshot(before), after)
	if len(fields) > 0 {
		key := strconv.FormatInt(t.UID, 10)
		if err := s.recordHistory(ctx, tx, survey.EntityTransect, key, survey.ChangeUpdate, changedBy, fields, after); err != nil {
			return fmt.Errorf("update transect: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update transect: commit: %w", err)
	}

	return nil
}

// UpdateOccurrence persists the editable fields of an occurrence.
// Returns sql.ErrNoRows if the occurrence does not exist.
func (s *Store) UpdateOccurrence(ctx context.Context, o survey.Occurrence, changedBy *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update occurrence: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	before, err := getOccurrence(ctx, tx, o.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE occurrences
		SET transect_uid = ?, occurrence_number = ?,
		    recording_start_time = ?, recording_end_time = ?,
		    lat = ?, long = ?, note = ?, state = ?
		WHERE id = ?`,
		o.TransectUID,
		o.OccurrenceNumber,
		formatTime(o.RecordingStartTime),
		formatTimePtr(o.RecordingEndTime),
		nullableFloat64(o.Lat),
		nullableFloat64(o.Long),
		nullableString(o.Note),
		nullableString(o.State),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("update occurrence: %w", err)
	}

	after := occurrenceSnapshot(o)
	fields := diffFields(occurrenceSnapshot(before), after)
	if len(fields) > 0 {
		key := strconv.FormatInt(o.ID, 10)
		if err := s.recordHistory(ctx, tx, survey.EntityOccurrence, key, survey.ChangeUpdate, changedBy, fields, after); err != nil {
			return fmt.Errorf("update occurrence: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update occurrence: commit: %w", err)
	}

	return nil
}

// UpdateWorkflow persists the editable fields of a workflow.
// Returns sql.ErrNoRows if the workflow does not exist.
func (s *Store) UpdateWorkflow(ctx context.Context, w survey.Workflow, changedBy *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update workflow: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	before, err := getWorkflow(ctx, tx, w.UID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflows
		SET occurrence_id = ?, template_workflow_id = ?,
		    instance_number = ?, completed_by = ?
		WHERE uid = ?`,
		w.OccurrenceID,
		w.TemplateWorkflowID,
		w.InstanceNumber,
		nullableString(w.CompletedBy),
		w.UID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}

	after := workflowSnapshot(w)
	fields := diffFields(workflowSnapshot(before), after)
	if len(fields) > 0 {
		if err := s.recordHistory(ctx, tx, survey.EntityWorkflow, w.UID, survey.ChangeUpdate, changedBy, fields, after); err != nil {
			return fmt.Errorf("update workflow: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update workflow: commit: %w", err)
	}

	return nil
}

// UpdateQuestion persists the editable fields of a question definition.
// Returns sql.ErrNoRows if the question does not exist.
func (s *Store) UpdateQuestion(ctx context.Context, q survey.Question, changedBy *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update question: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	before, err := getQuestion(ctx, tx, q.ID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE questions
		SET prompt = ?, data_type_id = ?, data_type_name = ?, workflow_id = ?
		WHERE id = ?`,
		nullableString(q.Prompt),
		q.DataTypeID,
		q.DataTypeName,
		nullableString(q.WorkflowID),
		q.ID,
	)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}

	after := questionSnapshot(q)
	fields := diffFields(questionSnapshot(before), after)
	if len(fields) > 0 {
		if err := s.recordHistory(ctx, tx, survey.EntityQuestion, q.ID, survey.ChangeUpdate, changedBy, fields, after); err != nil {
			return fmt.Errorf("update question: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update question: commit: %w", err)
	}

	return nil
}
