package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calderbay/fieldwork/internal/store"
)

// seedTime pins the store clock so audit entries land at a known instant.
var seedTime = time.Date(2024, 5, 4, 9, 0, 0, 0, time.UTC)

// newSeededDB builds a database file holding one surveyed transect with an
// occurrence, a completed workflow, responses, a GPS track, an uploaded
// device log, and one audit entry. The store is closed before returning so
// commands can reopen the file by path.
func newSeededDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "survey.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	st.SetClock(func() time.Time { return seedTime })

	exec := func(query string, args ...any) {
		t.Helper()
		_, err := st.DB().Exec(query, args...)
		require.NoError(t, err, "query: %s", query)
	}

	exec(`
		INSERT INTO transects
			(uid, name, start_time, end_time, lat_from, long_from,
			 lat_to, long_to, distance_km, angle_degrees, state)
		VALUES (42, 'Creek line', '2024-05-01T06:00:00Z', '2024-05-01T08:00:00Z',
			-27.47, 153.02, -27.48, 153.03, 1.2, 90, 'uploaded')`)
	exec(`
		INSERT INTO occurrences
			(id, transect_uid, occurrence_number, recording_start_time, recording_end_time)
		VALUES (1, 42, 1, '2024-05-01T06:10:00Z', '2024-05-01T06:20:00Z')`)
	exec(`INSERT INTO template_workflows (id, name) VALUES ('tw-1', 'Frog census')`)
	exec(`
		INSERT INTO workflows (uid, occurrence_id, template_workflow_id, instance_number, completed_by)
		VALUES ('wf-1', 1, 'tw-1', 1, 'kwalsh')`)
	exec(`
		INSERT INTO responses
			(occurrence_id, workflow_uid, question_number, question_text, response, skipped, question_id)
		VALUES (1, 'wf-1', 1, 'Species?', 'Litoria fallax', 0, 'q-1')`)
	exec(`
		INSERT INTO responses
			(occurrence_id, workflow_uid, question_number, question_text, response, skipped, question_id)
		VALUES (1, 'wf-1', 2, 'How many calling?', '4', 0, 'q-2')`)
	exec(`
		INSERT INTO track_points
			(user, transect_uid, time, lat, long, is_start, is_checkpoint, is_occurrence, is_turn_point, is_end)
		VALUES ('kwalsh', 42, '2024-05-01T06:00:00Z', -27.47, 153.02, 1, 0, 0, 0, 0)`)
	exec(`
		INSERT INTO track_points
			(user, transect_uid, time, lat, long, is_start, is_checkpoint, is_occurrence, is_turn_point, is_end)
		VALUES ('kwalsh', 42, '2024-05-01T08:00:00Z', -27.48, 153.03, 0, 0, 0, 0, 1)`)
	exec(`
		INSERT INTO data_log_files (id, upload_date, uploaded_by, contents)
		VALUES (7, '2024-05-03T09:00:00Z', 'kwalsh', 'GPS,TIME,LAT,LONG')`)

	// One audited edit so history has something to show.
	ctx := context.Background()
	tr, err := st.GetTransect(ctx, 42)
	require.NoError(t, err)
	tr.State = "audited"
	user := "kwalsh"
	require.NoError(t, st.UpdateTransect(ctx, tr, &user))

	require.NoError(t, st.Close())
	return dbPath
}

// newEmptyDB builds a migrated but unpopulated database file.
func newEmptyDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return dbPath
}
