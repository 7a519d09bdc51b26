package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a store backed by a throwaway database file.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testTime parses an RFC 3339 timestamp for use in fixtures.
func testTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", value, err)
	}
	return ts
}

// setClock pins the store clock so history timestamps are deterministic.
func setClock(t *testing.T, s *Store, value string) time.Time {
	t.Helper()
	ts := testTime(t, value)
	s.SetClock(func() time.Time { return ts })
	return ts
}

func mustExec(t *testing.T, s *Store, query string, args ...any) {
	t.Helper()
	if _, err := s.db.Exec(query, args...); err != nil {
		t.Fatalf("exec failed: %v\nquery: %s", err, query)
	}
}

// seedTransect inserts a transect with fixed coordinates. start doubles as
// the end time; tests that care about end_time update it directly.
func seedTransect(t *testing.T, s *Store, uid int64, name, start, state string) {
	t.Helper()
	mustExec(t, s, `
		INSERT INTO transects
			(uid, name, start_time, end_time, lat_from, long_from,
			 lat_to, long_to, distance_km, angle_degrees, state)
		VALUES (?, ?, ?, ?, -27.47, 153.02, -27.48, 153.03, 1.2, 90, ?)`,
		uid, name, start, start, state)
}

func seedOccurrence(t *testing.T, s *Store, id, transectUID, number int64, start string) {
	t.Helper()
	mustExec(t, s, `
		INSERT INTO occurrences (id, transect_uid, occurrence_number, recording_start_time)
		VALUES (?, ?, ?, ?)`,
		id, transectUID, number, start)
}

func seedWorkflow(t *testing.T, s *Store, uid string, occurrenceID int64, templateID string, instance int64) {
	t.Helper()
	mustExec(t, s, `
		INSERT INTO workflows (uid, occurrence_id, template_workflow_id, instance_number)
		VALUES (?, ?, ?, ?)`,
		uid, occurrenceID, templateID, instance)
}

func seedQuestion(t *testing.T, s *Store, id, prompt, dataTypeID, dataTypeName string) {
	t.Helper()
	mustExec(t, s, `
		INSERT INTO questions (id, prompt, data_type_id, data_type_name)
		VALUES (?, ?, ?, ?)`,
		id, prompt, dataTypeID, dataTypeName)
}

func seedDataType(t *testing.T, s *Store, id, name string) {
	t.Helper()
	mustExec(t, s, `
		INSERT INTO data_types (id, name, is_user_data_type)
		VALUES (?, ?, 0)`,
		id, name)
}

func seedTemplateTransect(t *testing.T, s *Store, id, name, scheduled string) {
	t.Helper()
	mustExec(t, s, `
		INSERT INTO template_transects (id, name, scheduled_time, lat_from, long_from)
		VALUES (?, ?, ?, -27.47, 153.02)`,
		id, name, scheduled)
}

func seedTemplateWorkflow(t *testing.T, s *Store, id, name string) {
	t.Helper()
	mustExec(t, s, `
		INSERT INTO template_workflows (id, name) VALUES (?, ?)`,
		id, name)
}

// countTable is a raw count for verifying writes.
func countTable(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}
