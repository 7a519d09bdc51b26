package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Create database
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	// Reopen database
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	// Verify we can query it
	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM transects").Scan(&count)
	if err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open multiple times
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	// Final open should work
	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	// Verify schema is intact
	tables := []string{
		"transects", "transect_info", "track_points",
		"occurrences", "occurrence_info", "workflows", "responses",
		"template_workflows", "template_transects",
		"data_types", "data_type_options", "questions", "project_configs",
		"data_log_files", "transect_data_logs", "history_entries",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	path := "/nonexistent/dir/test.db"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// First close should succeed
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}

	// Second close should not panic (though may error)
	_ = s.Close()
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	db := s.DB()
	if db == nil {
		t.Error("DB() returned nil")
	}

	// Verify it's usable
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)

	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)

	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Schema table tests

func TestSchema_TransectsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "transects")

	expected := []string{
		"uid", "name", "start_time", "turn_time", "end_time",
		"lat_from", "long_from", "lat_turn", "long_turn", "lat_to", "long_to",
		"distance_km", "angle_degrees", "state", "template_id",
		"paused_for_minutes",
	}

	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("transects table missing column %q", col)
		}
	}
}

func TestSchema_HistoryEntriesTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "history_entries")

	expected := []string{
		"id", "entity", "entity_key", "change_type", "changed_at",
		"changed_by", "fields_changed", "snapshot", "checksum",
	}

	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("history_entries table missing column %q", col)
		}
	}
}

func TestSchema_TransectIndexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "transects")

	expected := []string{
		"idx_transects_template_start",
		"idx_transects_state",
		"idx_transects_end_time",
	}

	for _, idx := range expected {
		if !contains(indexes, idx) {
			t.Errorf("transects table missing index %q", idx)
		}
	}
}

// Constraint tests

func TestConstraint_TrackPointsUniquePoint(t *testing.T) {
	s := createTestStore(t)

	// Insert first point
	mustExec(t, s, `
		INSERT INTO track_points (user, transect_uid, time, lat, long, is_start)
		VALUES ('riley', 42, '2024-05-01T06:00:00Z', -27.47, 153.02, 1)`)

	// Same transect, user, time and flags - duplicate delivery
	_, err := s.db.Exec(`
		INSERT INTO track_points (user, transect_uid, time, lat, long, is_start)
		VALUES ('riley', 42, '2024-05-01T06:00:00Z', -27.47, 153.02, 1)`)
	if err == nil {
		t.Error("expected UNIQUE constraint violation, got nil")
	}

	// Same point with a different flag set is a distinct row
	_, err = s.db.Exec(`
		INSERT INTO track_points (user, transect_uid, time, lat, long, is_end)
		VALUES ('riley', 42, '2024-05-01T06:00:00Z', -27.47, 153.02, 1)`)
	if err != nil {
		t.Errorf("point with different flags should insert: %v", err)
	}
}

func TestConstraint_OptionsUniquePerType(t *testing.T) {
	s := createTestStore(t)

	mustExec(t, s, `
		INSERT INTO data_type_options (data_type_id, code, text)
		VALUES ('dt-1', 'A', 'Adult')`)

	// Same type and code
	_, err := s.db.Exec(`
		INSERT INTO data_type_options (data_type_id, code, text)
		VALUES ('dt-1', 'A', 'Other text')`)
	if err == nil {
		t.Error("expected UNIQUE constraint violation, got nil")
	}

	// Same code under another type is fine
	_, err = s.db.Exec(`
		INSERT INTO data_type_options (data_type_id, code, text)
		VALUES ('dt-2', 'A', 'Adult')`)
	if err != nil {
		t.Errorf("same code under different type should insert: %v", err)
	}
}

func TestConstraint_TransectDataLogsUniquePair(t *testing.T) {
	s := createTestStore(t)

	mustExec(t, s, `
		INSERT INTO transect_data_logs (data_log_file_id, transect_uid)
		VALUES (1, 42)`)

	_, err := s.db.Exec(`
		INSERT INTO transect_data_logs (data_log_file_id, transect_uid)
		VALUES (1, 42)`)
	if err == nil {
		t.Error("expected UNIQUE constraint violation, got nil")
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}

	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_IdempotentUpgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open and close multiple times - migrations should be idempotent
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}

		var version int
		err = s.db.QueryRow("PRAGMA user_version").Scan(&version)
		if err != nil {
			t.Fatalf("failed to get user_version: %v", err)
		}

		if version != currentSchemaVersion {
			t.Errorf("iteration %d: user_version = %d, want %d", i, version, currentSchemaVersion)
		}

		s.Close()
	}
}

func TestMigration_RejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.Close()

	// Stamp a version from the future
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	_, err = Open(path)
	if err == nil {
		t.Fatal("expected error opening a newer-versioned database, got nil")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("error should name the version mismatch, got: %v", err)
	}
}

func TestSchemaVersion_Reported(t *testing.T) {
	s := createTestStore(t)

	version, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", version, currentSchemaVersion)
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
