package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calderbay/fieldwork/internal/queryfilter"
	"github.com/calderbay/fieldwork/internal/survey"
)

// InsertDataLogFile stores an uploaded device log and returns its row ID.
// A nil UploadDate is filled from the store clock.
func (s *Store) InsertDataLogFile(ctx context.Context, f survey.DataLogFile) (int64, error) {
	uploadDate := f.UploadDate
	if uploadDate == nil {
		now := s.now()
		uploadDate = &now
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO data_log_files (upload_date, uploaded_by, contents)
		VALUES (?, ?, ?)`,
		formatTimePtr(uploadDate),
		nullableString(f.UploadedBy),
		nullableString(f.Contents),
	)
	if err != nil {
		return 0, fmt.Errorf("insert data log file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert data log file: last insert id: %w", err)
	}

	return id, nil
}

const dataLogFileSelect = `
	SELECT dlf.id, dlf.upload_date, dlf.uploaded_by, dlf.contents
	FROM data_log_files dlf`

// ListDataLogFiles returns one page of uploaded logs, newest upload first.
func (s *Store) ListDataLogFiles(ctx context.Context, f queryfilter.DataLogFilter, page queryfilter.Page) ([]survey.DataLogFile, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "data_log_files dlf", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count data log files: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, dataLogFileSelect+b.SQL()+`
		ORDER BY dlf.upload_date DESC, dlf.id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query data log files: %w", err)
	}
	defer rows.Close()

	files, err := collectDataLogFiles(rows)
	if err != nil {
		return nil, queryfilter.PageInfo{}, err
	}

	return files, queryfilter.NewPageInfo(page, total), nil
}

func collectDataLogFiles(rows *sql.Rows) ([]survey.DataLogFile, error) {
	var files []survey.DataLogFile
	for rows.Next() {
		f, err := scanDataLogFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data log file: %w", err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data log files: %w", err)
	}

	if files == nil {
		files = []survey.DataLogFile{}
	}

	return files, nil
}

// GetDataLogFile retrieves a single uploaded log by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetDataLogFile(ctx context.Context, id int64) (survey.DataLogFile, error) {
	row := s.db.QueryRowContext(ctx, dataLogFileSelect+`
		WHERE dlf.id = ?`, id)

	return scanDataLogFile(row)
}

// UpdateDataLogFile persists the editable fields of an uploaded log.
// Returns sql.ErrNoRows if the row does not exist.
func (s *Store) UpdateDataLogFile(ctx context.Context, f survey.DataLogFile) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE data_log_files
		SET upload_date = ?, uploaded_by = ?, contents = ?
		WHERE id = ?`,
		formatTimePtr(f.UploadDate),
		nullableString(f.UploadedBy),
		nullableString(f.Contents),
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("update data log file: %w", err)
	}
	return requireRow(result)
}

// LinkTransectDataLog records that a log file carries data for a transect.
// Linking the same file/transect pair twice is a no-op: the existing row ID
// is returned with inserted=false.
func (s *Store) LinkTransectDataLog(ctx context.Context, link survey.TransectDataLog) (id int64, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("link transect data log: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO transect_data_logs (data_log_file_id, transect_uid, is_primary, username)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(data_log_file_id, transect_uid) DO NOTHING`,
		link.DataLogFileID,
		link.TransectUID,
		nullableBool(link.IsPrimary),
		nullableString(link.Username),
	)
	if err != nil {
		return 0, false, fmt.Errorf("link transect data log: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("link transect data log: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("link transect data log: last insert id: %w", err)
		}
		inserted = true
	} else {
		// Conflict - pair already linked, fetch the existing ID
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM transect_data_logs
			WHERE data_log_file_id = ? AND transect_uid = ?`,
			link.DataLogFileID, link.TransectUID).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("link transect data log: select existing: %w", err)
		}
		inserted = false
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("link transect data log: commit: %w", err)
	}

	return id, inserted, nil
}

const transectDataLogSelect = `
	SELECT tdl.id, tdl.data_log_file_id, tdl.transect_uid, tdl.is_primary,
	       tdl.username,
	       t.name, dlf.upload_date, dlf.uploaded_by
	FROM transect_data_logs tdl
	LEFT JOIN transects t ON tdl.transect_uid = t.uid
	LEFT JOIN data_log_files dlf ON tdl.data_log_file_id = dlf.id`

// ListTransectDataLogs returns one page of file/transect links, newest
// link first, each annotated with its transect name and upload context.
func (s *Store) ListTransectDataLogs(ctx context.Context, f queryfilter.TransectDataLogFilter, page queryfilter.Page) ([]survey.TransectDataLog, queryfilter.PageInfo, error) {
	page = page.Clamp()

	b := &queryfilter.WhereBuilder{}
	f.Apply(b)

	total, err := s.countRows(ctx, "transect_data_logs tdl", b)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("count transect data logs: %w", err)
	}

	limit, offset := page.LimitOffset()
	args := append(b.Params(), limit, offset)
	rows, err := s.db.QueryContext(ctx, transectDataLogSelect+b.SQL()+`
		ORDER BY tdl.id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, queryfilter.PageInfo{}, fmt.Errorf("query transect data logs: %w", err)
	}
	defer rows.Close()

	links, err := collectTransectDataLogs(rows)
	if err != nil {
		return nil, queryfilter.PageInfo{}, err
	}

	return links, queryfilter.NewPageInfo(page, total), nil
}

// LinksForDataLog returns a log file's transect links in transect order.
// Embedded in the data-log detail payload.
func (s *Store) LinksForDataLog(ctx context.Context, fileID int64) ([]survey.TransectDataLog, error) {
	rows, err := s.db.QueryContext(ctx, transectDataLogSelect+`
		WHERE tdl.data_log_file_id = ?
		ORDER BY tdl.transect_uid ASC, tdl.id ASC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query transect data logs: %w", err)
	}
	defer rows.Close()

	return collectTransectDataLogs(rows)
}

func collectTransectDataLogs(rows *sql.Rows) ([]survey.TransectDataLog, error) {
	var links []survey.TransectDataLog
	for rows.Next() {
		l, err := scanTransectDataLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transect data log: %w", err)
		}
		links = append(links, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transect data logs: %w", err)
	}

	if links == nil {
		links = []survey.TransectDataLog{}
	}

	return links, nil
}

// GetTransectDataLog retrieves a single file/transect link by row ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetTransectDataLog(ctx context.Context, id int64) (survey.TransectDataLog, error) {
	row := s.db.QueryRowContext(ctx, transectDataLogSelect+`
		WHERE tdl.id = ?`, id)

	return scanTransectDataLog(row)
}

// UpdateTransectDataLog persists the editable fields of a link.
// Returns sql.ErrNoRows if the row does not exist.
func (s *Store) UpdateTransectDataLog(ctx context.Context, link survey.TransectDataLog) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transect_data_logs
		SET data_log_file_id = ?, transect_uid = ?, is_primary = ?, username = ?
		WHERE id = ?`,
		link.DataLogFileID,
		link.TransectUID,
		nullableBool(link.IsPrimary),
		nullableString(link.Username),
		link.ID,
	)
	if err != nil {
		return fmt.Errorf("update transect data log: %w", err)
	}
	return requireRow(result)
}

func scanDataLogFile(sc scanner) (survey.DataLogFile, error) {
	var f survey.DataLogFile
	var uploadDate sql.NullString
	var uploadedBy, contents sql.NullString

	if err := sc.Scan(&f.ID, &uploadDate, &uploadedBy, &contents); err != nil {
		return survey.DataLogFile{}, err
	}

	var err error
	if f.UploadDate, err = parseTimeNull(uploadDate); err != nil {
		return survey.DataLogFile{}, err
	}
	f.UploadedBy = stringPtr(uploadedBy)
	f.Contents = stringPtr(contents)

	return f, nil
}

func scanTransectDataLog(sc scanner) (survey.TransectDataLog, error) {
	var l survey.TransectDataLog
	var isPrimary sql.NullInt64
	var username sql.NullString
	var transectName sql.NullString
	var uploadDate sql.NullString
	var uploadedBy sql.NullString

	if err := sc.Scan(
		&l.ID, &l.DataLogFileID, &l.TransectUID, &isPrimary,
		&username,
		&transectName, &uploadDate, &uploadedBy,
	); err != nil {
		return survey.TransectDataLog{}, err
	}

	l.IsPrimary = boolPtr(isPrimary)
	l.Username = stringPtr(username)
	if transectName.Valid {
		l.TransectName = transectName.String
	}
	var err error
	if l.UploadDate, err = parseTimeNull(uploadDate); err != nil {
		return survey.TransectDataLog{}, err
	}
	l.UploadedBy = stringPtr(uploadedBy)

	return l, nil
}
