package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Column conversions between Go values and SQLite storage types.
// Timestamps are stored as RFC 3339 UTC text, booleans as 0/1 integers,
// and nullable fields round-trip through pointers.

// formatTime converts a timestamp to its storage form.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatTimePtr converts an optional timestamp to a bindable value.
func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime converts a stored timestamp back to time.Time.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// parseTimeNull converts a nullable stored timestamp to a pointer.
func parseTimeNull(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullableString converts an optional string to a bindable value.
func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// nullableInt64 converts an optional integer to a bindable value.
func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// nullableFloat64 converts an optional float to a bindable value.
func nullableFloat64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// nullableBool converts an optional bool to a bindable 0/1 value.
func nullableBool(p *bool) any {
	if p == nil {
		return nil
	}
	if *p {
		return int64(1)
	}
	return int64(0)
}

// stringPtr converts a scanned nullable string to a pointer.
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// int64Ptr converts a scanned nullable integer to a pointer.
func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}

// float64Ptr converts a scanned nullable float to a pointer.
func float64Ptr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

// boolPtr converts a scanned nullable 0/1 integer to a bool pointer.
func boolPtr(ni sql.NullInt64) *bool {
	if !ni.Valid {
		return nil
	}
	b := ni.Int64 != 0
	return &b
}
