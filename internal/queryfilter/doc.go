// Package queryfilter compiles list-view filters to parameterized SQL.
//
// Each list endpoint has a typed filter struct whose set fields become WHERE
// conditions with bound parameters. Values are NEVER interpolated into SQL.
// Filters parse from URL query values with per-field validation errors and
// can re-encode themselves for echoing back to clients.
//
// Pagination is LIMIT/OFFSET with a default page size of 25. Ordering is the
// responsibility of the store, which pairs every filter with a deterministic
// ORDER BY including an explicit tie-break column.
package queryfilter
