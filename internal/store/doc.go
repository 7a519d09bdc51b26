// Package store provides SQLite-backed storage for field survey data.
//
// The schema holds three groups of tables:
//   - Completed data: transects, track points, occurrences, workflows and
//     responses uploaded from collector devices
//   - Reference data: transect plans, workflow definitions, questions,
//     data types and published project configs
//   - Audit history: one entry per mutation of an audited entity
//
// # Conventions
//
//   - Timestamps are stored as RFC 3339 UTC text, so lexicographic order
//     is chronological order
//   - Reference links are soft: no FOREIGN KEY clauses, reads tolerate
//     missing targets via LEFT JOIN
//   - List queries return empty slices, never nil, and always order with
//     an explicit tie-break column
//   - Single-row lookups return sql.ErrNoRows when nothing matches
//   - Every mutation of an audited entity writes its history entry in the
//     same transaction
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce declared constraints (the schema declares
//     none across reference links)
//
// History snapshots are canonical JSON (internal/canonical) checksummed
// with SHA-256 under a domain prefix.
package store
