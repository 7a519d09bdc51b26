// Package survey provides the domain types for field-survey data.
//
// This package contains type definitions only. All other internal packages
// import survey; survey imports nothing internal. This keeps the domain
// model the foundational layer with no circular dependencies.
//
// Two groups of entities:
//   - Completed data uploaded from collector devices: transects, their info
//     rows and GPS track points, occurrences, workflows, and responses.
//   - Reference data published per project: template transects and workflows,
//     questions, data types with coded options, project configs, and the
//     uploaded data log files that carry raw device output.
//
// Nullable database columns map to pointer fields. Timestamps are stored as
// RFC 3339 UTC text; coordinates are REAL with 8 decimal places of device
// precision. All JSON tags use snake_case.
package survey
