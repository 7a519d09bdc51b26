// Package project loads and validates CUE project configs: the files a
// project publishes to declare its reference data (data types, options,
// template workflows, questions, template transects). Loading parses the
// CUE input against an embedded schema, applies the semantic checks the
// schema cannot express, and returns a Definition ready for import.
package project

import (
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/calderbay/fieldwork/internal/survey"
)

// Mode controls how errors are handled during config loading.
type Mode int

const (
	// FailFast stops on the first error encountered.
	FailFast Mode = iota
	// CollectAll collects all errors before returning.
	CollectAll
)

// Definition is one loaded project config, mapped onto the survey types the
// importer persists. Slices keep file declaration order.
type Definition struct {
	Project string
	Image   *string

	DataTypes         []survey.DataType
	DataTypeOptions   []survey.DataTypeOption
	TemplateWorkflows []survey.TemplateWorkflow
	Questions         []survey.Question
	TemplateTransects []survey.TemplateTransect

	// Files lists the CUE files that made up the instance, relative to the
	// load path.
	Files []string
}

// LoadError is one error found while loading a project config.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants, stable across CLI output.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeSchema      = "E007" // Schema violation

	// Semantic validation errors
	ErrCodeProjectName   = "E101" // Missing or blank project name
	ErrCodeBadTimestamp  = "E102" // Unparseable timestamp
	ErrCodeDuplicateCode = "E103" // Duplicate option code within a data type
	ErrCodeUnknownRef    = "E104" // Reference to an undeclared item
	ErrCodeCoordinates   = "E105" // Coordinate out of range
)
