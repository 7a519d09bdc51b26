package project

import (
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/google/uuid"

	"github.com/calderbay/fieldwork/internal/survey"
)

func parseProject(v cue.Value, def *Definition) []error {
	nameVal := v.LookupPath(cue.ParsePath("project.name"))
	name, err := nameVal.String()
	if err != nil {
		return []error{formatCUEError(err)}
	}
	if strings.TrimSpace(name) == "" {
		return []error{&LoadError{
			Code:    ErrCodeProjectName,
			Message: "project name must not be blank",
			Pos:     nameVal.Pos(),
		}}
	}
	def.Project = name

	image, err := optString(v, "project.image")
	if err != nil {
		return []error{err}
	}
	def.Image = image

	return nil
}

// parseDataType reads one declared data type and its options. The label is
// the type name and doubles as the ID unless the file sets one, so
// re-publishing an unchanged file upserts rather than duplicates.
func parseDataType(name string, v cue.Value) (survey.DataType, []survey.DataTypeOption, error) {
	dt := survey.DataType{ID: name, Name: name}

	id, err := optString(v, "id")
	if err != nil {
		return dt, nil, err
	}
	if id != nil {
		dt.ID = *id
	}

	user, err := optBool(v, "user")
	if err != nil {
		return dt, nil, err
	}
	if user != nil {
		dt.IsUserDataType = *user
	}

	if dt.CSharpType, err = optString(v, "csharp"); err != nil {
		return dt, nil, err
	}

	var options []survey.DataTypeOption
	optionsVal := v.LookupPath(cue.ParsePath("options"))
	if optionsVal.Exists() {
		iter, iterErr := optionsVal.List()
		if iterErr != nil {
			return dt, nil, formatCUEError(iterErr)
		}
		seen := map[string]bool{}
		for iter.Next() {
			optVal := iter.Value()
			codeVal := optVal.LookupPath(cue.ParsePath("code"))
			code, codeErr := codeVal.String()
			if codeErr != nil {
				return dt, nil, formatCUEError(codeErr)
			}
			if seen[code] {
				return dt, nil, &LoadError{
					Code:    ErrCodeDuplicateCode,
					Message: fmt.Sprintf("duplicate option code %q for data type %s", code, dt.Name),
					Pos:     codeVal.Pos(),
				}
			}
			seen[code] = true

			o := survey.DataTypeOption{DataTypeID: dt.ID, Code: code}
			if o.Text, err = optString(optVal, "text"); err != nil {
				return dt, nil, err
			}
			options = append(options, o)
		}
	}

	return dt, options, nil
}

func parseWorkflow(name string, v cue.Value) (survey.TemplateWorkflow, error) {
	wf := survey.TemplateWorkflow{ID: name, Name: name}

	id, err := optString(v, "id")
	if err != nil {
		return wf, err
	}
	if id != nil {
		wf.ID = *id
	}

	if wf.DateAdded, err = optTime(v, "added"); err != nil {
		return wf, err
	}
	if wf.AddedBy, err = optString(v, "added_by"); err != nil {
		return wf, err
	}

	return wf, nil
}

// parseQuestion reads one question, keyed by its label, resolving its data
// type and workflow references against the declared labels.
func parseQuestion(id string, v cue.Value, dataTypes, workflows map[string]string) (survey.Question, error) {
	q := survey.Question{ID: id}

	var err error
	if q.Prompt, err = optString(v, "prompt"); err != nil {
		return q, err
	}

	dtVal := v.LookupPath(cue.ParsePath("data_type"))
	ref, err := dtVal.String()
	if err != nil {
		return q, formatCUEError(err)
	}
	dtID, ok := dataTypes[ref]
	if !ok {
		return q, &LoadError{
			Code:    ErrCodeUnknownRef,
			Message: fmt.Sprintf("references undeclared data type %q", ref),
			Pos:     dtVal.Pos(),
		}
	}
	q.DataTypeID = dtID
	q.DataTypeName = ref

	wfVal := v.LookupPath(cue.ParsePath("workflow"))
	if wfVal.Exists() {
		wfRef, wfErr := wfVal.String()
		if wfErr != nil {
			return q, formatCUEError(wfErr)
		}
		wfID, ok := workflows[wfRef]
		if !ok {
			return q, &LoadError{
				Code:    ErrCodeUnknownRef,
				Message: fmt.Sprintf("references undeclared workflow %q", wfRef),
				Pos:     wfVal.Pos(),
			}
		}
		q.WorkflowID = &wfID
	}

	return q, nil
}

// parseTransect reads one scheduled template transect. Transects are
// declared as a list because names repeat across survey days; an entry
// without an explicit ID gets a generated one, so files meant to be
// re-published should carry their own.
func parseTransect(v cue.Value) (survey.TemplateTransect, error) {
	var tt survey.TemplateTransect

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return tt, formatCUEError(err)
	}
	tt.Name = name

	id, err := optString(v, "id")
	if err != nil {
		return tt, err
	}
	if id != nil {
		tt.ID = *id
	} else {
		tt.ID = uuid.NewString()
	}

	scheduled, err := reqTime(v, "scheduled")
	if err != nil {
		return tt, err
	}
	tt.ScheduledTime = scheduled

	lat, long, err := parsePoint(v.LookupPath(cue.ParsePath("from")))
	if err != nil {
		return tt, err
	}
	tt.LatFrom, tt.LongFrom = lat, long

	toVal := v.LookupPath(cue.ParsePath("to"))
	if toVal.Exists() {
		lat, long, err := parsePoint(toVal)
		if err != nil {
			return tt, err
		}
		tt.LatTo, tt.LongTo = &lat, &long
	}

	if tt.DistanceKM, err = optFloat(v, "distance_km"); err != nil {
		return tt, err
	}
	if tt.AngleDegrees, err = optInt(v, "angle"); err != nil {
		return tt, err
	}
	if tt.OpenEnded, err = optBool(v, "open_ended"); err != nil {
		return tt, err
	}
	if tt.CreatedDynamically, err = optBool(v, "dynamic"); err != nil {
		return tt, err
	}
	if tt.Note, err = optString(v, "note"); err != nil {
		return tt, err
	}

	return tt, nil
}

func parsePoint(v cue.Value) (float64, float64, error) {
	lat, err := v.LookupPath(cue.ParsePath("lat")).Float64()
	if err != nil {
		return 0, 0, formatCUEError(err)
	}
	long, err := v.LookupPath(cue.ParsePath("long")).Float64()
	if err != nil {
		return 0, 0, formatCUEError(err)
	}
	if lat < -90 || lat > 90 || long < -180 || long > 180 {
		return 0, 0, &LoadError{
			Code:    ErrCodeCoordinates,
			Message: fmt.Sprintf("coordinate (%v, %v) out of range", lat, long),
			Pos:     v.Pos(),
		}
	}
	return lat, long, nil
}

func optString(v cue.Value, path string) (*string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, nil
	}
	s, err := f.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &s, nil
}

func optBool(v cue.Value, path string) (*bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, nil
	}
	b, err := f.Bool()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &b, nil
}

func optFloat(v cue.Value, path string) (*float64, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, nil
	}
	n, err := f.Float64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &n, nil
}

func optInt(v cue.Value, path string) (*int64, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, nil
	}
	n, err := f.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &n, nil
}

func optTime(v cue.Value, path string) (*time.Time, error) {
	raw, err := optString(v, path)
	if err != nil || raw == nil {
		return nil, err
	}
	parsed, parseErr := time.Parse(time.RFC3339, *raw)
	if parseErr != nil {
		return nil, &LoadError{
			Code:    ErrCodeBadTimestamp,
			Message: fmt.Sprintf("%s %q is not an RFC 3339 timestamp", path, *raw),
			Pos:     v.LookupPath(cue.ParsePath(path)).Pos(),
		}
	}
	return &parsed, nil
}

func reqTime(v cue.Value, path string) (time.Time, error) {
	f := v.LookupPath(cue.ParsePath(path))
	raw, err := f.String()
	if err != nil {
		return time.Time{}, formatCUEError(err)
	}
	parsed, parseErr := time.Parse(time.RFC3339, raw)
	if parseErr != nil {
		return time.Time{}, &LoadError{
			Code:    ErrCodeBadTimestamp,
			Message: fmt.Sprintf("%s %q is not an RFC 3339 timestamp", path, raw),
			Pos:     f.Pos(),
		}
	}
	return parsed, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Code: ErrCodeGeneric, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
