package project

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
)

//go:embed schema.cue
var schemaSource string

// Load reads a project config from path, which may be a single CUE file or
// a directory of them loaded as one instance. Files in a directory config
// must share one package clause; a single file may omit it. The input is
// validated against the embedded schema, then parsed with the semantic
// checks the schema cannot express (blank project name, duplicate option
// codes, unresolvable references, out-of-range coordinates).
//
// In FailFast mode the first error returns; in CollectAll mode every error
// is gathered so a publish can be fixed in one pass.
func Load(path string, mode Mode) (*Definition, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config path: %v", err)}}
	}

	dir := path
	args := []string{"."}
	var files []string
	if info.IsDir() {
		files, err = findCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning config directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
	} else {
		dir = filepath.Dir(path)
		files = []string{filepath.Base(path)}
		args = []string{filepath.Base(path)}
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("compiling schema: %v", err)}}
	}

	unified := value.Unify(schema.LookupPath(cue.ParsePath("#Project")))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, schemaErrors(err, mode)
	}

	def := &Definition{Files: files}
	var errs []error

	if perrs := parseProject(unified, def); len(perrs) > 0 {
		errs = append(errs, perrs...)
		if mode == FailFast {
			return def, errs
		}
	}

	dataTypeIDs := map[string]string{}
	dataTypesVal := unified.LookupPath(cue.ParsePath("data_type"))
	if dataTypesVal.Exists() {
		iter, iterErr := dataTypesVal.Fields()
		if iterErr != nil {
			errs = append(errs, formatCUEError(iterErr))
			if mode == FailFast {
				return def, errs
			}
		} else {
			for iter.Next() {
				dt, options, parseErr := parseDataType(iter.Label(), iter.Value())
				if parseErr != nil {
					errs = append(errs, parseErr)
					if mode == FailFast {
						return def, errs
					}
					continue
				}
				dataTypeIDs[dt.Name] = dt.ID
				def.DataTypes = append(def.DataTypes, dt)
				def.DataTypeOptions = append(def.DataTypeOptions, options...)
			}
		}
	}

	workflowIDs := map[string]string{}
	workflowsVal := unified.LookupPath(cue.ParsePath("workflow"))
	if workflowsVal.Exists() {
		iter, iterErr := workflowsVal.Fields()
		if iterErr != nil {
			errs = append(errs, formatCUEError(iterErr))
			if mode == FailFast {
				return def, errs
			}
		} else {
			for iter.Next() {
				wf, parseErr := parseWorkflow(iter.Label(), iter.Value())
				if parseErr != nil {
					errs = append(errs, parseErr)
					if mode == FailFast {
						return def, errs
					}
					continue
				}
				workflowIDs[wf.Name] = wf.ID
				def.TemplateWorkflows = append(def.TemplateWorkflows, wf)
			}
		}
	}

	questionsVal := unified.LookupPath(cue.ParsePath("question"))
	if questionsVal.Exists() {
		iter, iterErr := questionsVal.Fields()
		if iterErr != nil {
			errs = append(errs, formatCUEError(iterErr))
			if mode == FailFast {
				return def, errs
			}
		} else {
			for iter.Next() {
				q, parseErr := parseQuestion(iter.Label(), iter.Value(), dataTypeIDs, workflowIDs)
				if parseErr != nil {
					errs = append(errs, parseErr)
					if mode == FailFast {
						return def, errs
					}
					continue
				}
				def.Questions = append(def.Questions, q)
			}
		}
	}

	transectsVal := unified.LookupPath(cue.ParsePath("transect"))
	if transectsVal.Exists() {
		iter, iterErr := transectsVal.List()
		if iterErr != nil {
			errs = append(errs, formatCUEError(iterErr))
			if mode == FailFast {
				return def, errs
			}
		} else {
			for iter.Next() {
				tt, parseErr := parseTransect(iter.Value())
				if parseErr != nil {
					errs = append(errs, parseErr)
					if mode == FailFast {
						return def, errs
					}
					continue
				}
				def.TemplateTransects = append(def.TemplateTransects, tt)
			}
		}
	}

	return def, errs
}

// findCUEFiles walks the directory and returns all .cue paths relative to it.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".cue" {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

// schemaErrors converts a CUE validation error into positioned LoadErrors.
func schemaErrors(err error, mode Mode) []error {
	var out []error
	for _, e := range cueerrors.Errors(err) {
		le := &LoadError{Code: ErrCodeSchema, Message: e.Error()}
		if positions := cueerrors.Positions(e); len(positions) > 0 {
			le.Pos = positions[0]
		}
		out = append(out, le)
		if mode == FailFast {
			break
		}
	}
	if len(out) == 0 {
		out = []error{&LoadError{Code: ErrCodeSchema, Message: err.Error()}}
	}
	return out
}
