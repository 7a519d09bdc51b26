package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/calderbay/fieldwork/internal/project"
	"github.com/calderbay/fieldwork/internal/store"
	"github.com/calderbay/fieldwork/internal/survey"
)

// NewImportCommand creates the import command group.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import project configs and device logs",
	}

	cmd.AddCommand(NewImportConfigCommand(rootOpts))
	cmd.AddCommand(NewImportLogCommand(rootOpts))

	return cmd
}

// ImportConfigOptions holds flags for the import config command.
type ImportConfigOptions struct {
	*RootOptions
	Project     string
	PublishedBy string
}

// ImportConfigResult reports one applied project publish.
type ImportConfigResult struct {
	ProjectConfigID int64              `json:"project_config_id"`
	Project         string             `json:"project"`
	Files           []string           `json:"files"`
	Counts          store.ImportCounts `json:"counts"`
}

// NewImportConfigCommand creates the import config command.
func NewImportConfigCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportConfigOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "config <path>",
		Short: "Import a CUE project config",
		Long: `Import a project config publish from a CUE file or a directory of
CUE files. The config is validated first; all validation errors are
reported in one pass, with file positions where available. On success
every reference row is upserted and the publish is recorded.

Example:
  fieldwork import config ./configs/lockyer --db ./survey.db
  fieldwork import config ./project.cue --project "Frogs of the Lockyer"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportConfig(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "project name (overrides the config's)")
	cmd.Flags().StringVar(&opts.PublishedBy, "published-by", "", "user recorded on question history entries")

	return cmd
}

func runImportConfig(opts *ImportConfigOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	def, loadErrors := project.Load(path, project.CollectAll)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, path, loadErrors)
	}
	formatter.VerboseLog("Loaded %d CUE file(s) from %s", len(def.Files), path)

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	imp := importFromDefinition(def, path)
	if opts.Project != "" {
		imp.Project = opts.Project
	}
	if opts.PublishedBy != "" {
		imp.PublishedBy = &opts.PublishedBy
	}

	counts, configID, err := st.ImportProjectConfig(context.Background(), imp)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to import config", err)
	}

	result := ImportConfigResult{
		ProjectConfigID: configID,
		Project:         imp.Project,
		Files:           def.Files,
		Counts:          counts,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Imported project %q (config #%d)\n\n", result.Project, result.ProjectConfigID)
	fmt.Fprintf(formatter.Writer, "  data types:         %s\n", formatChangeCount(counts.DataTypes))
	fmt.Fprintf(formatter.Writer, "  data type options:  %s\n", formatChangeCount(counts.DataTypeOptions))
	fmt.Fprintf(formatter.Writer, "  template workflows: %s\n", formatChangeCount(counts.TemplateWorkflows))
	fmt.Fprintf(formatter.Writer, "  questions:          %s\n", formatChangeCount(counts.Questions))
	fmt.Fprintf(formatter.Writer, "  template transects: %s\n", formatChangeCount(counts.TemplateTransects))
	return nil
}

// outputLoadErrors prints config load errors one per line and picks the
// exit code: missing or unreadable paths are command errors, everything
// else is a validation failure.
func outputLoadErrors(formatter *OutputFormatter, path string, loadErrors []error) error {
	code := ExitFailure
	messages := make([]string, 0, len(loadErrors))
	for _, err := range loadErrors {
		messages = append(messages, err.Error())
		var loadErr *project.LoadError
		if errors.As(err, &loadErr) {
			switch loadErr.Code {
			case project.ErrCodeNotFound, project.ErrCodeScanError:
				code = ExitCommandError
			}
		}
	}

	if formatter.Format == "json" {
		_ = formatter.Error(project.ErrCodeSchema, fmt.Sprintf("config validation failed: %s", path), messages)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %d error(s) loading %s:\n", len(loadErrors), path)
		for _, msg := range messages {
			fmt.Fprintf(formatter.Writer, "  %s\n", msg)
		}
	}
	return NewExitError(code, "config validation failed")
}

// importFromDefinition maps a loaded config onto a store import, deriving
// the recorded folder and file names from the load path.
func importFromDefinition(def *project.Definition, path string) store.ProjectImport {
	folder := filepath.ToSlash(filepath.Clean(path))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		folder = filepath.ToSlash(filepath.Dir(path))
	}

	var configFile, transectsFile string
	for _, f := range def.Files {
		if filepath.Base(f) == "transects.cue" && transectsFile == "" {
			transectsFile = f
		} else if configFile == "" {
			configFile = f
		}
	}
	if configFile == "" && len(def.Files) > 0 {
		configFile = def.Files[0]
	}

	return store.ProjectImport{
		Project:           def.Project,
		ConfigFolder:      folder,
		ConfigFile:        configFile,
		TransectsFile:     transectsFile,
		Image:             def.Image,
		DataTypes:         def.DataTypes,
		DataTypeOptions:   def.DataTypeOptions,
		TemplateWorkflows: def.TemplateWorkflows,
		Questions:         def.Questions,
		TemplateTransects: def.TemplateTransects,
	}
}

func formatChangeCount(c store.ChangeCount) string {
	return fmt.Sprintf("%d created, %d updated", c.Created, c.Updated)
}

// ImportLogOptions holds flags for the import log command.
type ImportLogOptions struct {
	*RootOptions
	UploadedBy string
	Transects  []int64
	Primary    bool
	Username   string
}

// ImportLogResult reports one stored device log.
type ImportLogResult struct {
	UploadID      int64   `json:"upload_id"`
	Bytes         int     `json:"bytes"`
	Linked        []int64 `json:"linked,omitempty"`
	AlreadyLinked []int64 `json:"already_linked,omitempty"`
}

// NewImportLogCommand creates the import log command.
func NewImportLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportLogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <file>",
		Short: "Store a device GPS log",
		Long: `Store a device log file's contents as an upload, optionally linking
it to the transects it covers. Linking the same file and transect twice
is a no-op.

Example:
  fieldwork import log ./track-0501.log --uploaded-by kwalsh --transect 42
  fieldwork import log ./track.log --uploaded-by kwalsh --transect 42 --transect 43 --primary`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportLog(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.UploadedBy, "uploaded-by", "", "user who uploaded the log (required)")
	_ = cmd.MarkFlagRequired("uploaded-by")
	cmd.Flags().Int64SliceVar(&opts.Transects, "transect", nil, "transect UID to link (repeatable)")
	cmd.Flags().BoolVar(&opts.Primary, "primary", false, "mark the links as the transect's primary log")
	cmd.Flags().StringVar(&opts.Username, "username", "", "device username recorded on the links")

	return cmd
}

func runImportLog(opts *ImportLogOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	contents, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read log file", err)
	}

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := context.Background()

	// Check the named transects up front so a typo fails before anything
	// is written.
	for _, uid := range opts.Transects {
		if _, err := st.GetTransect(ctx, uid); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return NewExitError(ExitCommandError, fmt.Sprintf("transect %d not found", uid))
			}
			return WrapExitError(ExitCommandError, "failed to look up transect", err)
		}
	}

	text := string(contents)
	file := survey.DataLogFile{
		UploadedBy: &opts.UploadedBy,
		Contents:   &text,
	}
	uploadID, err := st.InsertDataLogFile(ctx, file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store log", err)
	}

	result := ImportLogResult{UploadID: uploadID, Bytes: len(contents)}
	for _, uid := range opts.Transects {
		link := survey.TransectDataLog{
			DataLogFileID: uploadID,
			TransectUID:   uid,
		}
		if cmd.Flags().Changed("primary") {
			link.IsPrimary = &opts.Primary
		}
		if opts.Username != "" {
			link.Username = &opts.Username
		}

		_, inserted, err := st.LinkTransectDataLog(ctx, link)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to link transect", err)
		}
		if inserted {
			result.Linked = append(result.Linked, uid)
		} else {
			result.AlreadyLinked = append(result.AlreadyLinked, uid)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Stored device log as upload #%d (%d bytes)\n", result.UploadID, result.Bytes)
	for _, uid := range result.Linked {
		fmt.Fprintf(formatter.Writer, "  linked transect %d\n", uid)
	}
	for _, uid := range result.AlreadyLinked {
		fmt.Fprintf(formatter.Writer, "  transect %d already linked\n", uid)
	}
	return nil
}
