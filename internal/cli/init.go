package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// InitResult reports what the init command set up.
type InitResult struct {
	Path          string `json:"path"`
	SchemaVersion int    `json:"schema_version"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the survey database",
		Long: `Create the SQLite database and apply the schema, or migrate an
existing database to the current schema version.

Example:
  fieldwork init --db ./survey.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}

	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer closeStore(st)

	version, err := st.SchemaVersion(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read schema version", err)
	}

	result := InitResult{Path: opts.DBPath, SchemaVersion: version}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Database ready at %s (schema version %d)\n", result.Path, result.SchemaVersion)
	return nil
}
