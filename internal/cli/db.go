package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/calderbay/fieldwork/internal/store"
)

// openStore opens the database named by the global --db flag. Open creates
// the file and applies the schema when it does not exist yet.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// closeStore closes the database, logging rather than failing the command
// when the close itself errors.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
