package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/casetrail/internal/notes"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Note     string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a note with its moods, tasks, and services",
		Long: `Print the current state of a note and everything linked to it.

Examples:
  casetrail show --db ./casetrail.db --note n1
  casetrail show --db ./casetrail.db --note n1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note id (required)")
	_ = cmd.MarkFlagRequired("note")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	a, err := openApp(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer a.Close()

	agg, err := a.service.Get(context.Background(), opts.Note)
	if errors.Is(err, notes.ErrNotFound) {
		_ = f.Error("NOT_FOUND", fmt.Sprintf("note %s not found", opts.Note), nil)
		return WrapExitError(ExitCommandError, "show failed", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read note", err)
	}

	return f.Success(agg, func(w io.Writer) error {
		return renderAggregate(w, agg)
	})
}
