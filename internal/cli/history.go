package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/casetrail/internal/notes"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Note     string
	Events   bool // include each context's change events
}

// HistoryEntry is one recorded operation on a note.
type HistoryEntry struct {
	ContextID string      `json:"context_id"`
	Seq       int64       `json:"seq"`
	Label     string      `json:"label"`
	Timestamp time.Time   `json:"timestamp"`
	Events    []EventView `json:"events,omitempty"`
}

// HistoryResult holds the history of a note.
type HistoryResult struct {
	Note    string         `json:"note"`
	Entries []HistoryEntry `json:"entries"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the recorded operations on a note",
		Long: `List every operation recorded for a note, oldest first. Use --events
to include the change events each operation wrote.

Examples:
  casetrail history --db ./casetrail.db --note n1
  casetrail history --db ./casetrail.db --note n1 --events --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note id (required)")
	_ = cmd.MarkFlagRequired("note")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "include change events")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := opts.formatter(cmd)

	a, err := openApp(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer a.Close()

	contexts, err := a.service.History(ctx, opts.Note)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list history", err)
	}
	if len(contexts) == 0 {
		if _, err := a.service.Get(ctx, opts.Note); errors.Is(err, notes.ErrNotFound) {
			_ = f.Error("NOT_FOUND", fmt.Sprintf("note %s not found", opts.Note), nil)
			return WrapExitError(ExitCommandError, "history failed", err)
		}
	}

	result := HistoryResult{Note: opts.Note, Entries: make([]HistoryEntry, len(contexts))}
	for i, c := range contexts {
		entry := HistoryEntry{
			ContextID: c.ID,
			Seq:       c.Seq,
			Label:     c.Label,
			Timestamp: c.Timestamp,
		}
		if opts.Events {
			events, err := a.store.QueryByContext(ctx, []string{c.ID})
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read events", err)
			}
			entry.Events = eventViews(events)
		}
		result.Entries[i] = entry
	}
	f.VerboseLog("Found %d operation(s) for note %s", len(result.Entries), opts.Note)

	return f.Success(result, func(w io.Writer) error {
		return renderHistory(w, result)
	})
}

func renderHistory(w io.Writer, result HistoryResult) error {
	if len(result.Entries) == 0 {
		fmt.Fprintf(w, "No history for note %s.\n", result.Note)
		return nil
	}
	fmt.Fprintf(w, "History of note %s\n", result.Note)
	for _, e := range result.Entries {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Seq, formatTime(e.Timestamp), e.Label, e.ContextID)
		if err := tw.Flush(); err != nil {
			return err
		}
		if len(e.Events) > 0 {
			if err := renderEvents(w, e.Events); err != nil {
				return err
			}
		}
	}
	return nil
}
