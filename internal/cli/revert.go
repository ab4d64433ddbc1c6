package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/casetrail/internal/revert"
)

// RevertOptions holds flags for the revert command.
type RevertOptions struct {
	*RootOptions
	Database string
	Note     string
	To       string // RFC 3339 target time
	DryRun   bool
}

// PlanView is the dry-run output of the revert command.
type PlanView struct {
	RootID      string      `json:"root_id"`
	Target      time.Time   `json:"target"`
	AnchorID    string      `json:"anchor_id,omitempty"`
	AnchorLabel string      `json:"anchor_label,omitempty"`
	Undo        []EventView `json:"undo"`
	Restore     []EventView `json:"restore"`
	Skipped     int         `json:"skipped"`
}

// NewRevertCommand creates the revert command.
func NewRevertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RevertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "revert",
		Short: "Restore a note to its state at an earlier time",
		Long: `Restore a note, its moods, and its task and service links to how they
looked at the given time. The revert is recorded as a new note.revert
operation, so it can itself be reverted.

Exit codes:
  0 - Revert applied (or planned, with --dry-run)
  1 - Revert aborted and rolled back
  2 - Command error (unknown note, bad time, database error)

Examples:
  casetrail revert --db ./casetrail.db --note n1 --to 2024-05-01T09:30:00Z
  casetrail revert --db ./casetrail.db --note n1 --to 2024-05-01T09:30:00Z --dry-run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevert(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "id of the note to revert (required)")
	_ = cmd.MarkFlagRequired("note")
	cmd.Flags().StringVar(&opts.To, "to", "", "target time, RFC 3339 (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the revert plan without applying it")

	return cmd
}

func runRevert(opts *RevertOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := opts.formatter(cmd)

	target, err := time.Parse(time.RFC3339, opts.To)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --to %q", opts.To), err)
	}

	a, err := openApp(opts.RootOptions, cmd, opts.Database)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.DryRun {
		p, err := a.engine.Plan(ctx, opts.Note, target)
		if err != nil {
			return revertFailure(f, err)
		}
		view := planView(p)
		return f.Success(view, func(w io.Writer) error {
			return renderPlan(w, view)
		})
	}

	f.VerboseLog("Reverting note %s to %s", opts.Note, formatTime(target))
	agg, err := a.service.Revert(ctx, opts.Note, target)
	if err != nil {
		return revertFailure(f, err)
	}
	return f.Success(agg, func(w io.Writer) error {
		fmt.Fprintf(w, "Reverted note %s to %s\n\n", opts.Note, formatTime(target))
		return renderAggregate(w, agg)
	})
}

// revertFailure reports a revert error and maps it to an exit code.
// Caller mistakes exit with ExitCommandError; everything else is a
// failed revert.
func revertFailure(f *OutputFormatter, err error) error {
	var rerr *revert.RevertError
	if !errors.As(err, &rerr) {
		_ = f.Error("ERROR", err.Error(), nil)
		return WrapExitError(ExitCommandError, "revert failed", err)
	}

	details := map[string]string{"root_id": rerr.RootID}
	if rerr.EventID != "" {
		details["event_id"] = rerr.EventID
		details["kind"] = string(rerr.Kind)
		details["action"] = string(rerr.Action)
	}
	message := rerr.Message
	if rerr.Err != nil {
		message += ": " + rerr.Err.Error()
	}
	_ = f.Error(string(rerr.Code), message, details)

	code := ExitFailure
	if revert.IsRootNotFound(err) || revert.IsConfigurationError(err) || revert.IsInvalidTarget(err) {
		code = ExitCommandError
	}
	return WrapExitError(code, "revert failed", err)
}

func planView(p revert.Plan) PlanView {
	v := PlanView{
		RootID:  p.RootID,
		Target:  p.Target,
		Undo:    eventViews(p.Undo),
		Restore: eventViews(p.Restore),
		Skipped: p.Skipped,
	}
	if p.HasAnchor {
		v.AnchorID = p.Anchor.ID
		v.AnchorLabel = p.Anchor.Label
	}
	return v
}

func renderPlan(w io.Writer, v PlanView) error {
	fmt.Fprintf(w, "Revert plan for note %s to %s\n", v.RootID, formatTime(v.Target))
	if v.AnchorID != "" {
		fmt.Fprintf(w, "Anchor: %s (%s)\n", v.AnchorID, v.AnchorLabel)
	} else {
		fmt.Fprintln(w, "Anchor: none")
	}
	if len(v.Undo) == 0 && len(v.Restore) == 0 {
		fmt.Fprintln(w, "Nothing to revert.")
		return nil
	}
	fmt.Fprintf(w, "Undo (%d):\n", len(v.Undo))
	if err := renderEvents(w, v.Undo); err != nil {
		return err
	}
	fmt.Fprintf(w, "Restore (%d):\n", len(v.Restore))
	if err := renderEvents(w, v.Restore); err != nil {
		return err
	}
	if v.Skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d\n", v.Skipped)
	}
	return nil
}
