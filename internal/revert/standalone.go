package revert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/casetrail/internal/ir"
)

// StandaloneRevert handles entities with their own identity and row
// lifecycle: notes, moods, tasks, and service requests.
type StandaloneRevert struct {
	Logger *slog.Logger
}

// Undo reverses one event:
//   - insert: delete the row if it still exists
//   - update: write the payload's old values back if the row still exists
//   - delete: rejected with INVALID_ACTION
func (s StandaloneRevert) Undo(ctx context.Context, w Writer, ev ir.ChangeEvent) error {
	log := loggerOrDefault(s.Logger)

	switch ev.Action {
	case ir.ActionInsert:
		removed, err := w.DeleteRow(ctx, ev.EntityKind, ev.EntityID)
		if err != nil {
			return fmt.Errorf("undo insert %s: %w", ev.Key(), err)
		}
		if !removed {
			log.Debug("undo insert: row already absent", "key", ev.Key())
		}
		return nil

	case ir.ActionUpdate:
		old := ir.OldValues(ev.Payload).Without("id")
		if len(old) == 0 {
			return nil
		}
		found, err := w.UpdateRow(ctx, ev.EntityKind, ev.EntityID, old)
		if err != nil {
			return fmt.Errorf("undo update %s: %w", ev.Key(), err)
		}
		if !found {
			log.Debug("undo update: row absent", "key", ev.Key())
		}
		return nil

	default:
		return NewInvalidActionError("undo", ev)
	}
}

// RestoreSnapshot overwrites or recreates the row so its columns match the
// event's full image: the inserted row, the row after an update, or the
// row before a delete.
func (s StandaloneRevert) RestoreSnapshot(ctx context.Context, w Writer, ev ir.ChangeEvent) error {
	if !ev.Action.Valid() {
		return NewInvalidActionError("restore", ev)
	}

	image := ev.Image()
	if len(image) == 0 && ev.Action == ir.ActionUpdate {
		// Update without a captured post-image: replay the new values.
		found, err := w.UpdateRow(ctx, ev.EntityKind, ev.EntityID, ir.NewValues(ev.Payload).Without("id"))
		if err != nil {
			return fmt.Errorf("restore %s: %w", ev.Key(), err)
		}
		if !found {
			loggerOrDefault(s.Logger).Debug("restore update: row absent", "key", ev.Key())
		}
		return nil
	}

	image = image.Clone()
	image["id"] = ir.IRString(ev.EntityID)
	if err := w.PutRow(ctx, ev.EntityKind, image); err != nil {
		return fmt.Errorf("restore %s: %w", ev.Key(), err)
	}
	return nil
}
