package revert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/store"
)

// AssociationRevert handles note links. A link's only state is presence,
// so undoing an add removes it, undoing a remove re-adds it, and restoring
// a snapshot is the same as undoing.
type AssociationRevert struct {
	Logger *slog.Logger
}

// Undo applies the inverse of a link add or remove. Re-adding a link whose
// note or child no longer exists is a no-op.
func (a AssociationRevert) Undo(ctx context.Context, w Writer, ev ir.ChangeEvent) error {
	log := loggerOrDefault(a.Logger)

	parentID, childID, err := linkEnds(ev)
	if err != nil {
		return fmt.Errorf("undo %s: %w", ev.Key(), err)
	}

	switch ev.Action {
	case ir.ActionInsert:
		removed, err := w.RemoveLink(ctx, ev.EntityKind, parentID, childID)
		if err != nil {
			return fmt.Errorf("undo add %s: %w", ev.Key(), err)
		}
		if !removed {
			log.Debug("undo add: link already absent", "key", ev.Key())
		}
		return nil

	case ir.ActionDelete:
		added, err := w.AddLink(ctx, ev.EntityKind, parentID, childID)
		if errors.Is(err, store.ErrMissingEntity) {
			log.Debug("undo remove: linked entity missing", "key", ev.Key(), "error", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("undo remove %s: %w", ev.Key(), err)
		}
		if !added {
			log.Debug("undo remove: link already present", "key", ev.Key())
		}
		return nil

	default:
		return NewInvalidActionError("undo", ev)
	}
}

// RestoreSnapshot is identical to Undo for links.
func (a AssociationRevert) RestoreSnapshot(ctx context.Context, w Writer, ev ir.ChangeEvent) error {
	return a.Undo(ctx, w, ev)
}

// linkEnds reads the (parent, child) pair from the payload, falling back
// to the entity id.
func linkEnds(ev ir.ChangeEvent) (parentID, childID string, err error) {
	parentID = ev.Payload.String("parent_id")
	childID = ev.Payload.String("child_id")
	if parentID != "" && childID != "" {
		return parentID, childID, nil
	}
	return ir.SplitLinkID(ev.EntityID)
}
