package revert

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/casetrail/internal/ir"
)

// Plan is the set of events a revert will apply, in application order.
type Plan struct {
	RootID string
	Target time.Time

	// Anchor is the latest anchor context at or before Target, if any.
	Anchor    ir.Context
	HasAnchor bool

	// Undo events are reversed, latest first.
	Undo []ir.ChangeEvent

	// Restore events are re-applied in order: removals first, then the
	// anchor's root-note events.
	Restore []ir.ChangeEvent

	// Skipped counts post-target events the plan deliberately leaves alone.
	Skipped int
}

// Empty reports whether applying the plan would write nothing.
func (p Plan) Empty() bool {
	return len(p.Undo) == 0 && len(p.Restore) == 0
}

// planReader is the read side of the store a plan is built from.
// *store.Tx and *store.Snapshot both implement it.
type planReader interface {
	RowExists(ctx context.Context, kind ir.EntityKind, id string) (bool, error)
	FindLatestBefore(ctx context.Context, rootID string, at time.Time, labels ...string) (ir.Context, bool, error)
	FindAllAfter(ctx context.Context, rootID string, labels []string, at time.Time) ([]ir.Context, error)
	QueryByContext(ctx context.Context, contextIDs []string) ([]ir.ChangeEvent, error)
}

type contextClass int

const (
	classAddition contextClass = iota
	classRemoval
	classMixed
)

// buildPlan selects the anchor and the post-target contexts, then decides
// per event whether it is undone, restored, or skipped.
//
// For each entity touched after target, its first post-target event tells
// whether it existed at target:
//   - first event is an insert: it did not exist, so it is never restored
//   - first event is a delete: it existed, so its inserts are not undone and
//     only that first delete image is restored
//
// Root-note events outside the anchor are skipped; the anchor snapshot
// alone determines the root's fields.
func (e *Engine) buildPlan(ctx context.Context, r planReader, rootID string, target time.Time) (Plan, error) {
	p := Plan{RootID: rootID, Target: target}

	anchor, ok, err := r.FindLatestBefore(ctx, rootID, target, e.labels.Anchor...)
	if err != nil {
		return Plan{}, fmt.Errorf("plan: %w", err)
	}
	p.Anchor, p.HasAnchor = anchor, ok

	classes := []struct {
		class  contextClass
		labels []string
	}{
		{classAddition, e.labels.Additions},
		{classRemoval, e.labels.Removals},
		{classMixed, e.labels.Mixed},
	}
	classOf := make(map[string]contextClass)
	var ids []string
	for _, c := range classes {
		contexts, err := r.FindAllAfter(ctx, rootID, c.labels, target)
		if err != nil {
			return Plan{}, fmt.Errorf("plan: %w", err)
		}
		for _, found := range contexts {
			if _, seen := classOf[found.ID]; seen {
				continue
			}
			classOf[found.ID] = c.class
			ids = append(ids, found.ID)
		}
	}

	events, err := r.QueryByContext(ctx, ids)
	if err != nil {
		return Plan{}, fmt.Errorf("plan: %w", err)
	}

	earliest := make(map[string]ir.Action)
	for _, ev := range events {
		if _, ok := earliest[ev.Key()]; !ok {
			earliest[ev.Key()] = ev.Action
		}
	}

	restored := make(map[string]bool)
	for _, ev := range events {
		if isRoot(ev, rootID) {
			p.Skipped++
			continue
		}
		if _, err := e.registry.Lookup(ev.EntityKind); err != nil {
			return Plan{}, withEvent(err, rootID, ev)
		}

		undo := false
		switch classOf[ev.ContextID] {
		case classAddition:
			undo = true
		case classRemoval:
			undo = false
		case classMixed:
			switch ev.Action {
			case ir.ActionInsert:
				undo = true
			case ir.ActionDelete:
				undo = false
			default:
				p.Skipped++
				continue
			}
		}

		key := ev.Key()
		if undo {
			if ev.Action == ir.ActionInsert && earliest[key] == ir.ActionDelete {
				p.Skipped++
				continue
			}
			p.Undo = append(p.Undo, ev)
			continue
		}

		if earliest[key] == ir.ActionInsert || restored[key] {
			p.Skipped++
			continue
		}
		restored[key] = true
		p.Restore = append(p.Restore, ev)
	}
	slices.Reverse(p.Undo)

	if p.HasAnchor {
		anchorEvents, err := r.QueryByContext(ctx, []string{p.Anchor.ID})
		if err != nil {
			return Plan{}, fmt.Errorf("plan: anchor: %w", err)
		}
		for _, ev := range anchorEvents {
			if !isRoot(ev, rootID) {
				continue
			}
			if _, err := e.registry.Lookup(ev.EntityKind); err != nil {
				return Plan{}, withEvent(err, rootID, ev)
			}
			p.Restore = append(p.Restore, ev)
		}
	}

	return p, nil
}

func isRoot(ev ir.ChangeEvent, rootID string) bool {
	return ev.EntityKind == ir.KindNote && ev.EntityID == rootID
}
