package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/casetrail/internal/ir"
)

// ReadAggregate loads a note with its current children. Moods are ordered
// by (created_at, id); linked tasks and service requests by id.
// Returns ErrNotFound when the note does not exist.
func (r reader) ReadAggregate(ctx context.Context, rootID string) (ir.Aggregate, error) {
	noteRow, err := r.GetRow(ctx, ir.KindNote, rootID)
	if err != nil {
		return ir.Aggregate{}, fmt.Errorf("read aggregate: %w", err)
	}

	agg := ir.Aggregate{Note: ir.NoteFromFields(noteRow)}

	if agg.Moods, err = r.moods(ctx, rootID); err != nil {
		return ir.Aggregate{}, fmt.Errorf("read aggregate %s: %w", rootID, err)
	}
	if agg.Purposes, err = r.linkedTasks(ctx, ir.KindPurposeLink, rootID); err != nil {
		return ir.Aggregate{}, fmt.Errorf("read aggregate %s: %w", rootID, err)
	}
	if agg.NextSteps, err = r.linkedTasks(ctx, ir.KindNextStepLink, rootID); err != nil {
		return ir.Aggregate{}, fmt.Errorf("read aggregate %s: %w", rootID, err)
	}
	if agg.ProvidedServices, err = r.linkedServices(ctx, ir.KindProvidedServiceLink, rootID); err != nil {
		return ir.Aggregate{}, fmt.Errorf("read aggregate %s: %w", rootID, err)
	}
	if agg.RequestedServices, err = r.linkedServices(ctx, ir.KindRequestedServiceLink, rootID); err != nil {
		return ir.Aggregate{}, fmt.Errorf("read aggregate %s: %w", rootID, err)
	}
	return agg, nil
}

func (r reader) moods(ctx context.Context, noteID string) ([]ir.Mood, error) {
	ids, err := r.queryIDs(ctx, `
		SELECT id FROM moods
		WHERE note_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("moods: %w", err)
	}

	moods := make([]ir.Mood, 0, len(ids))
	for _, id := range ids {
		row, err := r.GetRow(ctx, ir.KindMood, id)
		if err != nil {
			return nil, fmt.Errorf("moods: %w", err)
		}
		moods = append(moods, ir.MoodFromFields(row))
	}
	return moods, nil
}

func (r reader) linkedTasks(ctx context.Context, kind ir.EntityKind, noteID string) ([]ir.Task, error) {
	ids, err := r.ChildIDs(ctx, kind, noteID)
	if err != nil {
		return nil, err
	}
	tasks := make([]ir.Task, 0, len(ids))
	for _, id := range ids {
		row, err := r.GetRow(ctx, ir.KindTask, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		tasks = append(tasks, ir.TaskFromFields(row))
	}
	return tasks, nil
}

func (r reader) linkedServices(ctx context.Context, kind ir.EntityKind, noteID string) ([]ir.ServiceRequest, error) {
	ids, err := r.ChildIDs(ctx, kind, noteID)
	if err != nil {
		return nil, err
	}
	reqs := make([]ir.ServiceRequest, 0, len(ids))
	for _, id := range ids {
		row, err := r.GetRow(ctx, ir.KindServiceRequest, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		reqs = append(reqs, ir.ServiceRequestFromFields(row))
	}
	return reqs, nil
}
