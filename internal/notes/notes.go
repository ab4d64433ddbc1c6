package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/store"
)

// NoteFields are the editable scalar fields of a note. Nil pointers leave a
// field unchanged on update.
type NoteFields struct {
	Title          *string
	PublicDetails  *string
	PrivateDetails *string
	IsSubmitted    *bool
	InteractedAt   *time.Time
}

func (f NoteFields) object() ir.IRObject {
	obj := ir.IRObject{}
	if f.Title != nil {
		obj["title"] = ir.IRString(*f.Title)
	}
	if f.PublicDetails != nil {
		obj["public_details"] = ir.IRString(*f.PublicDetails)
	}
	if f.PrivateDetails != nil {
		obj["private_details"] = ir.IRString(*f.PrivateDetails)
	}
	if f.IsSubmitted != nil {
		obj["is_submitted"] = ir.IRBool(*f.IsSubmitted)
	}
	if f.InteractedAt != nil {
		obj["interacted_at"] = stamp(*f.InteractedAt)
	}
	return obj
}

// CreateNote creates a note at logical time at and returns its id.
// An empty id is generated.
func (s *Service) CreateNote(ctx context.Context, id string, fields NoteFields, at time.Time) (string, error) {
	if err := checkNote(id, fields); err != nil {
		return "", err
	}
	id = s.idOr(id)
	obj := fields.object()
	obj["id"] = ir.IRString(id)
	obj["created_at"] = stamp(at)
	obj["updated_at"] = stamp(at)

	err := s.run(ctx, ir.LabelNoteCreate, id, at, func(tx *store.Tx) error {
		_, err := tx.InsertRow(ctx, ir.KindNote, obj)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateNote applies fields to a note at logical time at.
func (s *Service) UpdateNote(ctx context.Context, id string, fields NoteFields, at time.Time) error {
	if err := checkNote("", fields); err != nil {
		return err
	}
	obj := fields.object()
	obj["updated_at"] = stamp(at)

	return s.run(ctx, ir.LabelNoteUpdate, id, at, func(tx *store.Tx) error {
		found, err := tx.UpdateRow(ctx, ir.KindNote, id, obj)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("note %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// AddMood records a mood on a note and returns the mood id.
func (s *Service) AddMood(ctx context.Context, noteID, moodID, descriptor string, at time.Time) (string, error) {
	if err := validateStruct(moodInput{NoteID: noteID, ID: moodID, Descriptor: descriptor}); err != nil {
		return "", err
	}
	moodID = s.idOr(moodID)
	err := s.run(ctx, ir.LabelMoodAdd, noteID, at, func(tx *store.Tx) error {
		_, err := tx.InsertRow(ctx, ir.KindMood, ir.Mood{
			ID:         moodID,
			NoteID:     noteID,
			Descriptor: descriptor,
			CreatedAt:  at,
		}.Fields())
		return err
	})
	if err != nil {
		return "", err
	}
	return moodID, nil
}

// RemoveMood deletes a mood from a note.
func (s *Service) RemoveMood(ctx context.Context, noteID, moodID string, at time.Time) error {
	return s.run(ctx, ir.LabelMoodRemove, noteID, at, func(tx *store.Tx) error {
		row, err := tx.GetRow(ctx, ir.KindMood, moodID)
		if err != nil {
			return err
		}
		if row.String("note_id") != noteID {
			return fmt.Errorf("mood %s on note %s: %w", moodID, noteID, ErrNotFound)
		}
		_, err = tx.DeleteRow(ctx, ir.KindMood, moodID)
		return err
	})
}
