package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/casetrail/internal/ir"
)

// LinkPayload is the image of an association link: its only state is the
// (parent, child) pair.
func LinkPayload(parentID, childID string) ir.IRObject {
	return ir.IRObject{
		"parent_id": ir.IRString(parentID),
		"child_id":  ir.IRString(childID),
	}
}

// HasLink reports whether the (parent, child) link is present.
func (r reader) HasLink(ctx context.Context, kind ir.EntityKind, parentID, childID string) (bool, error) {
	lt, err := lookupLink(kind)
	if err != nil {
		return false, fmt.Errorf("has link: %w", err)
	}
	var one int
	err = r.q.QueryRowContext(ctx,
		"SELECT 1 FROM "+lt.name+" WHERE parent_id = ? AND child_id = ?",
		parentID, childID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has link %s/%s: %w", kind, ir.LinkID(parentID, childID), err)
	}
	return true, nil
}

// ChildIDs returns the child ids linked to parentID, ordered by id.
func (r reader) ChildIDs(ctx context.Context, kind ir.EntityKind, parentID string) ([]string, error) {
	lt, err := lookupLink(kind)
	if err != nil {
		return nil, fmt.Errorf("child ids: %w", err)
	}
	return r.queryIDs(ctx,
		"SELECT child_id FROM "+lt.name+" WHERE parent_id = ? ORDER BY child_id COLLATE BINARY ASC",
		parentID,
	)
}

// LinksForChild returns the parent ids linked to childID, ordered by id.
func (r reader) LinksForChild(ctx context.Context, kind ir.EntityKind, childID string) ([]string, error) {
	lt, err := lookupLink(kind)
	if err != nil {
		return nil, fmt.Errorf("links for child: %w", err)
	}
	return r.queryIDs(ctx,
		"SELECT parent_id FROM "+lt.name+" WHERE child_id = ? ORDER BY parent_id COLLATE BINARY ASC",
		childID,
	)
}

func (r reader) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// AddLink adds the (parent, child) link and logs an insert event.
// Returns false when the link is already present. Returns ErrMissingEntity
// when the note or the child row does not exist.
func (t *Tx) AddLink(ctx context.Context, kind ir.EntityKind, parentID, childID string) (bool, error) {
	lt, err := lookupLink(kind)
	if err != nil {
		return false, fmt.Errorf("add link: %w", err)
	}
	linkID := ir.LinkID(parentID, childID)

	if ok, err := t.RowExists(ctx, ir.KindNote, parentID); err != nil {
		return false, fmt.Errorf("add link %s/%s: %w", kind, linkID, err)
	} else if !ok {
		return false, fmt.Errorf("add link %s/%s: note %s: %w", kind, linkID, parentID, ErrMissingEntity)
	}
	if ok, err := t.RowExists(ctx, lt.child, childID); err != nil {
		return false, fmt.Errorf("add link %s/%s: %w", kind, linkID, err)
	} else if !ok {
		return false, fmt.Errorf("add link %s/%s: %s %s: %w", kind, linkID, lt.child, childID, ErrMissingEntity)
	}

	present, err := t.HasLink(ctx, kind, parentID, childID)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}

	if _, err := t.tx.ExecContext(ctx,
		"INSERT INTO "+lt.name+" (parent_id, child_id) VALUES (?, ?)",
		parentID, childID,
	); err != nil {
		return false, fmt.Errorf("add link %s/%s: %w", kind, linkID, err)
	}

	image := LinkPayload(parentID, childID)
	if _, err := t.Append(ctx, ir.ChangeEvent{
		EntityKind: kind,
		EntityID:   linkID,
		Action:     ir.ActionInsert,
		Payload:    image,
		Snapshot:   image,
	}); err != nil {
		return false, fmt.Errorf("add link %s/%s: %w", kind, linkID, err)
	}
	return true, nil
}

// RemoveLink removes the (parent, child) link and logs a delete event.
// Returns false when the link is not present.
func (t *Tx) RemoveLink(ctx context.Context, kind ir.EntityKind, parentID, childID string) (bool, error) {
	lt, err := lookupLink(kind)
	if err != nil {
		return false, fmt.Errorf("remove link: %w", err)
	}
	linkID := ir.LinkID(parentID, childID)

	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM "+lt.name+" WHERE parent_id = ? AND child_id = ?",
		parentID, childID,
	)
	if err != nil {
		return false, fmt.Errorf("remove link %s/%s: %w", kind, linkID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove link %s/%s: %w", kind, linkID, err)
	}
	if n == 0 {
		return false, nil
	}

	image := LinkPayload(parentID, childID)
	if _, err := t.Append(ctx, ir.ChangeEvent{
		EntityKind: kind,
		EntityID:   linkID,
		Action:     ir.ActionDelete,
		Payload:    image,
		Snapshot:   image,
	}); err != nil {
		return false, fmt.Errorf("remove link %s/%s: %w", kind, linkID, err)
	}
	return true, nil
}
