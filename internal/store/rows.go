package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/casetrail/internal/ir"
)

// GetRow returns the full column image of a standalone entity, or ErrNotFound.
func (r reader) GetRow(ctx context.Context, kind ir.EntityKind, id string) (ir.IRObject, error) {
	t, err := lookupEntity(kind)
	if err != nil {
		return nil, fmt.Errorf("get row: %w", err)
	}

	targets := make([]any, len(t.columns))
	for i, c := range t.columns {
		targets[i] = c.scanTarget()
	}

	err = r.q.QueryRowContext(ctx,
		"SELECT "+t.columnList()+" FROM "+t.name+" WHERE id = ?", id,
	).Scan(targets...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get row %s/%s: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get row %s/%s: %w", kind, id, err)
	}

	obj := make(ir.IRObject, len(t.columns))
	for i, c := range t.columns {
		obj[c.name] = c.fromScan(targets[i])
	}
	return obj, nil
}

// RowExists reports whether a standalone entity row exists.
func (r reader) RowExists(ctx context.Context, kind ir.EntityKind, id string) (bool, error) {
	t, err := lookupEntity(kind)
	if err != nil {
		return false, fmt.Errorf("row exists: %w", err)
	}
	var one int
	err = r.q.QueryRowContext(ctx, "SELECT 1 FROM "+t.name+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("row exists %s/%s: %w", kind, id, err)
	}
	return true, nil
}

// InsertRow inserts a standalone entity row and logs an insert event whose
// payload is the full row image. fields must carry a non-empty "id"; absent
// columns take their zero value. Returns the inserted image.
func (t *Tx) InsertRow(ctx context.Context, kind ir.EntityKind, fields ir.IRObject) (ir.IRObject, error) {
	tbl, err := lookupEntity(kind)
	if err != nil {
		return nil, fmt.Errorf("insert row: %w", err)
	}
	image, err := tbl.normalize(fields)
	if err != nil {
		return nil, fmt.Errorf("insert row: %w", err)
	}
	id := image.String("id")
	if id == "" {
		return nil, fmt.Errorf("insert row %s: empty id", kind)
	}

	args := make([]any, len(tbl.columns))
	for i, c := range tbl.columns {
		if args[i], err = c.arg(image[c.name]); err != nil {
			return nil, fmt.Errorf("insert row %s/%s: %w", kind, id, err)
		}
	}

	_, err = t.tx.ExecContext(ctx,
		"INSERT INTO "+tbl.name+" ("+tbl.columnList()+") VALUES ("+placeholders(len(tbl.columns))+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("insert row %s/%s: %w", kind, id, err)
	}

	if _, err := t.Append(ctx, ir.ChangeEvent{
		EntityKind: kind,
		EntityID:   id,
		Action:     ir.ActionInsert,
		Payload:    image,
		Snapshot:   image,
	}); err != nil {
		return nil, fmt.Errorf("insert row %s/%s: %w", kind, id, err)
	}
	return image, nil
}

// UpdateRow merges fields into an existing row and logs an update event
// whose payload is field -> [old, new] for the changed columns only.
// Returns false when the row does not exist. An update that changes
// nothing writes no event.
func (t *Tx) UpdateRow(ctx context.Context, kind ir.EntityKind, id string, fields ir.IRObject) (bool, error) {
	tbl, err := lookupEntity(kind)
	if err != nil {
		return false, fmt.Errorf("update row: %w", err)
	}
	if v, ok := fields["id"]; ok && !ir.Equal(v, ir.IRString(id)) {
		return false, fmt.Errorf("update row %s/%s: id cannot change", kind, id)
	}

	current, err := t.GetRow(ctx, kind, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update row: %w", err)
	}

	next := current.Clone()
	for k, v := range fields {
		c, ok := tbl.column(k)
		if !ok {
			return false, fmt.Errorf("update row %s/%s: unknown column %q", kind, id, k)
		}
		if next[k], err = c.coerce(v); err != nil {
			return false, fmt.Errorf("update row %s/%s.%s: %w", kind, id, k, err)
		}
	}

	diff := ir.Diff(current, next)
	if len(diff) == 0 {
		return true, nil
	}

	keys := diff.SortedKeys()
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		c, _ := tbl.column(k)
		sets[i] = k + " = ?"
		a, err := c.arg(next[k])
		if err != nil {
			return false, fmt.Errorf("update row %s/%s: %w", kind, id, err)
		}
		args = append(args, a)
	}
	args = append(args, id)

	if _, err := t.tx.ExecContext(ctx,
		"UPDATE "+tbl.name+" SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		args...,
	); err != nil {
		return false, fmt.Errorf("update row %s/%s: %w", kind, id, err)
	}

	if _, err := t.Append(ctx, ir.ChangeEvent{
		EntityKind: kind,
		EntityID:   id,
		Action:     ir.ActionUpdate,
		Payload:    diff,
		Snapshot:   next,
	}); err != nil {
		return false, fmt.Errorf("update row %s/%s: %w", kind, id, err)
	}
	return true, nil
}

// DeleteRow deletes a row and logs a delete event carrying its last image.
// Returns false when the row does not exist.
func (t *Tx) DeleteRow(ctx context.Context, kind ir.EntityKind, id string) (bool, error) {
	tbl, err := lookupEntity(kind)
	if err != nil {
		return false, fmt.Errorf("delete row: %w", err)
	}

	current, err := t.GetRow(ctx, kind, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete row: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+tbl.name+" WHERE id = ?", id); err != nil {
		return false, fmt.Errorf("delete row %s/%s: %w", kind, id, err)
	}

	if _, err := t.Append(ctx, ir.ChangeEvent{
		EntityKind: kind,
		EntityID:   id,
		Action:     ir.ActionDelete,
		Payload:    current,
		Snapshot:   current,
	}); err != nil {
		return false, fmt.Errorf("delete row %s/%s: %w", kind, id, err)
	}
	return true, nil
}

// PutRow makes the live row match image exactly: it updates the row when
// present and recreates it otherwise.
func (t *Tx) PutRow(ctx context.Context, kind ir.EntityKind, image ir.IRObject) error {
	id := image.String("id")
	if id == "" {
		return fmt.Errorf("put row %s: empty id", kind)
	}

	tbl, err := lookupEntity(kind)
	if err != nil {
		return fmt.Errorf("put row: %w", err)
	}
	full, err := tbl.normalize(image)
	if err != nil {
		return fmt.Errorf("put row %s/%s: %w", kind, id, err)
	}

	found, err := t.UpdateRow(ctx, kind, id, full)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	_, err = t.InsertRow(ctx, kind, full)
	return err
}
