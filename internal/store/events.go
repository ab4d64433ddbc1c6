package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/roach88/casetrail/internal/ir"
)

const eventColumns = `e.seq, e.id, e.entity_kind, e.entity_id, e.context_id, e.action,
	e.recorded_at, e.payload, e.snapshot, e.label`

// Append writes a ChangeEvent to the log and returns it as stored.
// The log assigns ID, Seq, and RecordedAt. ContextID and Label default to
// the active context; with no context open the event is untracked.
// Storage failures are returned as-is; nothing is retried.
func (t *Tx) Append(ctx context.Context, ev ir.ChangeEvent) (ir.ChangeEvent, error) {
	if !ev.EntityKind.Valid() {
		return ir.ChangeEvent{}, fmt.Errorf("append: unknown entity kind %q", ev.EntityKind)
	}
	if !ev.Action.Valid() {
		return ir.ChangeEvent{}, fmt.Errorf("append: unknown action %q", ev.Action)
	}
	if ev.EntityID == "" {
		return ir.ChangeEvent{}, fmt.Errorf("append: empty entity id")
	}

	ev.ID = t.store.ids.Generate()
	ev.RecordedAt = t.store.stamp()
	if t.active != nil {
		if ev.ContextID == "" {
			ev.ContextID = t.active.ID
		}
		if ev.Label == "" {
			ev.Label = t.active.Label
		}
	}
	if ev.Label == "" {
		ev.Label = UntrackedLabel
	}
	if ev.Payload == nil {
		ev.Payload = ir.IRObject{}
	}
	if ev.Snapshot == nil {
		ev.Snapshot = ir.IRObject{}
	}

	payloadJSON, err := marshalPayload(ev.Payload)
	if err != nil {
		return ir.ChangeEvent{}, fmt.Errorf("append: %w", err)
	}
	snapshotJSON, err := marshalPayload(ev.Snapshot)
	if err != nil {
		return ir.ChangeEvent{}, fmt.Errorf("append: %w", err)
	}

	var contextID any
	if ev.ContextID != "" {
		contextID = ev.ContextID
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO change_events
		(id, entity_kind, entity_id, context_id, action, recorded_at, payload, snapshot, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		string(ev.EntityKind),
		ev.EntityID,
		contextID,
		string(ev.Action),
		ev.RecordedAt.UnixNano(),
		payloadJSON,
		snapshotJSON,
		ev.Label,
	)
	if err != nil {
		return ir.ChangeEvent{}, fmt.Errorf("append: %w", err)
	}
	if ev.Seq, err = res.LastInsertId(); err != nil {
		return ir.ChangeEvent{}, fmt.Errorf("append: %w", err)
	}

	t.store.logger.Debug("event appended",
		"event_id", ev.ID,
		"kind", ev.EntityKind,
		"entity_id", ev.EntityID,
		"action", ev.Action,
		"label", ev.Label,
	)
	return ev, nil
}

// QueryByContext returns every event of the given contexts, ordered by
// context timestamp, then context seq, then event seq.
// Returns an empty slice (not nil) when there are no matches.
func (r reader) QueryByContext(ctx context.Context, contextIDs []string) ([]ir.ChangeEvent, error) {
	if len(contextIDs) == 0 {
		return []ir.ChangeEvent{}, nil
	}

	args := make([]any, len(contextIDs))
	for i, id := range contextIDs {
		args[i] = id
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM change_events e
		JOIN contexts c ON c.id = e.context_id
		WHERE e.context_id IN (`+placeholders(len(contextIDs))+`)
		ORDER BY c.ts ASC, c.seq ASC, e.seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query by context: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("query by context: %w", err)
	}
	return events, nil
}

// QueryEntity returns the history of one entity ordered by recordedAt, then seq.
func (r reader) QueryEntity(ctx context.Context, kind ir.EntityKind, id string) ([]ir.ChangeEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM change_events e
		WHERE e.entity_kind = ? AND e.entity_id = ?
		ORDER BY e.recorded_at ASC, e.seq ASC
	`, string(kind), id)
	if err != nil {
		return nil, fmt.Errorf("query entity %s/%s: %w", kind, id, err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("query entity %s/%s: %w", kind, id, err)
	}
	return events, nil
}

// QueryRange returns events with from <= recordedAt < to, ordered by
// recordedAt, then seq. A zero to means no upper bound.
func (r reader) QueryRange(ctx context.Context, from, to time.Time) ([]ir.ChangeEvent, error) {
	upper := int64(math.MaxInt64)
	if !to.IsZero() {
		upper = ir.ClampUnixNano(to)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM change_events e
		WHERE e.recorded_at >= ? AND e.recorded_at < ?
		ORDER BY e.recorded_at ASC, e.seq ASC
	`, ir.ClampUnixNano(from), upper)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	return events, nil
}

func scanEvents(rows *sql.Rows) ([]ir.ChangeEvent, error) {
	events := []ir.ChangeEvent{}
	for rows.Next() {
		var (
			ev           ir.ChangeEvent
			kind, action string
			contextID    sql.NullString
			recordedAt   int64
			payload      string
			snapshot     string
		)
		if err := rows.Scan(
			&ev.Seq,
			&ev.ID,
			&kind,
			&ev.EntityID,
			&contextID,
			&action,
			&recordedAt,
			&payload,
			&snapshot,
			&ev.Label,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.EntityKind = ir.EntityKind(kind)
		ev.Action = ir.Action(action)
		ev.ContextID = contextID.String
		ev.RecordedAt = time.Unix(0, recordedAt).UTC()

		var err error
		if ev.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		if ev.Snapshot, err = unmarshalPayload(snapshot); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
