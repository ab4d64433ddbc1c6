package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/casetrail/internal/ir"
)

const contextColumns = `c.seq, c.id, c.label, c.root_id, c.ts, c.metadata, c.created_at`

// FindLatestBefore returns the latest context for rootID with one of the
// given labels and timestamp <= at that wrote the root note row itself.
// Ties on timestamp go to the higher seq. ok is false when none exists.
func (r reader) FindLatestBefore(ctx context.Context, rootID string, at time.Time, labels ...string) (c ir.Context, ok bool, err error) {
	if len(labels) == 0 {
		return ir.Context{}, false, nil
	}

	args := []any{rootID, ir.ClampUnixNano(at)}
	for _, l := range labels {
		args = append(args, l)
	}
	args = append(args, string(ir.KindNote), rootID)

	row := r.q.QueryRowContext(ctx, `
		SELECT `+contextColumns+`
		FROM contexts c
		WHERE c.root_id = ? AND c.ts <= ?
		  AND c.label IN (`+placeholders(len(labels))+`)
		  AND EXISTS (
			SELECT 1 FROM change_events e
			WHERE e.context_id = c.id AND e.entity_kind = ? AND e.entity_id = ?
		  )
		ORDER BY c.ts DESC, c.seq DESC
		LIMIT 1
	`, args...)

	c, err = scanContext(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Context{}, false, nil
	}
	if err != nil {
		return ir.Context{}, false, fmt.Errorf("find latest before: %w", err)
	}
	return c, true, nil
}

// FindAllAfter returns the contexts for rootID with one of the given labels
// and timestamp > at, ordered by timestamp then seq.
// Returns an empty slice (not nil) when there are no matches.
func (r reader) FindAllAfter(ctx context.Context, rootID string, labels []string, at time.Time) ([]ir.Context, error) {
	if len(labels) == 0 {
		return []ir.Context{}, nil
	}

	args := []any{rootID, ir.ClampUnixNano(at)}
	for _, l := range labels {
		args = append(args, l)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+contextColumns+`
		FROM contexts c
		WHERE c.root_id = ? AND c.ts > ?
		  AND c.label IN (`+placeholders(len(labels))+`)
		ORDER BY c.ts ASC, c.seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("find all after: %w", err)
	}
	defer rows.Close()

	contexts, err := scanContexts(rows)
	if err != nil {
		return nil, fmt.Errorf("find all after: %w", err)
	}
	return contexts, nil
}

// LatestTimestamp returns the greatest timestamp of any context recorded
// for rootID. ok is false when rootID has no contexts.
func (r reader) LatestTimestamp(ctx context.Context, rootID string) (ts time.Time, ok bool, err error) {
	var latest sql.NullInt64
	err = r.q.QueryRowContext(ctx, `
		SELECT MAX(c.ts) FROM contexts c WHERE c.root_id = ?
	`, rootID).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest timestamp: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(0, latest.Int64).UTC(), true, nil
}

// ListContexts returns every context recorded for rootID, ordered by
// timestamp then seq.
func (r reader) ListContexts(ctx context.Context, rootID string) ([]ir.Context, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+contextColumns+`
		FROM contexts c
		WHERE c.root_id = ?
		ORDER BY c.ts ASC, c.seq ASC
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	defer rows.Close()

	contexts, err := scanContexts(rows)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	return contexts, nil
}

// GetContext returns a context by id, or ErrNotFound.
func (r reader) GetContext(ctx context.Context, id string) (ir.Context, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+contextColumns+`
		FROM contexts c
		WHERE c.id = ?
	`, id)
	c, err := scanContext(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Context{}, fmt.Errorf("get context %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Context{}, fmt.Errorf("get context %s: %w", id, err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContext(row rowScanner) (ir.Context, error) {
	var (
		c        ir.Context
		ts       int64
		created  int64
		metaJSON string
	)
	if err := row.Scan(&c.Seq, &c.ID, &c.Label, &c.RootID, &ts, &metaJSON, &created); err != nil {
		return ir.Context{}, err
	}
	meta, err := unmarshalMetadata(metaJSON)
	if err != nil {
		return ir.Context{}, fmt.Errorf("context %s: %w", c.ID, err)
	}
	c.Metadata = meta
	c.Timestamp = time.Unix(0, ts).UTC()
	c.CreatedAt = time.Unix(0, created).UTC()
	return c, nil
}

func scanContexts(rows *sql.Rows) ([]ir.Context, error) {
	contexts := []ir.Context{}
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			return nil, fmt.Errorf("scan context: %w", err)
		}
		contexts = append(contexts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contexts: %w", err)
	}
	return contexts, nil
}
