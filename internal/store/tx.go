package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/roach88/casetrail/internal/ir"
)

// UntrackedLabel is the event label used for writes made with no context open.
const UntrackedLabel = "untracked"

// ErrContextOpen is returned by OpenContext when the Tx already has an
// active context. Contexts do not nest.
var ErrContextOpen = errors.New("context already open")

// ContextMeta is the caller-supplied metadata of a new Context.
type ContextMeta struct {
	RootID    string
	Timestamp time.Time // Logical time of the operation; defaults to the store clock
	Extra     map[string]string
}

// Tx is a write transaction. Every tracked write made through a Tx appends
// its ChangeEvent inside the same SQL transaction. Reads through a Tx see
// its own uncommitted writes.
type Tx struct {
	reader
	tx     *sql.Tx
	store  *Store
	active *ir.Context
	done   bool
}

// Begin starts a write transaction. The DSN requests BEGIN IMMEDIATE, so
// the write lock is held from here until Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{reader: reader{q: tx}, tx: tx, store: s}, nil
}

// Snapshot is a read-only view of the store. All reads through one
// Snapshot see the same committed state.
type Snapshot struct {
	reader
}

// View runs fn against a Snapshot held in a deferred read transaction,
// which is always rolled back. It takes no write lock: in WAL mode writers
// on other connections proceed while fn runs, and fn does not see their
// commits.
func (s *Store) View(ctx context.Context, fn func(*Snapshot) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("view: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN DEFERRED"); err != nil {
		return fmt.Errorf("view: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
			// Drop the connection so it never returns to the pool mid-transaction.
			conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	return fn(&Snapshot{reader: reader{q: conn}})
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.active = nil
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Calling it after Commit is a no-op,
// so it is safe to defer.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.active = nil
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Now returns the store clock's current time.
func (t *Tx) Now() time.Time {
	return t.store.clock.Now()
}

// Active returns the open context, if any.
func (t *Tx) Active() (ir.Context, bool) {
	if t.active == nil {
		return ir.Context{}, false
	}
	return *t.active, true
}

// OpenContext registers a new Context and makes it active: every event
// appended until CloseContext carries its id and label. Each call creates
// exactly one row, even for metadata identical to an earlier context.
func (t *Tx) OpenContext(ctx context.Context, label string, meta ContextMeta) (ir.Context, error) {
	if t.active != nil {
		return ir.Context{}, fmt.Errorf("open context %q: %w (active %q)", label, ErrContextOpen, t.active.Label)
	}
	if label == "" {
		return ir.Context{}, fmt.Errorf("open context: empty label")
	}

	created := t.store.stamp()
	ts := meta.Timestamp
	if ts.IsZero() {
		ts = created
	}
	ts = ts.UTC()
	if err := ir.CheckTime(ts); err != nil {
		return ir.Context{}, fmt.Errorf("open context %q: %w", label, err)
	}

	metadata := make(map[string]string, len(meta.Extra)+2)
	maps.Copy(metadata, meta.Extra)
	metadata[ir.MetaRootID] = meta.RootID
	metadata[ir.MetaTimestamp] = ts.Format(time.RFC3339Nano)

	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return ir.Context{}, fmt.Errorf("open context %q: %w", label, err)
	}

	c := ir.Context{
		ID:        t.store.ids.Generate(),
		Label:     label,
		RootID:    meta.RootID,
		Timestamp: ts,
		Metadata:  metadata,
		CreatedAt: created,
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO contexts (id, label, root_id, ts, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Label, c.RootID, c.Timestamp.UnixNano(), metaJSON, c.CreatedAt.UnixNano())
	if err != nil {
		return ir.Context{}, fmt.Errorf("open context %q: %w", label, err)
	}
	if c.Seq, err = res.LastInsertId(); err != nil {
		return ir.Context{}, fmt.Errorf("open context %q: %w", label, err)
	}

	t.active = &c
	t.store.logger.Debug("context opened",
		"context_id", c.ID,
		"label", c.Label,
		"root_id", c.RootID,
		"timestamp", c.Timestamp,
	)
	return c, nil
}

// CloseContext ends the active context. Later appends are untagged.
func (t *Tx) CloseContext() {
	t.active = nil
}

// WithContext runs fn in a new transaction with a freshly opened Context.
// The transaction commits if fn returns nil and rolls back otherwise, so a
// context and its events are either fully recorded or not at all.
func (s *Store) WithContext(ctx context.Context, label string, meta ContextMeta, fn func(*Tx) error) (ir.Context, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return ir.Context{}, fmt.Errorf("with context %q: %w", label, err)
	}
	defer tx.Rollback()

	c, err := tx.OpenContext(ctx, label, meta)
	if err != nil {
		return ir.Context{}, err
	}
	if err := fn(tx); err != nil {
		return ir.Context{}, err
	}
	tx.CloseContext()

	if err := tx.Commit(); err != nil {
		return ir.Context{}, fmt.Errorf("with context %q: %w", label, err)
	}
	return c, nil
}
