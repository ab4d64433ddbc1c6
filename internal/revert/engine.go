package revert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/casetrail/internal/clock"
	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/store"
)

// Engine reverts a note aggregate to its state at a past logical time.
//
// Each RevertAggregate call runs in one store transaction:
//  1. select the anchor: the latest anchor context at or before the target
//  2. classify post-target contexts as additions, removals, or mixed
//  3. undo additions
//  4. restore removals, then the anchor's root-note snapshot
//  5. re-read and return the aggregate
//
// The engine's own writes are logged under a context labelled with the
// taxonomy's revert label, so a later revert can undo this one.
//
// The engine holds no state between calls and is safe for concurrent use;
// the store serializes transactions.
type Engine struct {
	store         *store.Store
	labels        LabelConfig
	registry      *Registry
	clock         clock.Clock
	logger        *slog.Logger
	surfaceAborts bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the default strategy registry.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithClock sets the clock that timestamps revert contexts. A revert
// context is never stamped before the latest context already recorded for
// its note, so a clock that lags the note's history is moved forward to it.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSurfaceAborts controls what a caller sees when a revert is rolled
// back for a non-fatal reason. When true (the default) RevertAggregate
// returns the current aggregate and an ABORTED RevertError. When false it
// returns the current aggregate and a nil error, logging a warning.
func WithSurfaceAborts(surface bool) Option {
	return func(e *Engine) { e.surfaceAborts = surface }
}

// New creates an Engine. The label taxonomy is validated here; an invalid
// one is a CONFIGURATION RevertError.
func New(s *store.Store, labels LabelConfig, opts ...Option) (*Engine, error) {
	if err := labels.Validate(); err != nil {
		return nil, &RevertError{
			Code:    ErrCodeConfiguration,
			Message: "invalid label taxonomy",
			Err:     err,
		}
	}

	e := &Engine{
		store:         s,
		labels:        labels,
		clock:         clock.System{},
		logger:        slog.Default(),
		surfaceAborts: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = DefaultRegistry(e.logger)
	}
	return e, nil
}

// Labels returns the engine's label taxonomy.
func (e *Engine) Labels() LabelConfig {
	return e.labels
}

// Plan returns what RevertAggregate would do for the same arguments,
// without writing anything. It reads a store snapshot and takes no write
// lock.
func (e *Engine) Plan(ctx context.Context, rootID string, target time.Time) (Plan, error) {
	if err := checkTarget(rootID, target); err != nil {
		return Plan{}, err
	}

	var p Plan
	err := e.store.View(ctx, func(snap *store.Snapshot) error {
		if err := e.checkRoot(ctx, snap, rootID); err != nil {
			return err
		}
		var err error
		p, err = e.buildPlan(ctx, snap, rootID, target)
		return err
	})
	if err != nil {
		return Plan{}, err
	}
	return p, nil
}

// RevertAggregate restores the note rootID and its children to their state
// at the logical time target and returns the resulting aggregate.
//
// CONFIGURATION, INVALID_ACTION, ROOT_NOT_FOUND, and INVALID_TARGET
// errors are returned with a zero aggregate. Any other failure rolls the
// transaction back and returns the current, unreverted aggregate; see
// WithSurfaceAborts.
func (e *Engine) RevertAggregate(ctx context.Context, rootID string, target time.Time) (ir.Aggregate, error) {
	log := e.logger.With("root_id", rootID, "target", target)
	log.Info("revert starting")

	if err := checkTarget(rootID, target); err != nil {
		return e.fail(ctx, rootID, err)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return e.fail(ctx, rootID, err)
	}

	agg, p, err := e.apply(ctx, tx, rootID, target)
	if err != nil {
		tx.Rollback()
		return e.fail(ctx, rootID, err)
	}
	if err := tx.Commit(); err != nil {
		return e.fail(ctx, rootID, err)
	}

	fp, _ := ir.Fingerprint(agg)
	log.Info("revert committed",
		"anchor", p.Anchor.ID,
		"undone", len(p.Undo),
		"restored", len(p.Restore),
		"skipped", p.Skipped,
		"fingerprint", fp,
	)
	return agg, nil
}

func (e *Engine) checkRoot(ctx context.Context, r planReader, rootID string) error {
	exists, err := r.RowExists(ctx, ir.KindNote, rootID)
	if err != nil {
		return err
	}
	if !exists {
		return &RevertError{
			Code:    ErrCodeRootNotFound,
			Message: "note does not exist",
			RootID:  rootID,
		}
	}
	return nil
}

// apply plans and applies the revert inside tx.
func (e *Engine) apply(ctx context.Context, tx *store.Tx, rootID string, target time.Time) (ir.Aggregate, Plan, error) {
	if err := e.checkRoot(ctx, tx, rootID); err != nil {
		return ir.Aggregate{}, Plan{}, err
	}

	p, err := e.buildPlan(ctx, tx, rootID, target)
	if err != nil {
		return ir.Aggregate{}, Plan{}, err
	}

	ts, err := e.revertTime(ctx, tx, rootID)
	if err != nil {
		return ir.Aggregate{}, Plan{}, err
	}
	if _, err := tx.OpenContext(ctx, e.labels.Revert, store.ContextMeta{
		RootID:    rootID,
		Timestamp: ts,
		Extra:     map[string]string{"target": target.UTC().Format(time.RFC3339Nano)},
	}); err != nil {
		return ir.Aggregate{}, Plan{}, err
	}

	for _, ev := range p.Undo {
		s, err := e.registry.Lookup(ev.EntityKind)
		if err != nil {
			return ir.Aggregate{}, Plan{}, withEvent(err, rootID, ev)
		}
		e.logger.Debug("undo", "root_id", rootID, "key", ev.Key(), "action", ev.Action, "label", ev.Label)
		if err := s.Undo(ctx, tx, ev); err != nil {
			return ir.Aggregate{}, Plan{}, withEvent(err, rootID, ev)
		}
	}
	for _, ev := range p.Restore {
		s, err := e.registry.Lookup(ev.EntityKind)
		if err != nil {
			return ir.Aggregate{}, Plan{}, withEvent(err, rootID, ev)
		}
		e.logger.Debug("restore", "root_id", rootID, "key", ev.Key(), "action", ev.Action, "label", ev.Label)
		if err := s.RestoreSnapshot(ctx, tx, ev); err != nil {
			return ir.Aggregate{}, Plan{}, withEvent(err, rootID, ev)
		}
	}
	tx.CloseContext()

	agg, err := tx.ReadAggregate(ctx, rootID)
	if err != nil {
		return ir.Aggregate{}, Plan{}, err
	}
	return agg, p, nil
}

// revertTime returns the engine clock's time, or the latest timestamp
// recorded for rootID if that is later. On a tie the revert context still
// sorts last by seq.
func (e *Engine) revertTime(ctx context.Context, tx *store.Tx, rootID string) (time.Time, error) {
	now := e.clock.Now()
	latest, ok, err := tx.LatestTimestamp(ctx, rootID)
	if err != nil {
		return time.Time{}, err
	}
	if ok && latest.After(now) {
		e.logger.Debug("revert clock behind history", "root_id", rootID, "clock", now, "latest", latest)
		return latest, nil
	}
	return now, nil
}

// fail applies the failure policy. The transaction must already be
// rolled back: the current aggregate is read outside it.
func (e *Engine) fail(ctx context.Context, rootID string, cause error) (ir.Aggregate, error) {
	var re *RevertError
	if errors.As(cause, &re) && re.fatal() {
		if re.RootID == "" {
			re.RootID = rootID
		}
		e.logger.Error("revert failed", "root_id", rootID, "code", re.Code, "error", cause)
		return ir.Aggregate{}, cause
	}

	aborted := &RevertError{
		Code:    ErrCodeAborted,
		Message: "revert rolled back",
		RootID:  rootID,
		Err:     cause,
	}
	if errors.As(cause, &re) {
		aborted.Kind, aborted.Action, aborted.EventID = re.Kind, re.Action, re.EventID
	}

	current, err := e.store.ReadAggregate(ctx, rootID)
	if err != nil {
		return ir.Aggregate{}, fmt.Errorf("%w (reading current state: %v)", aborted, err)
	}

	e.logger.Warn("revert aborted", "root_id", rootID, "error", cause)
	if !e.surfaceAborts {
		return current, nil
	}
	return current, aborted
}
