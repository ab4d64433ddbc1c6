package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/casetrail/internal/clock"
	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/revert"
	"github.com/roach88/casetrail/internal/store"
)

// ErrNotFound is returned when an operation targets a missing entity.
var ErrNotFound = errors.New("not found")

// Labels returns every context label this package produces.
func Labels() []string {
	return []string{
		ir.LabelNoteCreate,
		ir.LabelNoteUpdate,
		ir.LabelNoteRevert,
		ir.LabelMoodAdd,
		ir.LabelMoodRemove,
		ir.LabelPurposeAdd,
		ir.LabelPurposeRemove,
		ir.LabelNextStepAdd,
		ir.LabelNextStepRemove,
		ir.LabelProvidedServiceAdd,
		ir.LabelProvidedServiceRemove,
		ir.LabelRequestedServiceAdd,
		ir.LabelRequestedServiceRemove,
		ir.LabelTaskCreate,
		ir.LabelTaskDelete,
		ir.LabelServiceRequestCreate,
	}
}

// Service performs tracked mutations on notes and their children.
type Service struct {
	store  *store.Store
	engine *revert.Engine
	ids    clock.IDGenerator
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator sets the generator for ids the caller leaves empty.
func WithIDGenerator(g clock.IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. The engine's label taxonomy must classify every
// label in Labels.
func New(st *store.Store, engine *revert.Engine, opts ...Option) (*Service, error) {
	if err := engine.Labels().Covers(Labels()); err != nil {
		return nil, &revert.RevertError{
			Code:    revert.ErrCodeConfiguration,
			Message: "label taxonomy does not cover note operations",
			Err:     err,
		}
	}
	s := &Service{
		store:  st,
		engine: engine,
		ids:    clock.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) idOr(id string) string {
	if id != "" {
		return id
	}
	return s.ids.Generate()
}

// run executes fn in a new context for rootID at logical time at.
func (s *Service) run(ctx context.Context, label, rootID string, at time.Time, fn func(*store.Tx) error) error {
	if err := checkTime("time", at); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	c, err := s.store.WithContext(ctx, label, store.ContextMeta{RootID: rootID, Timestamp: at}, fn)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	s.logger.Debug("operation recorded", "label", label, "root_id", rootID, "context_id", c.ID)
	return nil
}

func stamp(t time.Time) ir.IRInt {
	if t.IsZero() {
		return 0
	}
	return ir.IRInt(t.UnixNano())
}

// Get returns the current aggregate for a note.
func (s *Service) Get(ctx context.Context, noteID string) (ir.Aggregate, error) {
	agg, err := s.store.ReadAggregate(ctx, noteID)
	if errors.Is(err, store.ErrNotFound) {
		return ir.Aggregate{}, fmt.Errorf("note %s: %w", noteID, ErrNotFound)
	}
	return agg, err
}

// History returns the contexts recorded for a note, oldest first.
func (s *Service) History(ctx context.Context, noteID string) ([]ir.Context, error) {
	return s.store.ListContexts(ctx, noteID)
}

// Revert restores a note to its state at target.
func (s *Service) Revert(ctx context.Context, noteID string, target time.Time) (ir.Aggregate, error) {
	return s.engine.RevertAggregate(ctx, noteID, target)
}
