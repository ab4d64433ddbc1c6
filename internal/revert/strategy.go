package revert

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/casetrail/internal/ir"
)

// Writer is the transactional persistence a strategy mutates through.
// *store.Tx implements it; every write it makes is itself logged.
type Writer interface {
	GetRow(ctx context.Context, kind ir.EntityKind, id string) (ir.IRObject, error)
	UpdateRow(ctx context.Context, kind ir.EntityKind, id string, fields ir.IRObject) (bool, error)
	DeleteRow(ctx context.Context, kind ir.EntityKind, id string) (bool, error)
	PutRow(ctx context.Context, kind ir.EntityKind, image ir.IRObject) error
	AddLink(ctx context.Context, kind ir.EntityKind, parentID, childID string) (bool, error)
	RemoveLink(ctx context.Context, kind ir.EntityKind, parentID, childID string) (bool, error)
}

// Strategy knows how to undo or restore one ChangeEvent of its entity kind.
type Strategy interface {
	// Undo applies the inverse of the event.
	Undo(ctx context.Context, w Writer, ev ir.ChangeEvent) error

	// RestoreSnapshot makes the live entity match the state the event captured.
	RestoreSnapshot(ctx context.Context, w Writer, ev ir.ChangeEvent) error
}

// Registry maps each entity kind to its strategy.
type Registry struct {
	strategies map[ir.EntityKind]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[ir.EntityKind]Strategy)}
}

// DefaultRegistry registers StandaloneRevert for every standalone kind and
// AssociationRevert for every link kind.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry()
	standalone := StandaloneRevert{Logger: logger}
	for _, k := range ir.StandaloneKinds {
		r.Register(k, standalone)
	}
	assoc := AssociationRevert{Logger: logger}
	for _, k := range ir.LinkKinds {
		r.Register(k, assoc)
	}
	return r
}

// Register sets the strategy for kind, replacing any previous one.
func (r *Registry) Register(kind ir.EntityKind, s Strategy) {
	r.strategies[kind] = s
}

// Lookup returns the strategy for kind, or a CONFIGURATION RevertError.
func (r *Registry) Lookup(kind ir.EntityKind) (Strategy, error) {
	s, ok := r.strategies[kind]
	if !ok {
		return nil, NewConfigurationError(kind)
	}
	return s, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []ir.EntityKind {
	kinds := make([]ir.EntityKind, 0, len(r.strategies))
	for k := range r.strategies {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
