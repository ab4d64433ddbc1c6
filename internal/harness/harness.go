package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/casetrail/internal/clock"
	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/notes"
	"github.com/roach88/casetrail/internal/revert"
	"github.com/roach88/casetrail/internal/store"
)

// Epoch is the logical time of minute 0 in every scenario.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness is the scenario execution environment. Each Run builds a fresh
// one.
type Harness struct {
	service *notes.Service
	clock   *clock.Manual
	logger  *slog.Logger
	result  *Result

	notes []string // Root notes touched, in first-touch order
	seen  map[string]bool
}

type runOptions struct {
	labels revert.LabelConfig
	logger *slog.Logger
}

// Option configures Run.
type Option func(*runOptions)

// WithLabels runs scenarios with a custom label taxonomy.
func WithLabels(labels revert.LabelConfig) Option {
	return func(o *runOptions) { o.labels = labels }
}

// WithLogger sets the logger for the harness and everything it builds.
// Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. The store clock steps by
// a millisecond per read and ids are sequential, so two runs of the same
// scenario produce the same trace.
//
// An error is returned only when the environment cannot be built or a step's
// arguments are malformed; failed expectations and assertions are reported
// in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{
		labels: revert.DefaultLabels(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(":memory:",
		store.WithClock(clock.NewStepClock(Epoch, time.Millisecond)),
		store.WithIDGenerator(clock.NewSequenceGenerator("ctx")),
		store.WithLogger(o.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	engineClock := clock.NewManual(Epoch)
	eng, err := revert.New(st, o.labels,
		revert.WithClock(engineClock),
		revert.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}
	svc, err := notes.New(st, eng,
		notes.WithIDGenerator(clock.NewSequenceGenerator("ent")),
		notes.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		service: svc,
		clock:   engineClock,
		logger:  o.logger,
		result:  NewResult(),
		seen:    make(map[string]bool),
	}

	ctx := context.Background()
	if err := h.executeSteps(ctx, scenario.Steps); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}
	if err := h.collectFinal(ctx); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Service:  svc,
		Ctx:      ctx,
		Captures: h.result.Captures,
	}
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

// timeAt converts a scenario minute to a logical timestamp.
func (h *Harness) timeAt(minute int) time.Time {
	return Epoch.Add(time.Duration(minute) * time.Minute)
}

func (h *Harness) track(noteID string) {
	if noteID == "" || h.seen[noteID] {
		return
	}
	h.seen[noteID] = true
	h.notes = append(h.notes, noteID)
}

// executeSteps runs all steps in order and checks their expected outcomes.
// The engine clock is set to each step's logical time, so a revert context
// is stamped with the step's "at".
func (h *Harness) executeSteps(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		args, err := convertArgsToIRObject(step.Args)
		if err != nil {
			return fmt.Errorf("step %d: failed to convert args: %w", i, err)
		}

		at := h.timeAt(step.At)
		h.clock.Set(at)

		noteID, agg, runErr := operations[step.Op].run(ctx, h, args, at)
		h.track(noteID)

		outcome := outcomeOf(runErr)
		ev := TraceEvent{
			Op:      step.Op,
			At:      step.At,
			Args:    step.Args,
			Outcome: outcome,
		}
		if agg != nil {
			ev.Aggregate = agg.Summary()
		}
		h.result.AddTrace(ev)

		expected := OutcomeOK
		if step.Expect != nil {
			expected = step.Expect.Outcome
		}
		if outcome != expected {
			msg := fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s", i, step.Op, expected, outcome)
			if runErr != nil {
				msg += ": " + runErr.Error()
			}
			h.result.AddError(msg)
		}

		h.logger.Info("step completed",
			"step", i,
			"op", step.Op,
			"at", at,
			"outcome", outcome,
		)
	}
	return nil
}

// collectFinal records the summary of every touched note that still exists.
func (h *Harness) collectFinal(ctx context.Context) error {
	for _, id := range h.notes {
		agg, err := h.service.Get(ctx, id)
		if errors.Is(err, notes.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read final state of %s: %w", id, err)
		}
		h.result.Final[id] = agg.Summary()
	}
	return nil
}

// outcomeOf classifies a step error.
func outcomeOf(err error) string {
	var rerr *revert.RevertError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &rerr):
		return string(rerr.Code)
	case errors.Is(err, notes.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, store.ErrMissingEntity):
		return OutcomeMissingEntity
	case errors.Is(err, notes.ErrInvalidInput):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

// convertArgsToIRObject converts a map[string]interface{} to ir.IRObject.
// This handles YAML-parsed values and converts them to proper IRValue types.
func convertArgsToIRObject(args map[string]interface{}) (ir.IRObject, error) {
	if args == nil {
		return ir.IRObject{}, nil
	}

	result := make(ir.IRObject)
	for key, val := range args {
		irVal, err := convertToIRValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		result[key] = irVal
	}
	return result, nil
}

// convertToIRValue converts a YAML-parsed value to an IRValue.
// Nulls and floats are rejected: neither can appear in a canonical trace.
func convertToIRValue(val interface{}) (ir.IRValue, error) {
	if val == nil {
		return nil, fmt.Errorf("null values are not allowed in scenario args")
	}

	switch v := val.(type) {
	case string:
		return ir.IRString(v), nil
	case int:
		return ir.IRInt(int64(v)), nil
	case int64:
		return ir.IRInt(v), nil
	case float64:
		if v == float64(int64(v)) {
			return ir.IRInt(int64(v)), nil
		}
		return nil, fmt.Errorf("floats are not allowed in scenario args: %v", v)
	case bool:
		return ir.IRBool(v), nil
	case []interface{}:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]interface{}:
		obj, err := convertArgsToIRObject(v)
		if err != nil {
			return nil, err
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
