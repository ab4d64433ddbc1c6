package harness

import (
	"github.com/roach88/casetrail/internal/ir"
)

// Step outcomes other than revert error codes.
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "NOT_FOUND"
	OutcomeMissingEntity = "MISSING_ENTITY"
	OutcomeInvalid       = "INVALID"
	OutcomeError         = "ERROR"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq       int64          `json:"seq"`
	Op        string         `json:"op"`
	At        int            `json:"at"`
	Args      map[string]any `json:"args,omitempty"`
	Outcome   string         `json:"outcome"`
	Aggregate ir.IRObject    `json:"aggregate,omitempty"` // Summary, for revert and capture steps
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Captures holds summaries recorded by capture steps, by name.
	Captures map[string]ir.IRObject `json:"captures,omitempty"`

	// Final holds the summary of every note touched by the scenario
	// that still exists at the end, by note id.
	Final map[string]ir.IRObject `json:"final,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Captures: make(map[string]ir.IRObject),
		Final:    make(map[string]ir.IRObject),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
