package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/notes"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Note     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (note %s)\n", e.Type, e.Note)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides what assertions need to inspect final state.
type AssertionContext struct {
	Service  *notes.Service
	Ctx      context.Context
	Captures map[string]ir.IRObject
}

// EvaluateAssertions evaluates all assertions.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertAggregate:
			err = assertAggregate(actx, assertion)
		case AssertMatchesCapture:
			err = assertMatchesCapture(actx, assertion)
		case AssertHistory:
			err = assertHistory(actx, assertion)
		case AssertContextCount:
			err = assertContextCount(actx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

func summaryOf(actx *AssertionContext, a Assertion) (ir.IRObject, error) {
	agg, err := actx.Service.Get(actx.Ctx, a.Note)
	if err != nil {
		return nil, &AssertionError{
			Type:     a.Type,
			Note:     a.Note,
			Expected: "note exists",
			Actual:   err.Error(),
		}
	}
	return agg.Summary(), nil
}

// assertAggregate checks the note's summary contains the expected values.
// Objects match as subsets; arrays and scalars must be equal.
func assertAggregate(actx *AssertionContext, a Assertion) error {
	summary, err := summaryOf(actx, a)
	if err != nil {
		return err
	}
	expected, err := convertArgsToIRObject(a.Expect)
	if err != nil {
		return fmt.Errorf("aggregate assertion: %w", err)
	}

	for _, key := range expected.SortedKeys() {
		actual, ok := summary[key]
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Note:     a.Note,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields: %v", summary.SortedKeys()),
			}
		}
		if !matchSubset(actual, expected[key]) {
			return &AssertionError{
				Type:     a.Type,
				Note:     a.Note,
				Expected: fmt.Sprintf("%s = %s", key, render(expected[key])),
				Actual:   fmt.Sprintf("%s = %s", key, render(actual)),
			}
		}
	}
	return nil
}

// assertMatchesCapture checks the note's summary equals a captured one.
func assertMatchesCapture(actx *AssertionContext, a Assertion) error {
	want, ok := actx.Captures[a.Capture]
	if !ok {
		return fmt.Errorf("matches_capture: no capture named %q", a.Capture)
	}
	summary, err := summaryOf(actx, a)
	if err != nil {
		return err
	}
	if !ir.Equal(summary, want) {
		return &AssertionError{
			Type:     a.Type,
			Note:     a.Note,
			Expected: fmt.Sprintf("capture %s: %s", a.Capture, render(want)),
			Actual:   render(summary),
		}
	}
	return nil
}

// assertHistory checks the labels of the note's contexts, oldest first.
func assertHistory(actx *AssertionContext, a Assertion) error {
	labels, err := historyLabels(actx, a.Note)
	if err != nil {
		return err
	}
	if !slices.Equal(labels, a.Labels) {
		return &AssertionError{
			Type:     a.Type,
			Note:     a.Note,
			Expected: fmt.Sprintf("%v", a.Labels),
			Actual:   fmt.Sprintf("%v", labels),
		}
	}
	return nil
}

// assertContextCount checks how many of the note's contexts carry a label.
func assertContextCount(actx *AssertionContext, a Assertion) error {
	labels, err := historyLabels(actx, a.Note)
	if err != nil {
		return err
	}
	count := 0
	for _, l := range labels {
		if l == a.Label {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Note:     a.Note,
			Expected: fmt.Sprintf("%d contexts labelled %s", a.Count, a.Label),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

func historyLabels(actx *AssertionContext, noteID string) ([]string, error) {
	history, err := actx.Service.History(actx.Ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", noteID, err)
	}
	labels := make([]string, len(history))
	for i, c := range history {
		labels[i] = c.Label
	}
	return labels, nil
}

// matchSubset reports whether actual contains expected: every key of an
// expected object must match in actual; anything else must be equal.
func matchSubset(actual, expected ir.IRValue) bool {
	exp, ok := expected.(ir.IRObject)
	if !ok {
		return ir.Equal(actual, expected)
	}
	act, ok := actual.(ir.IRObject)
	if !ok {
		return false
	}
	for k, v := range exp {
		av, ok := act[k]
		if !ok || !matchSubset(av, v) {
			return false
		}
	}
	return true
}

func render(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
