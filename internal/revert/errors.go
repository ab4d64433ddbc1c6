package revert

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/casetrail/internal/ir"
)

// RevertError represents a failed revert.
//
// Codes:
//   - CONFIGURATION: an event's entity kind has no strategy, or the label
//     taxonomy is invalid
//   - INVALID_ACTION: a strategy was asked to undo an action it cannot undo
//   - ROOT_NOT_FOUND: the root note does not exist
//   - INVALID_TARGET: the target time cannot be stored as a logical time
//   - ABORTED: any other failure; the transaction was rolled back
//
// All but ABORTED are programming or input errors and always propagate.
// ABORTED is surfaced unless the engine runs with surface aborts disabled.
type RevertError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RootID identifies the note being reverted.
	RootID string

	// Kind and Action describe the event being applied, when known.
	Kind   ir.EntityKind
	Action ir.Action

	// EventID identifies the event being applied, when known.
	EventID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes revert errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates a missing strategy or bad label config.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeInvalidAction indicates an action the strategy cannot undo.
	ErrCodeInvalidAction ErrorCode = "INVALID_ACTION"

	// ErrCodeRootNotFound indicates the root note does not exist.
	ErrCodeRootNotFound ErrorCode = "ROOT_NOT_FOUND"

	// ErrCodeInvalidTarget indicates a target outside [ir.MinTime, ir.MaxTime].
	ErrCodeInvalidTarget ErrorCode = "INVALID_TARGET"

	// ErrCodeAborted indicates the revert failed and was rolled back.
	ErrCodeAborted ErrorCode = "ABORTED"
)

// Error implements the error interface.
func (e *RevertError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RootID != "" {
		msg += fmt.Sprintf(" (root=%s)", e.RootID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RevertError) Unwrap() error {
	return e.Err
}

// fatal reports whether the error must propagate regardless of policy.
func (e *RevertError) fatal() bool {
	return e.Code != ErrCodeAborted
}

func hasCode(err error, code ErrorCode) bool {
	var re *RevertError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsConfigurationError returns true if the error is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsInvalidAction returns true if a strategy rejected an event's action.
func IsInvalidAction(err error) bool {
	return hasCode(err, ErrCodeInvalidAction)
}

// IsRootNotFound returns true if the root note does not exist.
func IsRootNotFound(err error) bool {
	return hasCode(err, ErrCodeRootNotFound)
}

// IsInvalidTarget returns true if the target time was out of range.
func IsInvalidTarget(err error) bool {
	return hasCode(err, ErrCodeInvalidTarget)
}

// IsAborted returns true if the revert was rolled back.
func IsAborted(err error) bool {
	return hasCode(err, ErrCodeAborted)
}

// NewConfigurationError creates a RevertError for a kind with no strategy.
func NewConfigurationError(kind ir.EntityKind) *RevertError {
	return &RevertError{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf("no revert strategy registered for entity kind %q", kind),
		Kind:    kind,
	}
}

func checkTarget(rootID string, target time.Time) error {
	if err := ir.CheckTime(target); err != nil {
		return &RevertError{
			Code:    ErrCodeInvalidTarget,
			Message: "target time out of range",
			RootID:  rootID,
			Err:     err,
		}
	}
	return nil
}

// NewInvalidActionError creates a RevertError for an event whose action the
// strategy cannot handle in the requested direction.
func NewInvalidActionError(op string, ev ir.ChangeEvent) *RevertError {
	return &RevertError{
		Code:    ErrCodeInvalidAction,
		Message: fmt.Sprintf("cannot %s %s of %s", op, ev.Action, ev.EntityKind),
		Kind:    ev.EntityKind,
		Action:  ev.Action,
		EventID: ev.ID,
	}
}

// withEvent attaches root and event details to err. A RevertError is
// annotated in place; any other error is wrapped with the event key.
func withEvent(err error, rootID string, ev ir.ChangeEvent) error {
	var re *RevertError
	if errors.As(err, &re) {
		if re.RootID == "" {
			re.RootID = rootID
		}
		if re.Kind == "" {
			re.Kind = ev.EntityKind
		}
		if re.Action == "" {
			re.Action = ev.Action
		}
		if re.EventID == "" {
			re.EventID = ev.ID
		}
		return err
	}
	return fmt.Errorf("event %s (%s %s): %w", ev.ID, ev.Action, ev.Key(), err)
}
