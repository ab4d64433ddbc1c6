// Package revert implements point-in-time revert of a note aggregate.
//
// A revert reads the change log and context registry kept by package store
// and drives per-kind strategies that mutate the live tables through a
// store transaction:
//
//   - StandaloneRevert: notes, moods, tasks, service requests
//   - AssociationRevert: the four note link kinds
//
// Context labels are classified by an injected, versioned LabelConfig.
// Ordering is by logical context timestamp, never by recorded_at; equal
// timestamps are ordered by context sequence.
//
// ERROR POLICY:
//
// CONFIGURATION, INVALID_ACTION, and ROOT_NOT_FOUND always propagate. Every
// other failure rolls back the whole revert and yields the current state,
// with an ABORTED error unless surface aborts are disabled.
package revert
