// Package harness runs revert scenarios against a fresh store.
//
// A scenario is a YAML file that drives the notes service through a
// sequence of operations at logical times, then asserts on the resulting
// aggregates and context history.
//
// # Scenario Format
//
//	name: revert_restores_removed_mood
//	description: "Removing a mood after the target is undone"
//	steps:
//	  - at: 0
//	    op: create_note
//	    args: { id: n1, title: "Intake" }
//	  - at: 1
//	    op: add_mood
//	    args: { note: n1, id: m1, descriptor: calm }
//	  - op: capture
//	    args: { note: n1, name: before }
//	  - at: 5
//	    op: remove_mood
//	    args: { note: n1, id: m1 }
//	  - at: 10
//	    op: revert
//	    args: { note: n1, to: 3 }
//	    expect: { outcome: ok }
//	assertions:
//	  - type: matches_capture
//	    note: n1
//	    capture: before
//	  - type: history
//	    note: n1
//	    labels: [note.create, mood.add, mood.remove, note.revert]
//
// "at" is minutes after the scenario epoch; it becomes the operation's
// logical timestamp. A revert's "to" is in the same unit.
//
// # Assertion Types
//
//   - aggregate: subset match on the note's summary (title, moods, links)
//   - matches_capture: the note's summary equals a captured one
//   - history: the note's context labels, oldest first
//   - context_count: number of contexts with a label for the note
//
// # Deterministic Testing
//
// Every run uses an in-memory database, a stepping store clock, and
// sequential ids, so traces are identical across runs and can be compared
// against golden files with RunWithGolden.
package harness
