// Package notes is the mutation layer for case notes.
//
// Every operation runs in its own store context, so each call is one
// logical operation in the change log with a label from ir (note.update,
// mood.add, ...). Callers pass the operation's logical time; it becomes the
// context timestamp and the created_at/updated_at of the rows written.
//
// Tasks and service requests are shared across notes: their create and
// delete operations record a context with no root note.
package notes
