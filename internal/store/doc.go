// Package store provides SQLite-backed durable storage for casetrail.
//
// The store holds three things:
//   - Context registry: one row per logical operation (label, root, logical timestamp)
//   - Event log: append-only ChangeEvents, one per tracked insert/update/delete
//   - Live tables: notes, moods, tasks, service requests, and the four note links
//
// # Write path
//
// Live rows are only written through a Tx. Every tracked write appends its
// ChangeEvent in the same SQL transaction, so the log and the data cannot
// diverge. While a context is open on the Tx, appended events carry its id.
//
// # Ordering
//
//   - Contexts are ordered by (ts ASC, seq ASC). ts is the caller's logical
//     time; seq is the registry's insertion order and breaks ties.
//   - Events are ordered by seq within a context, by (recorded_at, seq) per entity.
//   - contexts and change_events reject UPDATE and DELETE via triggers.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: a transaction takes the write lock at BEGIN
package store
