// Package ir provides the shared record types for casetrail.
//
// This package contains type definitions and pure helpers only. Every other
// internal package imports ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in payloads - numbers are int64
//   - All JSON tags use snake_case
//   - Context ordering uses the caller's logical timestamp, never recorded_at
//   - ChangeEvents are immutable once written
package ir
